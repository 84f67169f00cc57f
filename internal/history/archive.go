package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SlotArchive stores every slot of a run so availability can be compared
// across time.
type SlotArchive struct {
	db     db
	logger *logging.Logger
	now    func() time.Time
}

func NewSlotArchive(pool db, logger *logging.Logger) *SlotArchive {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotArchive{db: pool, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SaveSnapshot writes all slots of agg in a single transaction.
func (a *SlotArchive) SaveSnapshot(ctx context.Context, runID string, agg *availability.Aggregate) error {
	if a == nil || a.db == nil || agg == nil {
		return nil
	}
	observedAt := a.now()
	if meta, ok := agg.Meta(); ok {
		observedAt = meta.GeneratedAt
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO slot_observations (run_id, provider, slot_date, slot_time, spots, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, provider, slot_date, slot_time) DO NOTHING
	`
	rows := 0
	for _, name := range agg.Names() {
		result, _ := agg.Get(name)
		for _, slot := range result.Slots {
			if _, err := tx.Exec(ctx, query, runID, name, slot.Date, slot.Time.String(), slot.Spots, observedAt); err != nil {
				return fmt.Errorf("history: insert slot for %s: %w", name, err)
			}
			rows++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	a.logger.Info("slot snapshot archived", "run_id", runID, "slots", rows)
	return nil
}
