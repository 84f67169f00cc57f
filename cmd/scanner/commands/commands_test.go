package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/internal/scanner"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	res := scanner.Result{
		Summary: scanner.Summary{
			RunID:      "run-7",
			Status:     scanner.StatusCompleted,
			StartedAt:  start,
			FinishedAt: start.Add(95 * time.Second),
			SlotCount:  4,
			Outcomes: []availability.Outcome{
				{Category: "swedish", Provider: "Anna (Swedish)", Status: availability.StatusRecorded, Slots: 4},
				{Category: "swedish", Provider: "Ben (Swedish)", Status: availability.StatusFailed, Err: errors.New("net::ERR_TIMED_OUT")},
			},
		},
		Artifact: output.Artifact{MD5: "abc"},
		Changed:  true,
	}

	var buf bytes.Buffer
	renderSummary(&buf, res)
	out := buf.String()
	for _, want := range []string{"run-7", "Anna (Swedish)", "ERR_TIMED_OUT", "1 ok / 1 failed", "1m35s", "0 new slots"} {
		assert.Contains(t, out, want)
	}
}

func TestChangeLabel(t *testing.T) {
	assert.Equal(t, "not published", changeLabel(scanner.Result{}))
	assert.Equal(t, "unchanged", changeLabel(scanner.Result{Artifact: output.Artifact{MD5: "x"}}))
}

func TestCategoriesCommand(t *testing.T) {
	t.Setenv("CATALOG_PATH", "")
	t.Setenv("PASS_URL", "")

	out, err := execute(t, "categories", "--type", "massage", "--massage", "couples")
	require.NoError(t, err)
	assert.Contains(t, out, "couples")
	assert.NotContains(t, out, "spa_pass")
}

func TestAdminTokenCommand(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")

	out, err := execute(t, "admin-token", "--subject", "cron", "--ttl", "10m")
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cron", claims.Subject)
}

func TestAdminTokenRequiresSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	_, err := execute(t, "admin-token")
	require.Error(t, err)
}
