package availability

// Status classifies how one provider's scan ended.
type Status string

const (
	StatusRecorded Status = "recorded"
	StatusEmpty    Status = "empty"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Outcome is the per-provider result surfaced to logs, metrics and tests.
type Outcome struct {
	Category string
	Provider string
	Status   Status
	Slots    int
	Reason   string
	Err      error
}

// OK reports whether the provider made it into the aggregate.
func (o Outcome) OK() bool {
	return o.Status == StatusRecorded || o.Status == StatusEmpty
}
