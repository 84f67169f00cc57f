// Package events defines the versioned events emitted after a scan and the
// transports that carry them.
package events

import "time"

// Event is a versioned fact about one scan run.
type Event interface {
	EventType() string
	RunID() string
}

// ScanCompletedV1 is emitted once the artifact of a run has been published.
type ScanCompletedV1 struct {
	Run           string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	MD5           string    `json:"md5"`
	ProviderCount int       `json:"provider_count"`
	FailedCount   int       `json:"failed_count"`
	SlotCount     int       `json:"slot_count"`
	NewSlotCount  int       `json:"new_slot_count"`
	Changed       bool      `json:"changed"`
}

func (ScanCompletedV1) EventType() string { return "scanner.scan.completed.v1" }

func (e ScanCompletedV1) RunID() string { return e.Run }
