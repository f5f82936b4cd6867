package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CycleEntry is the audit row of one store update.
type CycleEntry struct {
	ID             int64
	CycleID        string
	File           string
	RecordsAdded   int
	EntriesAdded   int
	RecordsRemoved int
	EntriesRemoved int
	Entries        int
	StartedAt      time.Time
	FinishedAt     time.Time
	Err            string
}

// CycleStore persists an append-only log of store updates.
type CycleStore interface {
	Log(ctx context.Context, entry CycleEntry) error
	List(ctx context.Context, file string, opts ListOpts) ([]CycleEntry, error)
}

// CycleEvent is broadcast to live subscribers when a store update finishes.
type CycleEvent struct {
	CycleID        string `json:"cycle_id"`
	File           string `json:"file"`
	RecordsAdded   int    `json:"records_added"`
	RecordsRemoved int    `json:"records_removed"`
	Entries        int    `json:"entries"`
	FinishedAt     int64  `json:"finished_at"`
}
