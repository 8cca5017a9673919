package model

import (
	"encoding/json"
	"time"
)

type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncProcessing SyncStatus = "processing"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

type SyncType string

const (
	SyncOrder       SyncType = "order_sync"
	SyncOrderCancel SyncType = "order_cancel"
)

// SyncQueueItem is a durable unit of sync work. At most one pending or
// processing item exists per (type, resource id).
type SyncQueueItem struct {
	ID          int64           `json:"id"`
	Type        SyncType        `json:"type"`
	ResourceID  string          `json:"resource_id"`
	OrderNumber string          `json:"order_number,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      SyncStatus      `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SyncQueueStats counts items per status over a trailing window.
type SyncQueueStats struct {
	Since      time.Time `json:"since"`
	Pending    int       `json:"pending"`
	Processing int       `json:"processing"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
}

// SyncResult summarises one orchestrator run.
type SyncResult struct {
	Polled    int `json:"polled"`
	Enqueued  int `json:"enqueued"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cleaned   int `json:"cleaned"`
}

// SyncRun is the metadata kept about the last orchestrator run.
type SyncRun struct {
	RunID      uint64     `json:"run_id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     SyncResult `json:"result"`
	Error      string     `json:"error,omitempty"`
}
