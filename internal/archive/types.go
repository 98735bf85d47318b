package archive

import (
	"context"
	"time"
)

// Record is one archived command/response exchange. The archive is an
// append-only audit log; session state itself is never persisted.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Command     string    `json:"command"`
	Response    string    `json:"response"`
	Kind        string    `json:"kind"`
	Success     bool      `json:"success"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves archived interactions.
type Store interface {
	Save(ctx context.Context, record Record) error
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Mode() string
	Close() error
}
