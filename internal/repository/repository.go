package repository

import (
	"context"

	"github.com/m2tx/live_bridge/internal/model"
)

// TranscriptRepository persists what was said in a live conversation.
type TranscriptRepository interface {
	// Append adds entries to the end of the transcript, creating it if needed.
	Append(ctx context.Context, sessionID string, entries ...model.Content) error

	// Load returns the stored transcript in append order.
	// Returns nil, nil if the session does not exist.
	Load(ctx context.Context, sessionID string) ([]model.Content, error)

	// Delete removes the transcript.
	// Is a no-op if the session does not exist.
	Delete(ctx context.Context, sessionID string) error
}
