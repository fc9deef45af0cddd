package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/m2tx/live_bridge/internal/model"
)

// MemoryTranscriptRepository keeps transcripts in process memory. Used when no
// MongoDB URI is configured, and in tests.
type MemoryTranscriptRepository struct {
	mu          sync.RWMutex
	transcripts map[string][]model.Content
}

func NewMemoryTranscriptRepository() *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{
		transcripts: make(map[string][]model.Content),
	}
}

func (r *MemoryTranscriptRepository) Append(_ context.Context, sessionID string, entries ...model.Content) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts[sessionID] = append(r.transcripts[sessionID], entries...)
	return nil
}

func (r *MemoryTranscriptRepository) Load(_ context.Context, sessionID string) ([]model.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, ok := r.transcripts[sessionID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(entries), nil
}

func (r *MemoryTranscriptRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transcripts, sessionID)
	return nil
}
