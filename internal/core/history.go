package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryStore keeps finished runs for later display and export.
type HistoryStore interface {
	Save(ctx context.Context, run *Run) error
	// Get returns ErrRunNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	// List returns the most recent runs first.
	List(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary is the listing form of a run.
type RunSummary struct {
	ID           uuid.UUID `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DryRun       bool      `json:"dry_run"`
	OK           bool      `json:"ok"`
	Files        int       `json:"files"`
	ValidFiles   int       `json:"valid_files"`
	InvalidFiles int       `json:"invalid_files"`
	Transfers    int       `json:"transfers"`
	Ignored      int       `json:"ignored"`
}

// Summarize builds the listing form of run.
func Summarize(run *Run) RunSummary {
	valid, invalid, transfers := run.Counts()
	return RunSummary{
		ID:           run.ID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		DryRun:       run.DryRun,
		OK:           run.OK(),
		Files:        len(run.Files),
		ValidFiles:   valid,
		InvalidFiles: invalid,
		Transfers:    transfers,
		Ignored:      len(run.Ignored),
	}
}

// DefaultHistorySize is how many runs MemoryHistory keeps by default.
const DefaultHistorySize = 200

// MemoryHistory keeps the most recent runs in process memory.
type MemoryHistory struct {
	mu    sync.RWMutex
	max   int
	order []uuid.UUID // oldest first
	runs  map[uuid.UUID]*Run
}

// NewMemoryHistory creates a store holding at most max runs.
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &MemoryHistory{
		max:  max,
		runs: make(map[uuid.UUID]*Run),
	}
}

func (h *MemoryHistory) Save(_ context.Context, run *Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[run.ID]; !exists {
		h.order = append(h.order, run.ID)
	}
	h.runs[run.ID] = run

	for len(h.order) > h.max {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}
	return nil
}

func (h *MemoryHistory) Get(_ context.Context, id uuid.UUID) (*Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	run, ok := h.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (h *MemoryHistory) List(_ context.Context, limit int) ([]RunSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.order) {
		limit = len(h.order)
	}
	out := make([]RunSummary, 0, limit)
	for i := len(h.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, Summarize(h.runs[h.order[i]]))
	}
	return out, nil
}

// Prune drops runs started before cutoff.
func (h *MemoryHistory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.order[:0]
	var n int64
	for _, id := range h.order {
		if h.runs[id].StartedAt.Before(cutoff) {
			delete(h.runs, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	h.order = kept
	return n, nil
}
