package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newRun(started time.Time, files ...FileReport) *Run {
	return &Run{
		ID:         uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Files:      files,
	}
}

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(2)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	r1 := newRun(base)
	r2 := newRun(base.Add(time.Minute))
	r3 := newRun(base.Add(2 * time.Minute))
	for _, r := range []*Run{r1, r2, r3} {
		if err := h.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if _, err := h.Get(ctx, r1.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("oldest run should be evicted, got err = %v", err)
	}
	got, err := h.Get(ctx, r3.ID)
	if err != nil || got != r3 {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	list, _ := h.List(ctx, 0)
	if len(list) != 2 || list[0].ID != r3.ID || list[1].ID != r2.ID {
		t.Errorf("List() = %+v, want newest first", list)
	}
	list, _ = h.List(ctx, 1)
	if len(list) != 1 || list[0].ID != r3.ID {
		t.Errorf("List(1) = %+v", list)
	}
}

func TestMemoryHistoryResaveKeepsPosition(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(5)
	r := newRun(time.Now())

	_ = h.Save(ctx, r)
	_ = h.Save(ctx, r)

	list, _ := h.List(ctx, 10)
	if len(list) != 1 {
		t.Errorf("List() length = %d, want 1", len(list))
	}
}

func TestSummarize(t *testing.T) {
	valid := FileReport{
		Name:       "a.txt",
		Validation: &ValidationResult{Valid: true},
		Transfer:   &TransferResult{Success: true, Transfers: []TransferInfo{{PickingID: 1}, {PickingID: 2}}},
	}
	invalid := FileReport{Name: "b.txt", Validation: &ValidationResult{Valid: false}}
	run := newRun(time.Now(), valid, invalid)
	run.Ignored = []string{"c.csv"}

	s := Summarize(run)
	if s.OK {
		t.Error("OK = true, want false with an invalid file")
	}
	if s.Files != 2 || s.ValidFiles != 1 || s.InvalidFiles != 1 || s.Transfers != 2 || s.Ignored != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestFileReportOK(t *testing.T) {
	tests := []struct {
		name string
		f    FileReport
		want bool
	}{
		{"valid dry run", FileReport{Validation: &ValidationResult{Valid: true}}, true},
		{"valid and created", FileReport{Validation: &ValidationResult{Valid: true}, Transfer: &TransferResult{Success: true}}, true},
		{"valid but aborted", FileReport{Validation: &ValidationResult{Valid: true}, Transfer: &TransferResult{Success: false}}, false},
		{"invalid", FileReport{Validation: &ValidationResult{Valid: false}}, false},
		{"missing validation", FileReport{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}
