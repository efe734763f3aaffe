package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stocktransfer/internal/config"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
	"github.com/JonMunkholm/stocktransfer/internal/metrics"
)

// DefaultRunTimeout is the maximum duration of a run.
const DefaultRunTimeout = 10 * time.Minute

// DefaultAllowedExt is the only extension processed by default.
const DefaultAllowedExt = ".txt"

// Options configures a Service.
type Options struct {
	// Encoding is a FILE_ENCODING value; empty means latin1.
	Encoding      string
	AllowedExt    string
	MaxConcurrent int
	MaxWait       time.Duration
	RunTimeout    time.Duration
}

// OptionsFromConfig extracts service options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Encoding:      cfg.Transfer.Encoding,
		AllowedExt:    cfg.Upload.AllowedExt,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		RunTimeout:    cfg.Upload.Timeout,
	}
}

// Service runs the import pipeline: validate each file, then create its
// transfers when the whole file is valid.
type Service struct {
	validator *Validator
	builder   *TransferBuilder
	limiter   *ProcessLimiter
	history   HistoryStore

	allowedExt string
	runTimeout time.Duration
}

// NewService creates a Service. remote is used both as catalog and as
// transfer creator; history may be nil to keep runs in memory.
func NewService(remote ERP, locations *config.Locations, history HistoryStore, opts Options) (*Service, error) {
	enc, err := EncodingByName(opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	if locations == nil {
		return nil, fmt.Errorf("create service: location tables are required")
	}
	if history == nil {
		history = NewMemoryHistory(DefaultHistorySize)
	}
	if opts.AllowedExt == "" {
		opts.AllowedExt = DefaultAllowedExt
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}

	resolver := NewLocationResolver(locations)
	return &Service{
		validator:  NewValidator(remote, resolver, enc),
		builder:    NewTransferBuilder(remote, resolver),
		limiter:    NewProcessLimiter(opts.MaxConcurrent, opts.MaxWait),
		history:    history,
		allowedExt: strings.ToLower(opts.AllowedExt),
		runTimeout: opts.RunTimeout,
	}, nil
}

// Accepts reports whether a file name has the processed extension.
func (s *Service) Accepts(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == s.allowedExt
}

// AllowedExt returns the processed extension, e.g. ".txt".
func (s *Service) AllowedExt() string {
	return s.allowedExt
}

// Validate decodes and validates one file without creating anything.
func (s *Service) Validate(ctx context.Context, name string, data []byte) *ValidationResult {
	logger := logging.WithFields(ctx, "file", name)
	logger.Info("validating file", "bytes", len(data))

	vr := s.validator.ValidateFile(ctx, data)

	valid := 0
	for _, b := range vr.Batches {
		valid += len(b.ValidItems)
	}
	metrics.AddItems(valid, vr.InvalidItems())

	logger.Info("validation finished",
		"valid", vr.Valid,
		"format", vr.Format,
		"total_items", vr.TotalItems,
		"locations", len(vr.Batches),
		"invalid_items", vr.InvalidItems(),
		"file_errors", len(vr.Errors))
	return vr
}

// CreateTransfers creates the transfers of a valid file. It returns
// ErrNotValid when vr has any error.
func (s *Service) CreateTransfers(ctx context.Context, vr *ValidationResult) (*TransferResult, error) {
	tr, err := s.builder.Build(ctx, vr)
	if err != nil {
		return nil, err
	}
	if !tr.Success {
		logging.FromContext(ctx).Error("transfer creation aborted", "errors", fileErrorText(tr.Errors))
	}
	return tr, nil
}

// ProcessFiles runs a batch of files in order. Files with another
// extension are listed in Run.Ignored and never read. The run waits for a
// limiter slot and is saved to history when it finishes.
func (s *Service) ProcessFiles(ctx context.Context, files []NamedFile, opts ProcessOptions) (*Run, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	run := &Run{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
		Files:     []FileReport{},
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	runCtx = logging.WithRunID(runCtx, run.ID.String())
	logger := logging.FromContext(runCtx)
	logger.Info("run started", "files", len(files), "dry_run", opts.DryRun)

	for _, f := range files {
		if !s.Accepts(f.Name) {
			run.Ignored = append(run.Ignored, f.Name)
			metrics.IncFile("ignored")
			logger.Info("file ignored", "file", f.Name)
			continue
		}
		run.Files = append(run.Files, s.processFile(runCtx, f, opts))
	}

	run.FinishedAt = time.Now()
	ok := run.OK()
	metrics.ObserveRun(ok, run.FinishedAt.Sub(run.StartedAt))

	// Saving must not depend on the request still being alive.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer saveCancel()
	if err := s.history.Save(saveCtx, run); err != nil {
		logger.Error("failed to save run history", "error", err)
	}

	valid, invalid, transfers := run.Counts()
	logger.Info("run finished",
		"ok", ok,
		"valid_files", valid,
		"invalid_files", invalid,
		"transfers", transfers,
		"ignored", len(run.Ignored),
		"duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

func (s *Service) processFile(ctx context.Context, f NamedFile, opts ProcessOptions) FileReport {
	start := time.Now()
	report := FileReport{Name: f.Name}

	report.Validation = s.Validate(ctx, f.Name, f.Data)
	if report.Validation.Valid {
		metrics.IncFile("valid")
	} else {
		metrics.IncFile("invalid")
	}

	if report.Validation.Valid && !opts.DryRun {
		// Creation is not transactional: a header left without its lines
		// cannot be undone, so the pass ignores request cancellation and
		// is bounded by the run timeout only.
		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		tr, err := s.CreateTransfers(createCtx, report.Validation)
		cancel()
		if err == nil {
			report.Transfer = tr
		}
	}

	report.Duration = time.Since(start)
	return report
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.history.Get(ctx, id)
}

// ListRuns returns the most recent runs first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.history.List(ctx, limit)
}

// LimiterStatus returns the run limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until no run is in flight or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
