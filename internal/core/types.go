package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/stocktransfer/internal/erp"
)

// Catalog looks products up in the ERP. A nil product with a nil error
// means no record matched.
type Catalog interface {
	SearchProduct(ctx context.Context, field, value string) (*erp.ProductRef, error)
}

// TransferCreator creates transfer headers and lines in the ERP.
type TransferCreator interface {
	CreatePicking(ctx context.Context, p erp.PickingRequest) (int64, error)
	CreateMove(ctx context.Context, m erp.MoveRequest) (int64, error)
}

// ERP is everything the service needs from the remote system.
type ERP interface {
	Catalog
	TransferCreator
}

// ValidationResult is the outcome of validating one file.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Format     Format           `json:"format,omitempty"`
	Mapping    ColumnMapping    `json:"column_mapping,omitempty"`
	TotalItems int              `json:"total_items"`
	Errors     []FileError      `json:"errors,omitempty"`
	Batches    []*LocationBatch `json:"batches"`
}

// Batch returns the batch for a canonical location, or nil.
func (r *ValidationResult) Batch(location string) *LocationBatch {
	for _, b := range r.Batches {
		if b.Location == location {
			return b
		}
	}
	return nil
}

// InvalidItems counts invalid rows across all batches.
func (r *ValidationResult) InvalidItems() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.InvalidItems)
	}
	return n
}

// LocationBatch groups the rows of a file that go to one destination.
type LocationBatch struct {
	// Location is the canonical destination after alias resolution.
	Location string `json:"location"`
	// OriginalName is the location as written in the file, trimmed and upper-cased.
	OriginalName  string            `json:"original_name"`
	Valid         bool              `json:"valid"`
	Error         string            `json:"error,omitempty"`
	TotalItems    int               `json:"total_items"`
	ValidItems    []*ItemValidation `json:"valid_items"`
	InvalidItems  []*ItemValidation `json:"invalid_items"`
	LocationID    int64             `json:"location_id,omitempty"`
	PickingTypeID int64             `json:"picking_type_id,omitempty"`
}

// ItemValidation is the outcome of validating one data row.
type ItemValidation struct {
	// Row is the line number in the file; the header is line 1.
	Row       int             `json:"row"`
	Valid     bool            `json:"valid"`
	Errors    []string        `json:"errors,omitempty"`
	Code      string          `json:"code"`
	Reference string          `json:"reference,omitempty"`
	RawQty    string          `json:"raw_quantity"`
	Quantity  decimal.Decimal `json:"quantity"`
	Product   *erp.ProductRef `json:"product,omitempty"`
}

// Err returns the row's problems as a *RowError, or nil for a valid row.
func (it *ItemValidation) Err() error {
	if len(it.Errors) == 0 {
		return nil
	}
	return &RowError{Row: it.Row, Messages: it.Errors}
}

// TransferResult is the outcome of creating the transfers of one valid file.
type TransferResult struct {
	Success    bool           `json:"success"`
	Transfers  []TransferInfo `json:"transfers"`
	LineErrors []LineError    `json:"line_errors,omitempty"`
	Errors     []FileError    `json:"errors,omitempty"`
}

// TransferInfo describes one created transfer header.
type TransferInfo struct {
	PickingID      int64  `json:"picking_id"`
	Location       string `json:"location"`
	OriginalName   string `json:"original_name"`
	ItemsProcessed int    `json:"items_processed"`
	ItemsFailed    int    `json:"items_failed"`
}

// LineError records a transfer line the ERP refused.
type LineError struct {
	PickingID int64  `json:"picking_id"`
	ProductID int64  `json:"product_id"`
	Message   string `json:"message"`
}

// Run is one processing request covering one or more files.
type Run struct {
	ID         uuid.UUID    `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DryRun     bool         `json:"dry_run"`
	Files      []FileReport `json:"files"`
	Ignored    []string     `json:"ignored,omitempty"`
	IPAddress  string       `json:"ip_address,omitempty"`
	UserAgent  string       `json:"user_agent,omitempty"`
}

// OK reports whether every file validated and every transfer pass succeeded.
func (r *Run) OK() bool {
	for _, f := range r.Files {
		if !f.OK() {
			return false
		}
	}
	return true
}

// Counts returns the number of valid files, invalid files and created transfers.
func (r *Run) Counts() (valid, invalid, transfers int) {
	for _, f := range r.Files {
		if f.Validation != nil && f.Validation.Valid {
			valid++
		} else {
			invalid++
		}
		if f.Transfer != nil {
			transfers += len(f.Transfer.Transfers)
		}
	}
	return valid, invalid, transfers
}

// FileReport holds everything that happened to one file of a run.
type FileReport struct {
	Name       string            `json:"name"`
	Validation *ValidationResult `json:"validation"`
	// Transfer is nil when creation was not attempted.
	Transfer *TransferResult `json:"transfer,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// OK reports whether the file validated and, if transfers were attempted,
// the creation pass did not abort.
func (f *FileReport) OK() bool {
	if f.Validation == nil || !f.Validation.Valid {
		return false
	}
	return f.Transfer == nil || f.Transfer.Success
}

// NamedFile is an input file of a run.
type NamedFile struct {
	Name string
	Data []byte
}

// ProcessOptions controls a run.
type ProcessOptions struct {
	// DryRun validates without creating transfers.
	DryRun bool
}
