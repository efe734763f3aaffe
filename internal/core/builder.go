package core

// builder.go creates ERP transfers for a validated file.
//
// One stock.picking is created per batch and one stock.move per valid item.
// Line failures are recorded and skipped. A header failure or a cancelled
// context stops the pass: the result is marked unsuccessful and the
// remaining batches are not attempted. Records already created stay in the
// ERP; nothing is rolled back.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/stocktransfer/internal/erp"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
	"github.com/JonMunkholm/stocktransfer/internal/metrics"
)

// OriginTimeLayout formats the timestamp embedded in origin labels.
const OriginTimeLayout = "2006-01-02 15:04"

// ErrNotValid is returned when transfers are requested for an invalid file.
var ErrNotValid = errors.New("file has validation errors, transfers not created")

// TransferBuilder creates transfers through a TransferCreator.
type TransferBuilder struct {
	creator   TransferCreator
	locations *LocationResolver
	now       func() time.Time
}

// NewTransferBuilder creates a builder that moves goods out of the
// resolver's source location.
func NewTransferBuilder(creator TransferCreator, locations *LocationResolver) *TransferBuilder {
	return &TransferBuilder{
		creator:   creator,
		locations: locations,
		now:       time.Now,
	}
}

// OriginLabel is the human-readable origin stored on a picking.
func OriginLabel(originalName string, at time.Time) string {
	return fmt.Sprintf("Auto-importación %s - %s", originalName, at.Format(OriginTimeLayout))
}

// Build creates the transfers of vr. It returns ErrNotValid without any
// ERP call when vr is not valid.
func (b *TransferBuilder) Build(ctx context.Context, vr *ValidationResult) (*TransferResult, error) {
	if vr == nil || !vr.Valid {
		return nil, ErrNotValid
	}

	result := &TransferResult{Success: true, Transfers: []TransferInfo{}}
	sourceID := b.locations.SourceID()
	logger := logging.FromContext(ctx)

	for _, batch := range vr.Batches {
		if len(batch.ValidItems) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return b.abort(result, &SystemError{Op: "create transfers", Err: err}), nil
		}

		pickingID, err := b.creator.CreatePicking(ctx, erp.PickingRequest{
			PickingTypeID:  batch.PickingTypeID,
			LocationID:     sourceID,
			LocationDestID: batch.LocationID,
			Origin:         OriginLabel(batch.OriginalName, b.now()),
		})
		metrics.IncPicking(err)
		if err != nil {
			return b.abort(result, &SystemError{Op: "create picking for " + batch.Location, Err: err}), nil
		}

		info := TransferInfo{
			PickingID:    pickingID,
			Location:     batch.Location,
			OriginalName: batch.OriginalName,
		}

		// Once the header exists every line is attempted, so each valid item
		// ends up either processed or in LineErrors.
		for _, item := range batch.ValidItems {
			_, err := b.creator.CreateMove(ctx, erp.MoveRequest{
				Name:           item.Product.Name,
				ProductID:      item.Product.ID,
				Quantity:       item.Quantity,
				UomID:          item.Product.UomID,
				PickingID:      pickingID,
				LocationID:     sourceID,
				LocationDestID: batch.LocationID,
			})
			metrics.IncMove(err)
			if err != nil {
				info.ItemsFailed++
				result.LineErrors = append(result.LineErrors, LineError{
					PickingID: pickingID,
					ProductID: item.Product.ID,
					Message:   err.Error(),
				})
				logger.Warn("transfer line rejected",
					"picking_id", pickingID,
					"product_id", item.Product.ID,
					"row", item.Row,
					"error", err)
				continue
			}
			info.ItemsProcessed++
		}

		result.Transfers = append(result.Transfers, info)
		logger.Info("transfer created",
			"picking_id", pickingID,
			"location", batch.Location,
			"items_processed", info.ItemsProcessed,
			"items_failed", info.ItemsFailed)
	}

	return result, nil
}

func (b *TransferBuilder) abort(result *TransferResult, err *SystemError) *TransferResult {
	result.Success = false
	result.Errors = append(result.Errors, toFileError(err))
	return result
}
