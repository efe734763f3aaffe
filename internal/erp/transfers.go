package erp

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// PickingRequest holds the header fields of a stock.picking.
type PickingRequest struct {
	PickingTypeID  int64
	LocationID     int64
	LocationDestID int64
	Origin         string
}

// MoveRequest holds the fields of one stock.move line.
type MoveRequest struct {
	Name           string
	ProductID      int64
	Quantity       decimal.Decimal
	UomID          int64
	PickingID      int64
	LocationID     int64
	LocationDestID int64
}

// CreatePicking creates a transfer header and returns its id.
func (c *Client) CreatePicking(ctx context.Context, p PickingRequest) (int64, error) {
	vals := map[string]any{
		"picking_type_id":  p.PickingTypeID,
		"location_id":      p.LocationID,
		"location_dest_id": p.LocationDestID,
		"origin":           p.Origin,
	}
	return c.create(ctx, "stock.picking", vals)
}

// CreateMove creates a transfer line and returns its id.
func (c *Client) CreateMove(ctx context.Context, m MoveRequest) (int64, error) {
	qty, _ := m.Quantity.Float64()
	vals := map[string]any{
		"name":             m.Name,
		"product_id":       m.ProductID,
		"product_uom_qty":  qty,
		"product_uom":      m.UomID,
		"picking_id":       m.PickingID,
		"location_id":      m.LocationID,
		"location_dest_id": m.LocationDestID,
	}
	return c.create(ctx, "stock.move", vals)
}

// create returns the new record id. Odoo answers a single id, or a
// one-element list when create is called in batch mode.
func (c *Client) create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	res, err := c.executeKw(ctx, model, "create", []any{vals}, nil)
	if err != nil {
		return 0, err
	}

	id := res
	if res.IsArray() {
		id = res.Get("0")
	}
	if id.Type != gjson.Number || id.Int() <= 0 {
		return 0, fmt.Errorf("erp: %s.create returned %s", model, res.Raw)
	}
	return id.Int(), nil
}
