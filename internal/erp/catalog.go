package erp

import (
	"context"

	"github.com/tidwall/gjson"
)

// Product search fields.
const (
	FieldBarcode     = "barcode"
	FieldDefaultCode = "default_code"
)

// ProductRef is the part of a product.product record the importer uses.
type ProductRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	UomID   int64  `json:"uom_id"`
	UomName string `json:"uom_name,omitempty"`
}

var productFields = []string{"id", "name", "uom_id"}

// SearchProduct returns the first product whose field equals value,
// or nil when none matches.
func (c *Client) SearchProduct(ctx context.Context, field, value string) (*ProductRef, error) {
	domain := []any{[]any{field, "=", value}}
	res, err := c.executeKw(ctx, "product.product", "search_read",
		[]any{domain},
		map[string]any{"fields": productFields, "limit": 1})
	if err != nil {
		return nil, err
	}

	records := res.Array()
	if len(records) == 0 {
		return nil, nil
	}
	return decodeProduct(records[0]), nil
}

// decodeProduct maps a search_read record. Many2one fields arrive as
// [id, "display name"] or false.
func decodeProduct(rec gjson.Result) *ProductRef {
	p := &ProductRef{
		ID:   rec.Get("id").Int(),
		Name: rec.Get("name").String(),
	}
	uom := rec.Get("uom_id")
	switch {
	case uom.IsArray():
		parts := uom.Array()
		if len(parts) > 0 {
			p.UomID = parts[0].Int()
		}
		if len(parts) > 1 {
			p.UomName = parts[1].String()
		}
	case uom.Type == gjson.Number:
		p.UomID = uom.Int()
	}
	return p
}
