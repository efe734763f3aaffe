package core

// validator.go checks a decoded file row by row against the ERP catalog.
//
// Rows are grouped into one batch per canonical destination. A batch whose
// destination is missing from the location tables is invalid as a whole and
// its rows are not looked up. Every other row is checked for a positive
// quantity and a catalog match; both checks always run so the user sees
// every problem of a row at once. Row and location problems are values in
// the result. Only faults that make the file unreadable, or a failing
// catalog call, abort the file.

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"

	"github.com/JonMunkholm/stocktransfer/internal/erp"
)

// Quantity error reasons.
const (
	reasonNotPositive = "La cantidad debe ser mayor que 0"
	reasonNotANumber  = "no es un número válido"
)

// Validator validates transfer files.
type Validator struct {
	catalog   Catalog
	locations *LocationResolver
	encoding  encoding.Encoding
}

// NewValidator creates a validator. A nil encoding means ISO-8859-1.
func NewValidator(catalog Catalog, locations *LocationResolver, enc encoding.Encoding) *Validator {
	return &Validator{
		catalog:   catalog,
		locations: locations,
		encoding:  enc,
	}
}

// ValidateFile decodes and validates raw file bytes.
func (v *Validator) ValidateFile(ctx context.Context, data []byte) *ValidationResult {
	t, err := ReadTable(data, v.encoding)
	if err != nil {
		return failed(&ValidationResult{Batches: []*LocationBatch{}}, err)
	}
	return v.ValidateTable(ctx, t)
}

// ValidateTable validates an already decoded file.
func (v *Validator) ValidateTable(ctx context.Context, t *Table) *ValidationResult {
	result := &ValidationResult{
		Valid:      true,
		TotalItems: len(t.Records),
		Batches:    []*LocationBatch{},
	}

	def, mapping, err := DetectFormat(t.Headers)
	if err != nil {
		return failed(result, err)
	}
	result.Format = def.Format
	result.Mapping = mapping

	cols := columnsFor(t, def, mapping)
	groups := v.groupRecords(t.Records, cols.group)

	for _, g := range groups {
		result.Batches = append(result.Batches, g.batch)

		id, typeID, ok := v.locations.Lookup(g.batch.Location)
		if !ok {
			g.batch.Valid = false
			g.batch.Error = (&LocationError{OriginalName: g.batch.OriginalName}).Error()
			result.Valid = false
			continue
		}
		g.batch.LocationID = id
		g.batch.PickingTypeID = typeID

		for _, rec := range g.records {
			if err := ctx.Err(); err != nil {
				return failed(result, &SystemError{Op: "validate rows", Err: err})
			}

			item, err := v.validateRow(ctx, def, cols, rec)
			if err != nil {
				return failed(result, err)
			}
			if item.Valid {
				g.batch.ValidItems = append(g.batch.ValidItems, item)
			} else {
				g.batch.InvalidItems = append(g.batch.InvalidItems, item)
				g.batch.Valid = false
				result.Valid = false
			}
		}
	}

	return result
}

// failed marks result invalid with a file-level error.
func failed(result *ValidationResult, err error) *ValidationResult {
	result.Valid = false
	result.Errors = append(result.Errors, toFileError(err))
	return result
}

type columns struct {
	code, quantity, reference, group int
}

func columnsFor(t *Table, def *FormatDefinition, mapping ColumnMapping) columns {
	c := columns{
		code:      t.Column(mapping[def.CodeField]),
		quantity:  t.Column(mapping[def.QuantityField]),
		group:     t.Column(mapping[def.GroupBy]),
		reference: -1,
	}
	if def.ReferenceField != "" {
		c.reference = t.Column(mapping[def.ReferenceField])
	}
	return c
}

type group struct {
	batch   *LocationBatch
	records []Record
}

// groupRecords splits records by canonical destination. Groups come back sorted by
// canonical name; records keep file order. The original name kept for a
// group is the first one seen.
func (v *Validator) groupRecords(records []Record, col int) []*group {
	byKey := make(map[string]*group)
	for _, rec := range records {
		raw := rec.Get(col)
		key := v.locations.Resolve(raw)
		g, ok := byKey[key]
		if !ok {
			g = &group{batch: &LocationBatch{
				Location:     key,
				OriginalName: v.locations.Normalize(raw),
				Valid:        true,
				ValidItems:   []*ItemValidation{},
				InvalidItems: []*ItemValidation{},
			}}
			byKey[key] = g
		}
		g.records = append(g.records, rec)
		g.batch.TotalItems++
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*group, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// validateRow checks quantity and catalog match for one record. The error
// is non-nil only for faults that must abort the file.
func (v *Validator) validateRow(ctx context.Context, def *FormatDefinition, cols columns, rec Record) (*ItemValidation, error) {
	item := &ItemValidation{
		Row:    rec.Line,
		Valid:  true,
		Code:   NormalizeCode(rec.Get(cols.code)),
		RawQty: rec.Get(cols.quantity),
	}
	if cols.reference >= 0 {
		item.Reference = strings.TrimSpace(rec.Get(cols.reference))
	}

	qty, reason, ok := ParseQuantity(item.RawQty)
	if ok {
		item.Quantity = qty
	} else {
		item.Valid = false
		item.Errors = append(item.Errors, fmt.Sprintf("Cantidad inválida: %s - %s", item.RawQty, reason))
	}

	product, err := v.findProduct(ctx, def, item.Code, item.Reference)
	if err != nil {
		return nil, &SystemError{Op: fmt.Sprintf("catalog lookup (line %d)", rec.Line), Err: err}
	}
	if product == nil {
		item.Valid = false
		msg := "Producto no encontrado - Código de barras: " + item.Code
		if def.ReferenceField != "" {
			msg += ", Referencia: " + item.Reference
		}
		item.Errors = append(item.Errors, msg)
	}

	if item.Valid {
		item.Product = product
	}
	return item, nil
}

// findProduct looks the barcode up and, for layouts with a reference
// column, falls back to the internal reference. Empty identifiers are never
// sent to the ERP.
func (v *Validator) findProduct(ctx context.Context, def *FormatDefinition, code, reference string) (*erp.ProductRef, error) {
	if code != "" {
		p, err := v.catalog.SearchProduct(ctx, erp.FieldBarcode, code)
		if err != nil || p != nil {
			return p, err
		}
	}
	if def.ReferenceField != "" && reference != "" {
		return v.catalog.SearchProduct(ctx, erp.FieldDefaultCode, reference)
	}
	return nil, nil
}

// NormalizeCode trims a product code and removes spaces and hyphens.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// ParseQuantity parses a strictly positive quantity. When ok is false,
// reason says why.
func ParseQuantity(raw string) (qty decimal.Decimal, reason string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, reasonNotANumber, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, reasonNotANumber, false
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, reasonNotPositive, false
	}
	// The ERP receives quantities as JSON floats.
	if f, _ := d.Float64(); math.IsInf(f, 0) || math.IsNaN(f) || f == 0 {
		return decimal.Decimal{}, reasonNotANumber, false
	}
	return d, "", true
}
