package core

// format.go recognizes the two column layouts of transfer files.
//
// Each layout lists its canonical fields with a priority-ordered list of
// header synonyms. A layout is satisfied when every field resolves to a
// header present in the file. Layout A is always tried before layout B; a
// header row can satisfy both (SUCURSAL, TIENDA and CANTIDAD appear in both
// lists) and then A wins.

import "strings"

// Format identifies a file layout.
type Format string

const (
	FormatA Format = "FORMATO1"
	FormatB Format = "FORMATO2"
)

// Canonical field names.
const (
	FieldBarcode     = "COD_BARRA"
	FieldQuantity    = "CANTIDAD"
	FieldDestination = "TIENDA_DESTINO"

	FieldCode       = "CÓDIGO"
	FieldReference  = "REFERENCIA INTERNA"
	FieldBranch     = "SUCURSAL"
	FieldAssortment = "SURTIDO"
)

// FieldSynonyms is a canonical field with its accepted header names.
type FieldSynonyms struct {
	Name     string
	Synonyms []string
}

// FormatDefinition describes one layout.
type FormatDefinition struct {
	Format Format
	Fields []FieldSynonyms

	// GroupBy is the field rows are grouped by into location batches.
	GroupBy string
	// CodeField holds the product barcode.
	CodeField string
	// QuantityField holds the quantity to move.
	QuantityField string
	// ReferenceField holds the internal reference used as lookup fallback.
	// Empty when the layout has no fallback.
	ReferenceField string
}

// ColumnMapping maps each canonical field to the header found in the file.
type ColumnMapping map[string]string

var formatA = FormatDefinition{
	Format: FormatA,
	Fields: []FieldSynonyms{
		{FieldBarcode, []string{"COD_BARRA", "CODBARRA", "CODIGO_BARRA", "CODIGOBARRAS", "BARCODE"}},
		{FieldQuantity, []string{"CANTIDAD", "CANT", "QTY", "QUANTITY"}},
		{FieldDestination, []string{"NBR_CLIENTE", "TIENDA", "DESTINO", "SUCURSAL"}},
	},
	GroupBy:       FieldDestination,
	CodeField:     FieldBarcode,
	QuantityField: FieldQuantity,
}

var formatB = FormatDefinition{
	Format: FormatB,
	Fields: []FieldSynonyms{
		{FieldCode, []string{"CÓDIGO", "CODIGO", "CODE", "COD", "BARCODE"}},
		{FieldReference, []string{"REFERENCIA INTERNA", "REFERENCIAINTERNA", "REF_INTERNA", "INTERNAL_REFERENCE"}},
		{FieldBranch, []string{"SUCURSAL", "BODEGA", "ALMACEN", "TIENDA", "WAREHOUSE"}},
		{FieldAssortment, []string{"SURTIDO", "CANTIDAD", "CANT", "QTY", "QUANTITY"}},
	},
	GroupBy:        FieldBranch,
	CodeField:      FieldCode,
	QuantityField:  FieldAssortment,
	ReferenceField: FieldReference,
}

// formats is the detection order.
var formats = []*FormatDefinition{&formatA, &formatB}

// Formats returns the known layouts in detection order.
func Formats() []FormatDefinition {
	out := make([]FormatDefinition, len(formats))
	for i, f := range formats {
		out[i] = *f
	}
	return out
}

// NormalizeHeader strips a byte-order mark, trims and upper-cases a header.
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", "")))
}

// DetectFormat picks the first layout whose fields all resolve against the
// normalized headers. It returns a *FormatError listing the headers when
// none does.
func DetectFormat(headers []string) (*FormatDefinition, ColumnMapping, error) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	for _, def := range formats {
		if mapping, ok := def.resolve(present); ok {
			return def, mapping, nil
		}
	}
	return nil, nil, &FormatError{Found: append([]string(nil), headers...)}
}

func (d *FormatDefinition) resolve(present map[string]struct{}) (ColumnMapping, bool) {
	mapping := make(ColumnMapping, len(d.Fields))
	for _, f := range d.Fields {
		found := ""
		for _, syn := range f.Synonyms {
			if _, ok := present[syn]; ok {
				found = syn
				break
			}
		}
		if found == "" {
			return nil, false
		}
		mapping[f.Name] = found
	}
	return mapping, true
}
