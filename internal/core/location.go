package core

import "github.com/JonMunkholm/stocktransfer/internal/config"

// LocationResolver maps free-text location names to ERP identifiers.
// It reads the tables it was built with and never modifies them.
type LocationResolver struct {
	tables *config.Locations
}

// NewLocationResolver returns a resolver over the given tables.
func NewLocationResolver(tables *config.Locations) *LocationResolver {
	return &LocationResolver{tables: tables}
}

// Normalize trims and upper-cases a location as written in a file.
func (r *LocationResolver) Normalize(raw string) string {
	return config.NormalizeKey(raw)
}

// Resolve returns the canonical name for raw text. Names without an alias
// are already canonical.
func (r *LocationResolver) Resolve(raw string) string {
	name := r.Normalize(raw)
	if canonical, ok := r.tables.Aliases[name]; ok {
		return canonical
	}
	return name
}

// Lookup returns the location id and picking type id of a canonical name.
// ok is false unless both tables list it.
func (r *LocationResolver) Lookup(canonical string) (locationID, pickingTypeID int64, ok bool) {
	locationID, okLoc := r.tables.Locations[canonical]
	pickingTypeID, okType := r.tables.PickingTypes[canonical]
	if !okLoc || !okType {
		return 0, 0, false
	}
	return locationID, pickingTypeID, true
}

// SourceID returns the stock.location id goods leave from.
func (r *LocationResolver) SourceID() int64 {
	return r.tables.SourceID()
}
