package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSourceLocation is the location key goods leave from when neither the
// locations file nor TRANSFER_SOURCE_LOCATION names one.
const DefaultSourceLocation = "BODEGA"

// Locations holds the ERP location tables. All keys are trimmed and
// upper-cased; the value is immutable once loaded.
type Locations struct {
	// Source is the key in Locations used as origin of every transfer.
	Source string

	// Locations maps a canonical location name to its stock.location id.
	Locations map[string]int64

	// PickingTypes maps a canonical location name to its stock.picking.type id.
	PickingTypes map[string]int64

	// Aliases maps free-text location names found in files to canonical names.
	Aliases map[string]string
}

type locationsFile struct {
	Source       string            `yaml:"source"`
	Locations    map[string]int64  `yaml:"locations"`
	PickingTypes map[string]int64  `yaml:"picking_types"`
	Aliases      map[string]string `yaml:"aliases"`
}

// LoadLocations reads the YAML location tables from path.
// A non-empty sourceOverride replaces the file's source key.
func LoadLocations(path, sourceOverride string) (*Locations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	locs, err := ParseLocations(data, sourceOverride)
	if err != nil {
		return nil, fmt.Errorf("locations file %s: %w", path, err)
	}
	return locs, nil
}

// ParseLocations decodes and validates YAML location tables.
func ParseLocations(data []byte, sourceOverride string) (*Locations, error) {
	var raw locationsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	locs := &Locations{
		Source:       NormalizeKey(raw.Source),
		Locations:    make(map[string]int64, len(raw.Locations)),
		PickingTypes: make(map[string]int64, len(raw.PickingTypes)),
		Aliases:      make(map[string]string, len(raw.Aliases)),
	}
	if s := NormalizeKey(sourceOverride); s != "" {
		locs.Source = s
	}
	if locs.Source == "" {
		locs.Source = DefaultSourceLocation
	}

	var errs []string
	for k, id := range raw.Locations {
		key := NormalizeKey(k)
		if id <= 0 {
			errs = append(errs, fmt.Sprintf("locations[%q] must be a positive id", k))
			continue
		}
		if _, dup := locs.Locations[key]; dup {
			errs = append(errs, fmt.Sprintf("locations[%q] duplicates %q after normalization", k, key))
			continue
		}
		locs.Locations[key] = id
	}
	for k, id := range raw.PickingTypes {
		key := NormalizeKey(k)
		if id <= 0 {
			errs = append(errs, fmt.Sprintf("picking_types[%q] must be a positive id", k))
			continue
		}
		if _, dup := locs.PickingTypes[key]; dup {
			errs = append(errs, fmt.Sprintf("picking_types[%q] duplicates %q after normalization", k, key))
			continue
		}
		locs.PickingTypes[key] = id
	}
	for k, v := range raw.Aliases {
		target := NormalizeKey(v)
		if target == "" {
			errs = append(errs, fmt.Sprintf("aliases[%q] has an empty target", k))
			continue
		}
		locs.Aliases[NormalizeKey(k)] = target
	}

	if _, ok := locs.Locations[locs.Source]; !ok {
		errs = append(errs, fmt.Sprintf("source location %q is not listed in locations", locs.Source))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return locs, nil
}

// SourceID returns the stock.location id of the source location.
func (l *Locations) SourceID() int64 {
	return l.Locations[l.Source]
}

// NormalizeKey trims and upper-cases a location name.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
