package engine

import (
	"slices"
	"time"

	"dashboard/internal/models"
)

// Dataset is the reshaped, indexed table. It is built once per load and
// never mutated afterwards, so it can be shared freely between requests.
type Dataset struct {
	source      string
	loadedAt    time.Time
	records     []models.LongRecord
	identifiers []string
	known       map[string]struct{}
	bounds      models.YearRange
}

// NewDataset reshapes wide and indexes the result.
func NewDataset(source string, wide *models.WideTable) (*Dataset, error) {
	long, err := Reshape(wide)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		source:   source,
		loadedAt: time.Now(),
		records:  long,
		known:    make(map[string]struct{}),
	}
	// The catalog comes from the wide rows so identifiers survive a table
	// without year columns.
	if wide != nil {
		for _, rec := range wide.Records {
			if _, ok := d.known[rec.Identifier]; !ok {
				d.known[rec.Identifier] = struct{}{}
				d.identifiers = append(d.identifiers, rec.Identifier)
			}
		}
	}
	for i, r := range long {
		if i == 0 || r.Year < d.bounds.Min {
			d.bounds.Min = r.Year
		}
		if i == 0 || r.Year > d.bounds.Max {
			d.bounds.Max = r.Year
		}
	}
	return d, nil
}

// Records returns a copy of the long table.
func (d *Dataset) Records() []models.LongRecord { return slices.Clone(d.records) }

// Identifiers returns every identifier in dataset order.
func (d *Dataset) Identifiers() []string { return slices.Clone(d.identifiers) }

func (d *Dataset) Has(identifier string) bool {
	_, ok := d.known[identifier]
	return ok
}

// Bounds is the observed year range. It is zero for an empty dataset.
func (d *Dataset) Bounds() models.YearRange { return d.bounds }

func (d *Dataset) Empty() bool { return len(d.records) == 0 }

func (d *Dataset) Len() int { return len(d.records) }

func (d *Dataset) Source() string { return d.source }

func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Filter runs Filter over the dataset without copying the table first.
func (d *Dataset) Filter(sel models.FilterSelection) []models.LongRecord {
	return Filter(d.records, sel)
}

// DefaultSelection is the full year range and the first n identifiers.
func (d *Dataset) DefaultSelection(n int) models.FilterSelection {
	n = min(max(n, 0), len(d.identifiers))
	return models.FilterSelection{
		Years:       d.bounds,
		Identifiers: slices.Clone(d.identifiers[:n]),
	}
}
