package engine

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dashboard/internal/models"
)

// NotAvailable is shown when a growth ratio cannot be computed.
const NotAvailable = "n/a"

// Catalog answers whether an identifier exists anywhere in the dataset.
type Catalog interface {
	Has(identifier string) bool
}

type recordCatalog map[string]struct{}

func (c recordCatalog) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// ComputeMetrics summarises each selected identifier, in selection order,
// from the filtered records. The baseline is the first year of the selected
// range. Identifiers the catalog does not know are left out and reported in
// a *LookupError returned alongside the remaining results. A nil catalog
// treats identifiers absent from records as unknown.
func ComputeMetrics(records []models.LongRecord, sel models.FilterSelection, catalog Catalog) ([]models.MetricResult, error) {
	if catalog == nil {
		known := make(recordCatalog)
		for _, r := range records {
			known[r.Identifier] = struct{}{}
		}
		catalog = known
	}

	type endpoints struct{ first, last models.Value }
	byID := make(map[string]*endpoints, len(sel.Identifiers))
	for _, id := range sel.Identifiers {
		byID[id] = &endpoints{}
	}
	for _, r := range records {
		e, ok := byID[r.Identifier]
		if !ok {
			continue
		}
		if r.Year == sel.Years.Min {
			e.first = r.Value
		}
		if r.Year == sel.Years.Max {
			e.last = r.Value
		}
	}

	p := message.NewPrinter(language.English)
	results := make([]models.MetricResult, 0, len(sel.Identifiers))
	var unknown []string
	done := make(map[string]struct{}, len(sel.Identifiers))
	for _, id := range sel.Identifiers {
		if _, dup := done[id]; dup {
			continue
		}
		done[id] = struct{}{}
		if !catalog.Has(id) {
			unknown = append(unknown, id)
			continue
		}
		e := byID[id]
		results = append(results, metric(p, id, e.first, e.last))
	}

	if len(unknown) > 0 {
		return results, &LookupError{Identifiers: unknown}
	}
	return results, nil
}

// metric applies the ratio policy: a missing or zero first value, a
// missing last value, or a ratio that overflows float64 yields n/a.
func metric(p *message.Printer, id string, first, last models.Value) models.MetricResult {
	m := models.MetricResult{
		Identifier: id,
		FirstValue: first,
		LastValue:  last,
		Growth:     NotAvailable,
		Display:    NotAvailable,
	}
	if last.Valid {
		m.Display = p.Sprintf("%.0f", last.Float)
	}
	if !first.Valid || !last.Valid || first.Float == 0 {
		return m
	}
	ratio := last.Float / first.Float
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return m
	}
	m.Ratio = ratio
	m.HasRatio = true
	m.Growth = FormatRatio(p, ratio)
	return m
}

// FormatRatio renders a ratio as a grouped two-decimal multiplier, e.g. 2.35x.
func FormatRatio(p *message.Printer, ratio float64) string {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return p.Sprintf("%.2fx", ratio)
}
