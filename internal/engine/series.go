package engine

import (
	"cmp"
	"slices"

	"dashboard/internal/models"
)

// GroupSeries turns filtered rows into one chart line per identifier,
// ordered as in order and sorted by year. Identifiers without rows are
// skipped.
func GroupSeries(records []models.LongRecord, order []string) []models.Series {
	points := make(map[string][]models.Point, len(order))
	for _, r := range records {
		points[r.Identifier] = append(points[r.Identifier], models.Point{Year: r.Year, Value: r.Value})
	}

	out := make([]models.Series, 0, len(order))
	for _, id := range order {
		ps, ok := points[id]
		if !ok {
			continue
		}
		delete(points, id)
		slices.SortFunc(ps, func(a, b models.Point) int { return cmp.Compare(a.Year, b.Year) })
		out = append(out, models.Series{Identifier: id, Points: ps})
	}
	return out
}
