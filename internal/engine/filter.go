package engine

import "dashboard/internal/models"

// Filter returns the records whose identifier is selected and whose year is
// inside the selected range. It never returns nil.
func Filter(records []models.LongRecord, sel models.FilterSelection) []models.LongRecord {
	out := make([]models.LongRecord, 0)
	if len(sel.Identifiers) == 0 {
		return out
	}

	wanted := make(map[string]struct{}, len(sel.Identifiers))
	for _, id := range sel.Identifiers {
		wanted[id] = struct{}{}
	}
	for _, r := range records {
		if !sel.Years.Contains(r.Year) {
			continue
		}
		if _, ok := wanted[r.Identifier]; ok {
			out = append(out, r)
		}
	}
	return out
}
