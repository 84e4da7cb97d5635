package engine

import (
	"errors"
	"strconv"
	"strings"

	"dashboard/internal/models"
)

var ErrDuplicateYear = errors.New("duplicate year column")

// Reshape pivots every year column into one LongRecord per identifier.
// The result never aliases the wide table.
func Reshape(wide *models.WideTable) ([]models.LongRecord, error) {
	if wide == nil {
		return []models.LongRecord{}, nil
	}

	years := make([]int, len(wide.YearColumns))
	seen := make(map[int]struct{}, len(wide.YearColumns))
	for i, col := range wide.YearColumns {
		y, err := strconv.Atoi(strings.TrimSpace(col))
		if err != nil {
			return nil, &SchemaError{Column: col, Err: err}
		}
		if _, dup := seen[y]; dup {
			return nil, &SchemaError{Column: col, Err: ErrDuplicateYear}
		}
		seen[y] = struct{}{}
		years[i] = y
	}

	long := make([]models.LongRecord, 0, len(wide.Records)*len(years))
	for _, rec := range wide.Records {
		for i, y := range years {
			v := models.Missing()
			if i < len(rec.Values) {
				v = rec.Values[i]
			}
			long = append(long, models.LongRecord{Identifier: rec.Identifier, Year: y, Value: v})
		}
	}
	return long, nil
}
