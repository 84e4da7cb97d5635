package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is a numeric cell that may be missing.
type Value struct {
	Float float64
	Valid bool
}

// Some wraps a present number. NaN is treated as missing.
func Some(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Float: f, Valid: true}
}

// Missing returns the missing sentinel.
func Missing() Value { return Value{} }

func (v Value) IsMissing() bool { return !v.Valid }

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// WideTable is the loaded dataset: one record per identifier, one value per
// year column. Values in each record are aligned with YearColumns.
type WideTable struct {
	YearColumns []string     `json:"year_columns"`
	Records     []WideRecord `json:"records"`
}

type WideRecord struct {
	Identifier string  `json:"identifier"`
	Values     []Value `json:"values"`
}

// LongRecord is one (identifier, year) observation.
type LongRecord struct {
	Identifier string `json:"identifier"`
	Year       int    `json:"year"`
	Value      Value  `json:"value"`
}

type YearRange struct {
	Min int `json:"min" validate:"ltefield=Max"`
	Max int `json:"max"`
}

// Contains reports whether year falls inside the inclusive range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// FilterSelection is what the user picked. Identifiers keep caller order.
type FilterSelection struct {
	Years       YearRange `json:"years"`
	Identifiers []string  `json:"identifiers" validate:"dive,required"`
}

// MetricResult is the growth summary for one identifier over the selected range.
type MetricResult struct {
	Identifier string `json:"identifier"`
	FirstValue Value  `json:"first_value"`
	LastValue  Value  `json:"last_value"`
	// Ratio is only meaningful when HasRatio is set.
	Ratio    float64 `json:"ratio"`
	HasRatio bool    `json:"has_ratio"`
	Growth   string  `json:"growth"`
	Display  string  `json:"display"`
}

type Point struct {
	Year  int   `json:"year"`
	Value Value `json:"value"`
}

// Series is the chart line for one identifier.
type Series struct {
	Identifier string  `json:"identifier"`
	Points     []Point `json:"points"`
}

// Options feeds the selection controls.
type Options struct {
	Bounds      YearRange       `json:"bounds"`
	Identifiers []string        `json:"identifiers"`
	Default     FilterSelection `json:"default_selection"`
	Source      string          `json:"source"`
}

// DashboardView is everything one filter change produces.
type DashboardView struct {
	Selection   FilterSelection `json:"selection"`
	Series      []Series        `json:"series"`
	Metrics     []MetricResult  `json:"metrics"`
	MetricsYear int             `json:"metrics_year"`
	Notice      string          `json:"notice,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
}
