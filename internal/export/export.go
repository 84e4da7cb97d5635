// Package export writes filtered long-form rows for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"dashboard/internal/models"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatArrow Format = "arrow"
)

// ParseFormat accepts "csv" (the default for an empty string) or "arrow".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatArrow:
		return FormatArrow, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatArrow {
		return "application/vnd.apache.arrow.stream"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string {
	if f == FormatArrow {
		return ".arrows"
	}
	return ".csv"
}

// Write encodes records in format f.
func Write(w io.Writer, f Format, records []models.LongRecord) error {
	if f == FormatArrow {
		return WriteArrow(w, records)
	}
	return WriteCSV(w, records)
}

// WriteCSV writes Identifier,Year,Value rows. Missing values are blank.
func WriteCSV(w io.Writer, records []models.LongRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Identifier", "Year", "Value"}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, r := range records {
		if err := cw.Write([]string{r.Identifier, strconv.Itoa(r.Year), r.Value.String()}); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Schema is the Arrow layout of a long-form table.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "identifier", Type: arrow.BinaryTypes.String},
	{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// WriteArrow writes records as a single-batch Arrow IPC stream.
func WriteArrow(w io.Writer, records []models.LongRecord) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	ids := b.Field(0).(*array.StringBuilder)
	years := b.Field(1).(*array.Int32Builder)
	values := b.Field(2).(*array.Float64Builder)
	ids.Reserve(len(records))
	years.Reserve(len(records))
	values.Reserve(len(records))
	for _, r := range records {
		ids.Append(r.Identifier)
		years.Append(int32(r.Year))
		if r.Value.Valid {
			values.Append(r.Value.Float)
		} else {
			values.AppendNull()
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("write arrow batch: %w", err)
	}
	return iw.Close()
}
