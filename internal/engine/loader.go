package engine

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"dashboard/internal/models"
)

var (
	ErrEmptyFile           = errors.New("file has no header row")
	ErrMissingColumn       = errors.New("missing column")
	ErrEmptyIdentifier     = errors.New("empty identifier")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrInvalidCell         = errors.New("invalid numeric cell")
)

// DefaultIdentifierColumn is the header of the key column.
const DefaultIdentifierColumn = "Identifier"

// Opener resolves a dataset location into a byte stream.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

type fileOpener struct{}

func (fileOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	return os.Open(location)
}

// LoaderConfig controls how a wide table is read.
type LoaderConfig struct {
	IdentifierColumn string
	// Years selects exactly these year columns. Zero selects every
	// non-identifier column.
	Years models.YearRange
	// Comma overrides the delimiter. Zero picks by extension.
	Comma rune
	// Sheet picks the workbook sheet for xlsx input. Empty means the first.
	Sheet string
}

type Loader struct {
	cfg    LoaderConfig
	opener Opener
	logger *slog.Logger
}

// NewLoader builds a Loader. A nil opener reads from the local filesystem.
func NewLoader(cfg LoaderConfig, opener Opener, logger *slog.Logger) *Loader {
	if cfg.IdentifierColumn == "" {
		cfg.IdentifierColumn = DefaultIdentifierColumn
	}
	if opener == nil {
		opener = fileOpener{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, opener: opener, logger: logger.With(slog.String("component", "loader"))}
}

// LoadFile reads a local file with the default configuration.
func LoadFile(path string) (*models.WideTable, error) {
	return NewLoader(LoaderConfig{}, nil, nil).Load(context.Background(), path)
}

// Load reads the dataset at location into a wide table.
func (l *Loader) Load(ctx context.Context, location string) (*models.WideTable, error) {
	start := time.Now()

	rc, err := l.opener.Open(ctx, location)
	if err != nil {
		return nil, &DataLoadError{Location: location, Err: err}
	}
	defer rc.Close()

	var rows [][]string
	if isWorkbook(location) {
		rows, err = l.readWorkbook(rc)
	} else {
		rows, err = l.readDelimited(rc, location)
	}
	if err != nil {
		return nil, &DataLoadError{Location: location, Err: err}
	}

	table, err := l.parse(rows)
	if err != nil {
		return nil, &DataLoadError{Location: location, Err: err}
	}

	l.logger.Info("dataset read",
		slog.String("location", location),
		slog.Int("identifiers", len(table.Records)),
		slog.Int("year_columns", len(table.YearColumns)),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func extension(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	return strings.ToLower(filepath.Ext(location))
}

func isWorkbook(location string) bool {
	switch extension(location) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

func (l *Loader) readDelimited(r io.Reader, location string) ([][]string, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.TrimLeadingSpace = true
	switch {
	case l.cfg.Comma != 0:
		cr.Comma = l.cfg.Comma
	case extension(location) == ".tsv" || extension(location) == ".tab":
		cr.Comma = '\t'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func (l *Loader) readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := l.cfg.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (l *Loader) parse(rows [][]string) (*models.WideTable, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	header := rows[0]

	idCol := -1
	for i, h := range header {
		if strings.TrimSpace(h) == l.cfg.IdentifierColumn {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, l.cfg.IdentifierColumn)
	}

	yearCols, names, err := l.yearColumns(header, idCol)
	if err != nil {
		return nil, err
	}

	table := &models.WideTable{
		YearColumns: names,
		Records:     make([]models.WideRecord, 0, len(rows)-1),
	}
	seen := make(map[string]int, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		if blankRow(row) {
			continue
		}
		id := strings.TrimSpace(cell(row, idCol))
		if id == "" {
			return nil, fmt.Errorf("line %d: %w", line, ErrEmptyIdentifier)
		}
		if first, ok := seen[id]; ok {
			return nil, fmt.Errorf("line %d: %w %q (first seen on line %d)", line, ErrDuplicateIdentifier, id, first)
		}
		seen[id] = line

		values := make([]models.Value, len(yearCols))
		for i, col := range yearCols {
			v, err := parseCell(cell(row, col))
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[i], err)
			}
			values[i] = v
		}
		table.Records = append(table.Records, models.WideRecord{Identifier: id, Values: values})
	}
	return table, nil
}

// yearColumns returns the header positions and names of the value columns.
func (l *Loader) yearColumns(header []string, idCol int) ([]int, []string, error) {
	if l.cfg.Years != (models.YearRange{}) {
		index := make(map[string]int, len(header))
		for i, h := range header {
			index[strings.TrimSpace(h)] = i
		}
		var cols []int
		var names []string
		for y := l.cfg.Years.Min; y <= l.cfg.Years.Max; y++ {
			name := strconv.Itoa(y)
			i, ok := index[name]
			if !ok {
				return nil, nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
			}
			cols = append(cols, i)
			names = append(names, name)
		}
		return cols, names, nil
	}

	var cols []int
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		// Unnamed columns are row indexes written by spreadsheet tools.
		if i == idCol || h == "" {
			continue
		}
		cols = append(cols, i)
		names = append(names, h)
	}
	return cols, names, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCell reads a numeric cell. Blank and NaN are missing.
func parseCell(raw string) (models.Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.Missing(), nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(f, 0) {
		return models.Value{}, fmt.Errorf("%w %q", ErrInvalidCell, s)
	}
	return models.Some(f), nil
}
