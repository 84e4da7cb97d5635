package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dashboard/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeTemp(t, "data.csv", "\ufeffIdentifier,2010,2011,2012\n"+
		"A,100,\"1,200.5\",250\n"+
		"B,,80,NaN\n")

	table, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"2010", "2011", "2012"}, table.YearColumns)
	require.Len(t, table.Records, 2)
	assert.Equal(t, "A", table.Records[0].Identifier)
	assert.Equal(t, []models.Value{models.Some(100), models.Some(1200.5), models.Some(250)}, table.Records[0].Values)
	assert.Equal(t, []models.Value{models.Missing(), models.Some(80), models.Missing()}, table.Records[1].Values)
}

func TestLoadFixture(t *testing.T) {
	table, err := LoadFile(filepath.Join("testdata", "growth.csv"))
	require.NoError(t, err)
	assert.Len(t, table.Records, 4)
	assert.Len(t, table.YearColumns, 11)
}

func TestLoadSelectsConfiguredYears(t *testing.T) {
	path := writeTemp(t, "data.csv", "Name,Identificador,2009,2010,2011\nAlpha,A,1,2,3\n")

	l := NewLoader(LoaderConfig{
		IdentifierColumn: "Identificador",
		Years:            models.YearRange{Min: 2010, Max: 2011},
	}, nil, nil)
	table, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2010", "2011"}, table.YearColumns)
	assert.Equal(t, []models.Value{models.Some(2), models.Some(3)}, table.Records[0].Values)
}

func TestLoadTSV(t *testing.T) {
	path := writeTemp(t, "data.tsv", "Identifier\t2010\t2011\nA\t1\t2\n")
	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Value{models.Some(1), models.Some(2)}, table.Records[0].Values)
}

func TestLoadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Identifier", "2010", "2011"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"A", 100, 250}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"B", "", 80}))
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, []models.Value{models.Some(100), models.Some(250)}, table.Records[0].Values)
	assert.Equal(t, []models.Value{models.Missing(), models.Some(80)}, table.Records[1].Values)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"empty file", "", ErrEmptyFile},
		{"no identifier column", "Name,2010\nA,1\n", ErrMissingColumn},
		{"empty identifier", "Identifier,2010\n,1\n", ErrEmptyIdentifier},
		{"duplicate identifier", "Identifier,2010\nA,1\nA,2\n", ErrDuplicateIdentifier},
		{"bad cell", "Identifier,2010\nA,lots\n", ErrInvalidCell},
		{"infinite cell", "Identifier,2010\nA,Inf\n", ErrInvalidCell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeTemp(t, "data.csv", tt.content))
			var loadErr *DataLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestLoadMissingConfiguredYear(t *testing.T) {
	path := writeTemp(t, "data.csv", "Identifier,2010\nA,1\n")
	l := NewLoader(LoaderConfig{Years: models.YearRange{Min: 2010, Max: 2011}}, nil, nil)
	_, err := l.Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadAbsentFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRaggedRow(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "data.csv", "Identifier,2010,2011\nA,1\n"))
	var loadErr *DataLoadError
	assert.ErrorAs(t, err, &loadErr)
}

type stubOpener struct {
	body string
	err  error
	got  string
}

func (s *stubOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	s.got = location
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestLoadUsesOpener(t *testing.T) {
	op := &stubOpener{body: "Identifier,2010\nA,5\n"}
	table, err := NewLoader(LoaderConfig{}, op, nil).Load(context.Background(), "s3://bucket/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/data.csv", op.got)
	assert.Equal(t, "A", table.Records[0].Identifier)

	op = &stubOpener{err: errors.New("denied")}
	_, err = NewLoader(LoaderConfig{}, op, nil).Load(context.Background(), "s3://bucket/data.csv")
	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "s3://bucket/data.csv", loadErr.Location)
}
