package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard/internal/config"
	"dashboard/internal/engine"
	"dashboard/internal/logger"
	"dashboard/internal/service"
	"dashboard/internal/telemetry"
)

const dataset = `Identifier,2010,2011,2012,2013
A,100,150,200,250
B,,40,60,80
C,0,10,20,50
D,1,2,3,4
`

type testEnv struct {
	e   *echo.Echo
	svc *service.Dashboard
	log *bytes.Buffer
}

func newEnv(t *testing.T, load bool) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o644))

	var buf bytes.Buffer
	log := logger.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	reg := prometheus.NewRegistry()
	svc := service.NewDashboard(engine.NewLoader(engine.LoaderConfig{}, nil, log), service.Options{
		Location:    path,
		DefaultSize: 3,
		Metrics:     telemetry.New(reg),
		Logger:      log,
	})
	if load {
		require.NoError(t, svc.Load(context.Background()))
	}
	e := NewServer(config.Default().Server, NewHandler(svc), reg, log)
	return &testEnv{e: e, svc: svc, log: &buf}
}

func (env *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestNotLoaded(t *testing.T) {
	env := newEnv(t, false)

	rec := env.get(t, "/api/dashboard?id=A")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "DATASET_LOADING", body.Error.Code)

	rec = env.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var st service.Status
	decode(t, rec, &st)
	assert.True(t, st.Ready)
	assert.Equal(t, 16, st.Records)
}

func TestGetOptions(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/options")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"min":2010,"max":2013}`, mustField(t, rec, "bounds"))
	assert.JSONEq(t, `["A","B","C","D"]`, mustField(t, rec, "identifiers"))
	assert.JSONEq(t, `{"years":{"min":2010,"max":2013},"identifiers":["A","B","C"]}`, mustField(t, rec, "default_selection"))
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var m map[string]json.RawMessage
	decode(t, rec, &m)
	raw, ok := m[name]
	require.True(t, ok, "missing field %s", name)
	return string(raw)
}

func TestGetMetrics(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/metrics?from=2010&to=2013&id=A&id=B&id=C&id=Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var body metricsResponse
	decode(t, rec, &body)
	assert.Equal(t, 2013, body.Year)
	assert.Equal(t, []string{"unknown identifier: Z"}, body.Warnings)
	require.Len(t, body.Metrics, 3)
	assert.Equal(t, "2.50x", body.Metrics[0].Growth)
	assert.Equal(t, 2.5, body.Metrics[0].Ratio)
	assert.Equal(t, "n/a", body.Metrics[1].Growth)
	assert.True(t, body.Metrics[1].FirstValue.IsMissing())
	assert.Equal(t, "n/a", body.Metrics[2].Growth)
	assert.Contains(t, env.log.String(), "unknown identifiers in selection")
}

func TestGetMetricsDefaultsToBounds(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/metrics?from=2011&id=A")
	require.Equal(t, http.StatusOK, rec.Code)
	var body metricsResponse
	decode(t, rec, &body)
	assert.Equal(t, 2013, body.Year)
	assert.Equal(t, "1.67x", body.Metrics[0].Growth)
}

func TestGetSeries(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/series?from=2011&to=2012&id=B&id=A")
	require.Equal(t, http.StatusOK, rec.Code)
	var body seriesResponse
	decode(t, rec, &body)
	require.Len(t, body.Series, 2)
	assert.Equal(t, "B", body.Series[0].Identifier)
	assert.Equal(t, 2011, body.Series[0].Points[0].Year)
	assert.Equal(t, 2012, body.Series[0].Points[1].Year)
	assert.Equal(t, "A", body.Series[1].Identifier)
}

func TestEmptySelection(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"no identifiers selected"`, mustField(t, rec, "notice"))
	assert.JSONEq(t, `[]`, mustField(t, rec, "series"))
	assert.JSONEq(t, `[]`, mustField(t, rec, "metrics"))
}

func TestBadRequests(t *testing.T) {
	env := newEnv(t, true)

	tests := []struct {
		target string
		code   string
	}{
		{"/api/dashboard?from=abc&id=A", "INVALID_PARAMETER"},
		{"/api/dashboard?from=2013&to=2010&id=A", "INVALID_SELECTION"},
		{"/api/metrics?from=1999&id=A", "INVALID_SELECTION"},
		{"/api/export?format=parquet", "INVALID_PARAMETER"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := env.get(t, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestExportCSV(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/export?from=2010&to=2011&id=B")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "dashboard-2010-2011.csv")
	assert.Equal(t, "Identifier,Year,Value\nB,2010,\nB,2011,40\n", rec.Body.String())
}

func TestExportArrow(t *testing.T) {
	env := newEnv(t, true)

	rec := env.get(t, "/api/export?format=arrow&id=A&id=D")
	require.Equal(t, http.StatusOK, rec.Code)

	r, err := ipc.NewReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer r.Release()
	require.True(t, r.Next())
	assert.EqualValues(t, 8, r.Record().NumRows())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newEnv(t, true)
	env.get(t, "/api/metrics?id=A")

	rec := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dashboard_evaluations_total{endpoint="metrics"} 1`)
	assert.Contains(t, rec.Body.String(), "dashboard_dataset_records 16")
}

func TestRequestID(t *testing.T) {
	env := newEnv(t, true)
	rec := env.get(t, "/api/options")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}
