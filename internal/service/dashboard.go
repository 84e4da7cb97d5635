package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dashboard/internal/engine"
	"dashboard/internal/models"
	"dashboard/internal/telemetry"
)

// NoSelectionNotice is returned instead of results for an empty selection.
const NoSelectionNotice = "no identifiers selected"

// WideLoader reads the raw table. *engine.Loader implements it.
type WideLoader interface {
	Load(ctx context.Context, location string) (*models.WideTable, error)
}

// Status describes the dataset being served.
type Status struct {
	Ready    bool      `json:"ready"`
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
	Error    string    `json:"error,omitempty"`
}

// Dashboard serves filter and metric evaluations over a dataset that is
// loaded once and swapped atomically on reload.
type Dashboard struct {
	loader      WideLoader
	location    string
	defaultSize int
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	validate    *validator.Validate
	tracer      trace.Tracer

	current atomic.Pointer[engine.Dataset]
	status  atomic.Pointer[Status]
}

type Options struct {
	Location string
	// DefaultSize is how many identifiers the default selection holds.
	DefaultSize int
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

func NewDashboard(loader WideLoader, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dashboard{
		loader:      loader,
		location:    opts.Location,
		defaultSize: opts.DefaultSize,
		metrics:     opts.Metrics,
		logger:      logger.With(slog.String("component", "dashboard")),
		validate:    newValidator(),
		tracer:      otel.Tracer("dashboard/service"),
	}
	d.status.Store(&Status{Source: opts.Location})
	return d
}

// Load reads, reshapes and publishes the dataset. On failure the previously
// published dataset, if any, keeps being served.
func (d *Dashboard) Load(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "dashboard.load", trace.WithAttributes(attribute.String("location", d.location)))
	defer span.End()

	start := time.Now()
	ds, err := d.build(ctx)
	d.metrics.ObserveLoad(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.ErrorContext(ctx, "dataset load failed", slog.String("location", d.location), slog.Any("error", err))

		prev := d.status.Load()
		d.status.Store(&Status{
			Ready:    prev.Ready,
			Source:   d.location,
			Records:  prev.Records,
			LoadedAt: prev.LoadedAt,
			Error:    err.Error(),
		})
		return err
	}

	d.Publish(ds)
	span.SetAttributes(attribute.Int("records", ds.Len()))
	d.logger.InfoContext(ctx, "dataset loaded",
		slog.String("location", d.location),
		slog.Int("identifiers", len(ds.Identifiers())),
		slog.Int("records", ds.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (d *Dashboard) build(ctx context.Context) (*engine.Dataset, error) {
	wide, err := d.loader.Load(ctx, d.location)
	if err != nil {
		return nil, err
	}
	return engine.NewDataset(d.location, wide)
}

// Publish makes ds the dataset served by every subsequent call.
func (d *Dashboard) Publish(ds *engine.Dataset) {
	d.current.Store(ds)
	d.metrics.SetRecords(ds.Len())
	d.status.Store(&Status{
		Ready:    true,
		Source:   ds.Source(),
		Records:  ds.Len(),
		LoadedAt: ds.LoadedAt(),
	})
}

func (d *Dashboard) Status() Status { return *d.status.Load() }

func (d *Dashboard) dataset() (*engine.Dataset, error) {
	ds := d.current.Load()
	if ds == nil {
		return nil, ErrNotReady
	}
	return ds, nil
}

// Options returns what the selection controls need.
func (d *Dashboard) Options() (models.Options, error) {
	ds, err := d.dataset()
	if err != nil {
		return models.Options{}, err
	}
	return models.Options{
		Bounds:      ds.Bounds(),
		Identifiers: ds.Identifiers(),
		Default:     ds.DefaultSelection(d.defaultSize),
		Source:      ds.Source(),
	}, nil
}

// Evaluate filters the dataset, groups chart series and computes growth
// metrics. Unknown identifiers become warnings, not errors.
func (d *Dashboard) Evaluate(ctx context.Context, endpoint string, sel models.FilterSelection) (*models.DashboardView, error) {
	ctx, span := d.tracer.Start(ctx, "dashboard.evaluate", trace.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("years.min", sel.Years.Min),
		attribute.Int("years.max", sel.Years.Max),
		attribute.Int("identifiers", len(sel.Identifiers)),
	))
	defer span.End()

	ds, sel, err := d.prepare(sel)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	d.metrics.IncEvaluation(endpoint)

	view := &models.DashboardView{
		Selection:   sel,
		Series:      []models.Series{},
		Metrics:     []models.MetricResult{},
		MetricsYear: sel.Years.Max,
	}
	if len(sel.Identifiers) == 0 {
		view.Notice = NoSelectionNotice
		return view, nil
	}

	filtered := ds.Filter(sel)
	view.Series = engine.GroupSeries(filtered, sel.Identifiers)

	results, err := engine.ComputeMetrics(filtered, sel, ds)
	view.Metrics = results
	var lookupErr *engine.LookupError
	switch {
	case errors.As(err, &lookupErr):
		d.metrics.AddUnknown(len(lookupErr.Identifiers))
		d.logger.WarnContext(ctx, "unknown identifiers in selection", slog.Any("identifiers", lookupErr.Identifiers))
		for _, id := range lookupErr.Identifiers {
			view.Warnings = append(view.Warnings, "unknown identifier: "+id)
		}
	case err != nil:
		span.RecordError(err)
		return nil, err
	}
	return view, nil
}

// Export returns the filtered long-form rows for download.
func (d *Dashboard) Export(ctx context.Context, sel models.FilterSelection) ([]models.LongRecord, error) {
	_, span := d.tracer.Start(ctx, "dashboard.export")
	defer span.End()

	ds, sel, err := d.prepare(sel)
	if err != nil {
		return nil, err
	}
	d.metrics.IncEvaluation("export")
	return ds.Filter(sel), nil
}

// prepare resolves the dataset, dedupes identifiers and validates sel.
func (d *Dashboard) prepare(sel models.FilterSelection) (*engine.Dataset, models.FilterSelection, error) {
	ds, err := d.dataset()
	if err != nil {
		return nil, sel, err
	}
	sel.Identifiers = dedupe(sel.Identifiers)
	if err := checkSelection(d.validate, sel, ds.Bounds(), ds.Empty()); err != nil {
		return nil, sel, err
	}
	return ds, sel, nil
}
