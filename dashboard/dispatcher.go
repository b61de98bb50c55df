package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"droughtdash/charts"
	"droughtdash/dataset"
	"droughtdash/locale"
	"droughtdash/predict"
	"droughtdash/store"
)

// Snapshots is the read side of store.Store.
type Snapshots interface {
	Require() (*store.Snapshot, error)
}

// Options carries the presentation settings of the dashboard.
type Options struct {
	DefaultGeoCode string
	MinYear        int
	MaxYear        int
	// ObservePrediction, when set, is called after every prediction.
	ObservePrediction func(err error, took time.Duration)
}

// Dispatcher answers dashboard commands against the current snapshot.
type Dispatcher struct {
	snapshots Snapshots
	cache     *predict.Cache
	bundle    *locale.Bundle
	logger    *zap.Logger
	opts      Options

	mu          sync.Mutex
	correlation *dataset.Matrix
	corrGen     uint64
}

// NewDispatcher wires a dispatcher. cache may be nil to disable caching.
func NewDispatcher(snapshots Snapshots, cache *predict.Cache, bundle *locale.Bundle, logger *zap.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		snapshots: snapshots,
		cache:     cache,
		bundle:    bundle,
		logger:    logger,
		opts:      opts,
	}
}

// Options returns the presentation settings.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Dispatch routes cmd on its (page, action) pair. It always returns a Panel;
// failures are reported through Panel.Status.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Panel {
	loc := d.bundle.Lookup(cmd.Locale)
	panel := Panel{Page: cmd.Page, Action: cmd.Action}
	if err := ctx.Err(); err != nil {
		panel.Status = StatusError
		panel.Message = loc.Text(locale.InferenceFailure)
		return panel
	}

	switch {
	case cmd.Page == PageMap && cmd.Action == ActionRender:
		return d.renderMap(cmd, loc, panel)
	case cmd.Page == PageHeatmap && cmd.Action == ActionRender:
		return d.renderHeatmap(loc, panel)
	case cmd.Page == PageModel && cmd.Action == ActionRender:
		return d.renderForm(loc, panel)
	case cmd.Page == PageModel && cmd.Action == ActionPredict:
		return d.predict(cmd, loc, panel)
	default:
		panel.Status = StatusInvalid
		panel.Message = loc.Text(locale.InvalidCommand, string(cmd.Page), string(cmd.Action))
		return panel
	}
}

// Failed reports err for cmd as Dispatch reports its own failures. It serves
// callers that could not complete a command, such as a frame that did not
// decode.
func (d *Dispatcher) Failed(cmd Command, err error) Panel {
	return d.failed(Panel{Page: cmd.Page, Action: cmd.Action}, d.bundle.Lookup(cmd.Locale), err)
}

// Predict runs one prediction through the cache and records it.
func (d *Dispatcher) Predict(geoCode string, year int) (*predict.View, error) {
	start := time.Now()
	view, err := d.predictFor(geoCode, year)
	if d.opts.ObservePrediction != nil {
		d.opts.ObservePrediction(err, time.Since(start))
	}
	switch {
	case err == nil:
		if view.MatchedRows > 1 {
			d.logger.Warn("duplicate rows for query, scoring the first",
				zap.String("geo_code", geoCode), zap.Int("year", year), zap.Int("matched", view.MatchedRows))
		}
	case predict.IsAdvisory(err):
		d.logger.Debug("advisory prediction outcome",
			zap.String("geo_code", geoCode), zap.Int("year", year), zap.Error(err))
	case errors.Is(err, store.ErrNotLoaded):
		d.logger.Warn("prediction before the dataset loaded",
			zap.String("geo_code", geoCode), zap.Int("year", year))
	default:
		d.logger.Error("prediction failed",
			zap.String("geo_code", geoCode), zap.Int("year", year), zap.Error(err))
	}
	return view, err
}

func (d *Dispatcher) predictFor(geoCode string, year int) (*predict.View, error) {
	snap, err := d.snapshots.Require()
	if err != nil {
		return nil, err
	}
	if d.cache == nil {
		return snap.Pipeline().PredictFor(geoCode, year)
	}
	return d.cache.PredictFor(snap.Generation, snap.Pipeline(), geoCode, year)
}

// Correlation returns the correlation matrix of every thematic column,
// computed once per snapshot.
func (d *Dispatcher) Correlation() (*dataset.Matrix, error) {
	snap, err := d.snapshots.Require()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.correlation != nil && d.corrGen == snap.Generation {
		return d.correlation, nil
	}
	m, err := snap.Table.Correlation(nil)
	if err != nil {
		return nil, err
	}
	d.correlation, d.corrGen = m, snap.Generation
	return m, nil
}

// Map classifies one column for one year.
func (d *Dispatcher) Map(year int, column string, classes int) (*MapData, error) {
	snap, err := d.snapshots.Require()
	if err != nil {
		return nil, err
	}
	if column == "" {
		column = dataset.ColumnDry
	}
	col, ok := dataset.LookupColumn(column)
	if !ok {
		return nil, &UnknownColumnError{Column: column}
	}
	values, err := snap.Table.Values(year, col.Key)
	if err != nil {
		return nil, err
	}
	classified, err := charts.ClassifyValues(values, classes)
	if err != nil {
		return nil, err
	}
	return &MapData{Year: year, Column: col, Classification: classified}, nil
}

// Years returns the years present in the current dataset.
func (d *Dispatcher) Years() ([]int, error) {
	snap, err := d.snapshots.Require()
	if err != nil {
		return nil, err
	}
	return snap.Table.Years(), nil
}

// ErrMalformedCommand marks a command that could not be decoded.
var ErrMalformedCommand = errors.New("malformed command")

// UnknownColumnError reports a map request for a column that does not exist.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

func (d *Dispatcher) renderMap(cmd Command, loc *locale.Localizer, panel Panel) Panel {
	year := d.yearOrDefault(cmd.Year)
	data, err := d.Map(year, cmd.Column, cmd.Classes)
	if err != nil {
		return d.failed(panel, loc, err)
	}
	panel.Status = StatusOK
	panel.Message = loc.Text(locale.TitleMap)
	panel.Data = data
	return panel
}

func (d *Dispatcher) renderHeatmap(loc *locale.Localizer, panel Panel) Panel {
	m, err := d.Correlation()
	if err != nil {
		return d.failed(panel, loc, err)
	}
	panel.Status = StatusOK
	panel.Message = loc.Text(locale.TitleHeatmap)
	panel.Data = m
	return panel
}

// renderForm opens the model page. The pipeline only runs on ActionPredict.
func (d *Dispatcher) renderForm(loc *locale.Localizer, panel Panel) Panel {
	panel.Status = StatusOK
	panel.Message = loc.Text(locale.TitleModel)
	panel.Data = FormData{
		GeoCode: d.opts.DefaultGeoCode,
		Year:    d.yearOrDefault(0),
		MinYear: d.opts.MinYear,
		MaxYear: d.opts.MaxYear,
	}
	return panel
}

func (d *Dispatcher) predict(cmd Command, loc *locale.Localizer, panel Panel) Panel {
	geoCode := cmd.GeoCode
	if geoCode == "" {
		geoCode = d.opts.DefaultGeoCode
	}
	year := d.yearOrDefault(cmd.Year)
	if !d.yearInRange(year) {
		panel.Status = StatusWarning
		panel.Message = loc.YearRange(d.opts.MinYear, d.opts.MaxYear)
		return panel
	}

	view, err := d.Predict(geoCode, year)
	if err != nil {
		return d.failed(panel, loc, err)
	}
	data := PredictionData{
		View:    view,
		Summary: loc.Text(locale.PredictedClass, view.PredictedLabel),
	}
	for _, c := range view.Classes {
		data.ClassLabels = append(data.ClassLabels, loc.ClassShare(c.Label, c.Probability))
	}
	if view.MatchedRows > 1 {
		data.Notice = loc.Text(locale.DuplicateRows, view.MatchedRows)
	}
	panel.Status = StatusOK
	panel.Message = data.Summary
	panel.Data = data
	return panel
}

func (d *Dispatcher) failed(panel Panel, loc *locale.Localizer, err error) Panel {
	var unknownColumn *UnknownColumnError
	switch {
	case errors.Is(err, predict.ErrUnknownLocation):
		panel.Status = StatusWarning
		panel.Message = loc.Text(locale.UnknownLocation)
	case errors.Is(err, predict.ErrNoDataForYear):
		panel.Status = StatusWarning
		panel.Message = loc.Text(locale.NoDataForYear)
	case errors.As(err, &unknownColumn):
		panel.Status = StatusInvalid
		panel.Message = loc.Text(locale.UnknownColumn, unknownColumn.Column)
	case errors.Is(err, charts.ErrClassCount):
		panel.Status = StatusInvalid
		panel.Message = loc.Text(locale.InvalidClasses)
	case errors.Is(err, ErrMalformedCommand):
		panel.Status = StatusInvalid
		panel.Message = loc.Text(locale.MalformedCommand)
	case errors.Is(err, store.ErrNotLoaded):
		panel.Status = StatusError
		panel.Message = loc.Text(locale.NotLoaded)
	default:
		panel.Status = StatusError
		panel.Message = loc.Text(locale.InferenceFailure)
	}
	return panel
}

func (d *Dispatcher) yearOrDefault(year int) int {
	if year == 0 && d.opts.MinYear != 0 {
		return d.opts.MinYear
	}
	return year
}

func (d *Dispatcher) yearInRange(year int) bool {
	if d.opts.MinYear != 0 && year < d.opts.MinYear {
		return false
	}
	if d.opts.MaxYear != 0 && year > d.opts.MaxYear {
		return false
	}
	return true
}
