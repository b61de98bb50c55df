package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"

	"droughtdash/charts"
	"droughtdash/dashboard"
	"droughtdash/dataset"
	"droughtdash/locale"
	"droughtdash/predict"
	"droughtdash/store"
)

// Handlers serves the dashboard page and its JSON and image API.
type Handlers struct {
	store      *store.Store
	dispatcher *dashboard.Dispatcher
	bundle     *locale.Bundle
	logger     *zap.Logger
}

// NewHandlers wires the handlers.
func NewHandlers(s *store.Store, d *dashboard.Dispatcher, bundle *locale.Bundle, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: s, dispatcher: d, bundle: bundle, logger: logger}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predict/chart/{kind}", h.handlePredictChart)
	mux.HandleFunc("GET /api/heatmap", h.handleHeatmap)
	mux.HandleFunc("GET /api/heatmap.png", h.handleHeatmapImage)
	mux.HandleFunc("GET /api/map", h.handleMap)
	mux.HandleFunc("GET /api/columns", h.handleColumns)
	mux.HandleFunc("GET /api/years", h.handleYears)
	mux.HandleFunc("POST /api/command", h.handleCommand)
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(r)
	var buf bytes.Buffer
	if err := dashboard.WritePage(&buf, h.dispatcher.NewPageData(loc)); err != nil {
		h.logger.Error("render dashboard page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"generation": snap.Generation,
		"rows":       snap.Table.Len(),
		"loaded_at":  snap.LoadedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	geoCode, year, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.dispatcher.Predict(geoCode, year)
	if err != nil {
		h.writePredictError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) handlePredictChart(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(r)
	format, err := charts.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := r.PathValue("kind")
	if kind != "probabilities" && kind != "importances" {
		writeError(w, http.StatusNotFound, "unknown chart "+strconv.Quote(kind))
		return
	}
	geoCode, year, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.dispatcher.Predict(geoCode, year)
	if err != nil {
		h.writePredictError(w, r, err)
		return
	}

	var (
		p    *plot.Plot
		size charts.Size
	)
	if kind == "probabilities" {
		p, err = charts.Donut(view.Classes, loc)
		size = charts.DonutSize
	} else {
		p, err = charts.ImportanceBars(view.RankedImportances, loc)
		size = charts.ImportanceSize
	}
	var buf bytes.Buffer
	if err == nil {
		err = charts.Render(&buf, p, format, size)
	}
	if err != nil {
		h.logger.Error("render chart", zap.String("kind", kind), zap.Error(err))
		writeError(w, http.StatusInternalServerError, loc.Text(locale.InferenceFailure))
		return
	}
	writeImage(w, format, buf.Bytes())
}

func (h *Handlers) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	m, err := h.dispatcher.Correlation()
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) handleHeatmapImage(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(r)
	m, err := h.dispatcher.Correlation()
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	p, err := charts.Heatmap(m, loc)
	if err == nil {
		var buf bytes.Buffer
		if err = charts.Render(&buf, p, charts.PNG, charts.HeatmapSize); err == nil {
			writeImage(w, charts.PNG, buf.Bytes())
			return
		}
	}
	h.logger.Error("render heatmap", zap.Error(err))
	writeError(w, http.StatusInternalServerError, loc.Text(locale.InferenceFailure))
}

func (h *Handlers) handleMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	classes := 0
	if s := q.Get("classes"); s != "" {
		if classes, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "classes must be an integer")
			return
		}
	}
	data, err := h.dispatcher.Map(year, q.Get("column"), classes)
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) handleColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns":  dataset.Columns(),
		"features": dataset.FeatureNames(),
	})
}

func (h *Handlers) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.dispatcher.Years()
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	opts := h.dispatcher.Options()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"years":    years,
		"min_year": opts.MinYear,
		"max_year": opts.MaxYear,
	})
}

func (h *Handlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd dashboard.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command: "+err.Error())
		return
	}
	if cmd.Locale == "" {
		cmd.Locale = r.Header.Get("Accept-Language")
	}
	writeJSON(w, http.StatusOK, h.dispatcher.Dispatch(r.Context(), cmd))
}

// query reads code and year. Any integer year is accepted.
func (h *Handlers) query(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	q := r.URL.Query()
	if !q.Has("code") {
		writeError(w, http.StatusBadRequest, "code is required")
		return "", 0, false
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return "", 0, false
	}
	return q.Get("code"), year, true
}

func (h *Handlers) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	loc := h.localizer(r)
	var inferenceErr *predict.InferenceError
	switch {
	case errors.Is(err, predict.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, loc.Text(locale.UnknownLocation))
	case errors.Is(err, predict.ErrNoDataForYear):
		writeError(w, http.StatusUnprocessableEntity, loc.Text(locale.NoDataForYear))
	case errors.As(err, &inferenceErr):
		writeError(w, http.StatusInternalServerError, loc.Text(locale.InferenceFailure))
	default:
		h.writeDataError(w, r, err)
	}
}

func (h *Handlers) writeDataError(w http.ResponseWriter, r *http.Request, err error) {
	loc := h.localizer(r)
	var unknownColumn *dashboard.UnknownColumnError
	switch {
	case errors.Is(err, store.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, loc.Text(locale.NotLoaded))
	case errors.As(err, &unknownColumn):
		writeError(w, http.StatusBadRequest, loc.Text(locale.UnknownColumn, unknownColumn.Column))
	case errors.Is(err, charts.ErrClassCount):
		writeError(w, http.StatusBadRequest, loc.Text(locale.InvalidClasses))
	default:
		h.logger.Error("request failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, loc.Text(locale.InferenceFailure))
	}
}

func (h *Handlers) localizer(r *http.Request) *locale.Localizer {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return h.bundle.Lookup(lang)
	}
	return h.bundle.Lookup(r.Header.Get("Accept-Language"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeImage(w http.ResponseWriter, format charts.Format, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(body)
}
