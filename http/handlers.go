package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cytodash/chart"
	"cytodash/dashboard"
	"cytodash/ml"
)

//go:embed index.html
var indexHTML []byte

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type handlers struct {
	manager  *dashboard.Manager
	history  HistoryReader
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// EvaluateRequest is the body of POST /api/evaluate.
type EvaluateRequest struct {
	Features ml.FeatureRecord `json:"features"`
}

// FeaturesResponse describes the page controls.
type FeaturesResponse struct {
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Disclaimer         string             `json:"disclaimer"`
	SchemaVersion      string             `json:"schema_version"`
	Categories         []string           `json:"categories"`
	Sliders            []dashboard.Slider `json:"sliders"`
	Defaults           ml.FeatureRecord   `json:"defaults"`
	DegenerateFeatures []string           `json:"degenerate_features,omitempty"`
}

func RegisterHandlers(mux *http.ServeMux, deps Deps) {
	h := &handlers{
		manager:  deps.Manager,
		history:  deps.History,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}

	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/features", h.handleFeatures)
	mux.HandleFunc("POST /api/evaluate", h.handleEvaluate)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/ws", h.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "schema_version": ml.SchemaVersion})
}

func (h *handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	sliders, err := h.manager.Sliders()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defaults, err := h.manager.Defaults()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	_, degenerate, err := h.manager.Summary()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	h.respond(w, http.StatusOK, FeaturesResponse{
		Title:              dashboard.Title,
		Description:        dashboard.Description,
		Disclaimer:         dashboard.Disclaimer,
		SchemaVersion:      ml.SchemaVersion,
		Categories:         chart.Categories,
		Sliders:            sliders,
		Defaults:           defaults,
		DegenerateFeatures: degenerate,
	})
}

func (h *handlers) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Features == nil {
		writeError(w, http.StatusBadRequest, errors.New("features is required"))
		return
	}

	result, err := h.manager.Evaluate(r.Context(), req.Features)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.respond(w, http.StatusOK, result)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("prediction history is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", limitStr))
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	records, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("list prediction history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

// statusFor maps evaluation errors onto HTTP statuses.
func statusFor(err error) int {
	var shapeErr *ml.ShapeMismatchError
	if errors.As(err, &shapeErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v before writing the header. An encode failure is sent
// as a 500 and returned.
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback, _ := json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
		_, _ = w.Write(append(fallback, '\n'))
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	_ = writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *handlers) respond(w http.ResponseWriter, status int, v interface{}) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Error("write response", zap.Error(err))
	}
}
