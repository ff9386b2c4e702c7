// Package dashboard owns the reference data and model artifacts behind the
// prediction page and turns slider input into charts and predictions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cytodash/chart"
	"cytodash/config"
	"cytodash/dataset"
	"cytodash/db"
	"cytodash/ml"
)

// HistoryStore records evaluations.
type HistoryStore interface {
	SavePrediction(ctx context.Context, record db.PredictionRecord) (int64, error)
}

// Options configures a Manager.
type Options struct {
	DataPath            string
	Artifacts           ml.ArtifactSpec
	CachePolicy         string
	Watch               bool
	PredictionCacheSize int
	History             HistoryStore
	Metrics             *Metrics
	Logger              *zap.Logger
}

// OptionsFromConfig maps file configuration onto manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DataPath: cfg.Data.Path,
		Artifacts: ml.ArtifactSpec{
			ModelType:  cfg.Model.Type,
			ModelPath:  cfg.Model.Path,
			ScalerType: cfg.Scaler.Type,
			ScalerPath: cfg.Scaler.Path,
			ONNX: ml.ONNXOptions{
				SharedLibrary:     cfg.Model.ONNX.SharedLibrary,
				InputName:         cfg.Model.ONNX.InputName,
				LabelOutput:       cfg.Model.ONNX.LabelOutput,
				ProbabilityOutput: cfg.Model.ONNX.ProbabilityOutput,
			},
		},
		CachePolicy:         cfg.Cache.Policy,
		Watch:               cfg.Cache.Watch,
		PredictionCacheSize: cfg.Cache.Predictions,
	}
}

// Slider describes one input control.
type Slider struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// Evaluation is the rendered outcome of one slider state.
type Evaluation struct {
	Chart              chart.Spec          `json:"chart"`
	Prediction         ml.PredictionResult `json:"prediction"`
	DegenerateFeatures []string            `json:"degenerate_features,omitempty"`
	Disclaimer         string              `json:"disclaimer"`
	Cached             bool                `json:"cached"`
	EvaluatedAt        time.Time           `json:"evaluated_at"`
}

// referenceState is everything derived from the reference dataset.
type referenceState struct {
	dataset    *dataset.ReferenceDataset
	bounds     ml.Bounds
	degenerate []string
	sliders    []Slider
	defaults   ml.FeatureRecord
}

// Manager is the process-wide owner of the reference data and artifacts.
type Manager struct {
	opts    Options
	logger  *zap.Logger
	metrics *Metrics

	mu        sync.RWMutex
	reference *referenceState
	artifacts *ml.Artifacts
	loaded    bool

	cache   *lru.Cache[string, ml.PredictionResult]
	watcher *watcher
}

// NewManager validates opts. Call Load before use.
func NewManager(opts Options) (*Manager, error) {
	if opts.DataPath == "" {
		return nil, errors.New("data path is required")
	}
	if opts.CachePolicy == "" {
		opts.CachePolicy = config.CachePolicyProcess
	}
	if opts.CachePolicy != config.CachePolicyProcess && opts.CachePolicy != config.CachePolicyPerRequest {
		return nil, fmt.Errorf("unknown cache policy %q", opts.CachePolicy)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
	}
	if opts.CachePolicy == config.CachePolicyProcess && opts.PredictionCacheSize > 0 {
		cache, err := lru.New[string, ml.PredictionResult](opts.PredictionCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create prediction cache: %w", err)
		}
		m.cache = cache
	}
	return m, nil
}

// Load reads the reference dataset and artifacts. Under the per_request
// policy the load only validates the files; they are read again on every call.
func (m *Manager) Load(ctx context.Context) error {
	reference, err := m.loadReference()
	if err != nil {
		return err
	}
	artifacts, err := ml.LoadArtifacts(m.opts.Artifacts)
	if err != nil {
		return err
	}

	if m.opts.CachePolicy == config.CachePolicyPerRequest {
		artifacts.Close()
		m.mu.Lock()
		m.loaded = true
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	old := m.artifacts
	m.reference = reference
	m.artifacts = artifacts
	m.loaded = true
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	if m.opts.Watch && m.watcher == nil {
		w, err := newWatcher(m, m.watchedPaths())
		if err != nil {
			return fmt.Errorf("watch artifacts: %w", err)
		}
		m.watcher = w
		go w.run(ctx)
	}
	return nil
}

// Reload re-reads the dataset and artifacts. On failure the current state is
// kept.
func (m *Manager) Reload() error {
	if m.opts.CachePolicy == config.CachePolicyPerRequest {
		return nil
	}
	reference, err := m.loadReference()
	if err == nil {
		var artifacts *ml.Artifacts
		artifacts, err = ml.LoadArtifacts(m.opts.Artifacts)
		if err == nil {
			m.mu.Lock()
			if !m.loaded {
				m.mu.Unlock()
				artifacts.Close()
				return errors.New("manager not loaded")
			}
			old := m.artifacts
			m.reference = reference
			m.artifacts = artifacts
			if m.cache != nil {
				m.cache.Purge()
			}
			m.mu.Unlock()
			old.Close()
		}
	}
	m.metrics.observeReload(err)
	if err != nil {
		m.logger.Warn("reload failed, keeping previous state", zap.Error(err))
		return err
	}
	m.logger.Info("reloaded dataset and artifacts")
	return nil
}

// Close stops the watcher, waiting for any pending reload, and releases
// artifacts. Reload after Close is rejected.
func (m *Manager) Close() error {
	if m.watcher != nil {
		m.watcher.stop()
		m.watcher = nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.artifacts.Close()
	m.artifacts = nil
	m.reference = nil
	m.loaded = false
	return err
}

// Sliders returns one slider per feature, bounded by [0, observed max] and
// starting at the feature mean.
func (m *Manager) Sliders() ([]Slider, error) {
	reference, err := m.currentReference()
	if err != nil {
		return nil, err
	}
	return append([]Slider(nil), reference.sliders...), nil
}

// Defaults returns the mean record the page starts from.
func (m *Manager) Defaults() (ml.FeatureRecord, error) {
	reference, err := m.currentReference()
	if err != nil {
		return nil, err
	}
	return reference.defaults.Clone(), nil
}

// Summary returns per-feature statistics of the reference dataset.
func (m *Manager) Summary() (dataset.Summary, []string, error) {
	reference, err := m.currentReference()
	if err != nil {
		return nil, nil, err
	}
	return reference.dataset.Summary(), append([]string(nil), reference.degenerate...), nil
}

// Evaluate scales record for the chart and predicts its diagnosis.
func (m *Manager) Evaluate(ctx context.Context, record ml.FeatureRecord) (*Evaluation, error) {
	start := time.Now()
	result, err := m.evaluate(ctx, record)
	m.metrics.observeEvaluation(start, result, err)
	if err != nil {
		m.logger.Warn("evaluation failed", zap.String("kind", ErrorKind(err)), zap.Error(err))
	}
	return result, err
}

func (m *Manager) evaluate(ctx context.Context, record ml.FeatureRecord) (*Evaluation, error) {
	vector, err := ml.FeatureVector(record)
	if err != nil {
		return nil, err
	}

	var (
		reference *referenceState
		artifacts *ml.Artifacts
	)
	if m.opts.CachePolicy == config.CachePolicyPerRequest {
		if !m.isLoaded() {
			return nil, errors.New("manager not loaded")
		}
		reference, err = m.loadReference()
		if err != nil {
			return nil, err
		}
		artifacts, err = ml.LoadArtifacts(m.opts.Artifacts)
		if err != nil {
			return nil, err
		}
		defer artifacts.Close()
	} else {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if !m.loaded {
			return nil, errors.New("manager not loaded")
		}
		reference, artifacts = m.reference, m.artifacts
	}

	scaled, err := ml.Scale(record, reference.bounds)
	if err != nil {
		return nil, err
	}

	prediction, cached, err := m.predict(vector, artifacts)
	if err != nil {
		return nil, err
	}

	result := &Evaluation{
		Chart:              chart.BuildRadar(scaled),
		Prediction:         *prediction,
		DegenerateFeatures: append([]string(nil), reference.degenerate...),
		Disclaimer:         Disclaimer,
		Cached:             cached,
		EvaluatedAt:        time.Now(),
	}

	if m.opts.History != nil {
		_, err := m.opts.History.SavePrediction(ctx, db.PredictionRecord{
			SchemaVersion:        ml.SchemaVersion,
			Features:             vector,
			Label:                prediction.Label,
			ProbabilityBenign:    prediction.ProbabilityBenign,
			ProbabilityMalignant: prediction.ProbabilityMalignant,
			CreatedAt:            result.EvaluatedAt,
		})
		if err != nil {
			m.logger.Warn("save prediction history failed", zap.Error(err))
		}
	}
	return result, nil
}

func (m *Manager) predict(vector []float64, artifacts *ml.Artifacts) (*ml.PredictionResult, bool, error) {
	var key string
	if m.cache != nil {
		key = cacheKey(vector)
		if cached, ok := m.cache.Get(key); ok {
			return &cached, true, nil
		}
	}
	prediction, err := ml.PredictVector(vector, artifacts.Model, artifacts.Scaler)
	if err != nil {
		return nil, false, err
	}
	if m.cache != nil {
		m.cache.Add(key, *prediction)
	}
	return prediction, false, nil
}

func (m *Manager) isLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

func (m *Manager) currentReference() (*referenceState, error) {
	if m.opts.CachePolicy == config.CachePolicyPerRequest {
		if !m.isLoaded() {
			return nil, errors.New("manager not loaded")
		}
		return m.loadReference()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return nil, errors.New("manager not loaded")
	}
	return m.reference, nil
}

func (m *Manager) loadReference() (*referenceState, error) {
	ds, err := dataset.Load(m.opts.DataPath)
	if err != nil {
		return nil, err
	}
	bounds, err := ds.Bounds()
	if err != nil {
		return nil, err
	}

	state := &referenceState{
		dataset:  ds,
		bounds:   bounds,
		defaults: ds.Means(),
	}
	if err := bounds.Validate(); err != nil {
		var degenerate *ml.DegenerateFeatureError
		if errors.As(err, &degenerate) {
			state.degenerate = degenerate.Keys
		}
		m.logger.Warn("reference dataset has constant features; their scaled values are undefined", zap.Error(err))
	}

	summary := ds.Summary()
	for _, key := range ml.FeatureKeys() {
		s := summary[key]
		step := s.Max / 1000
		if step <= 0 {
			step = 0.01
		}
		state.sliders = append(state.sliders, Slider{
			Key:     key,
			Label:   ml.FeatureLabel(key),
			Min:     0,
			Max:     s.Max,
			Default: s.Mean,
			Step:    step,
		})
	}

	m.logger.Debug("reference dataset loaded", zap.String("path", m.opts.DataPath), zap.Int("rows", ds.Len()))
	return state, nil
}

func (m *Manager) watchedPaths() []string {
	return []string{m.opts.DataPath, m.opts.Artifacts.ModelPath, m.opts.Artifacts.ScalerPath}
}

func cacheKey(vector []float64) string {
	var b strings.Builder
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
