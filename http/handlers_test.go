package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cytodash/dashboard"
	"cytodash/db"
	"cytodash/ml"
	"cytodash/testutil"
)

func newTestServer(t *testing.T, withHistory bool) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	dataPath := testutil.WriteFile(t, dir, "data/data.csv", testutil.DatasetCSV(testutil.ReferenceRows()))
	modelPath, scalerPath := testutil.WriteArtifacts(t, dir)

	reg := prometheus.NewRegistry()
	opts := dashboard.Options{
		DataPath: dataPath,
		Artifacts: ml.ArtifactSpec{
			ModelPath:  modelPath,
			ScalerPath: scalerPath,
		},
		PredictionCacheSize: 8,
		Metrics:             dashboard.NewMetrics(reg),
	}
	deps := Deps{Gatherer: reg}
	if withHistory {
		store, err := db.Open(filepath.Join(dir, "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		opts.History = store
		deps.History = store
	}

	manager, err := dashboard.NewManager(opts)
	require.NoError(t, err)
	require.NoError(t, manager.Load(context.Background()))
	t.Cleanup(func() { manager.Close() })
	deps.Manager = manager

	cfg := DefaultServerConfig()
	cfg.Timeout = 5 * time.Second
	ts := httptest.NewServer(NewServer(cfg, deps).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postEvaluate(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/evaluate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func evaluateBody(t *testing.T, record ml.FeatureRecord) string {
	t.Helper()
	payload, err := json.Marshal(EvaluateRequest{Features: record})
	require.NoError(t, err)
	return string(payload)
}

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"schema_version":"wdbc-30/v1","status":"ok"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestIndexServesPage(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "https://cdn.plot.ly")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Contains(t, string(body), "Cell cluster prediction")
	assert.Contains(t, string(body), "The cell cluster is:")

	resp, err = http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeaturesHandler(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/features")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var features FeaturesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&features))
	assert.Equal(t, dashboard.Title, features.Title)
	assert.Equal(t, dashboard.Disclaimer, features.Disclaimer)
	assert.Equal(t, ml.SchemaVersion, features.SchemaVersion)
	assert.Len(t, features.Categories, 10)
	require.Len(t, features.Sliders, 30)
	assert.Equal(t, "radius_mean", features.Sliders[0].Key)
	assert.Len(t, features.Defaults, 30)
}

func TestEvaluateHandler(t *testing.T) {
	ts := newTestServer(t, false)

	resp, payload := postEvaluate(t, ts, evaluateBody(t, testutil.ReferenceRows()[0].Features))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prediction := payload["prediction"].(map[string]interface{})
	assert.Equal(t, "Malignant", prediction["label"])
	assert.Equal(t, dashboard.Disclaimer, payload["disclaimer"])
	chart := payload["chart"].(map[string]interface{})
	assert.Len(t, chart["data"], 3)
}

func TestEvaluateHandlerErrors(t *testing.T) {
	ts := newTestServer(t, false)

	incomplete := testutil.UniformRecord(1)
	delete(incomplete, "texture_se")

	tests := []struct {
		name   string
		body   string
		status int
		errSub string
	}{
		{name: "missing feature", body: evaluateBody(t, incomplete), status: http.StatusBadRequest, errSub: "texture_se"},
		{name: "unknown feature", body: evaluateBody(t, testutil.WithValue(testutil.UniformRecord(1), "id", 7)), status: http.StatusBadRequest, errSub: "id"},
		{name: "invalid json", body: "{", status: http.StatusBadRequest, errSub: "invalid request body"},
		{name: "no features", body: "{}", status: http.StatusBadRequest, errSub: "features is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := postEvaluate(t, ts, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, payload["error"], tt.errSub)
		})
	}
}

func TestHistoryHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, false)
		resp, err := http.Get(ts.URL + "/api/history")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		ts := newTestServer(t, true)
		resp, _ := postEvaluate(t, ts, evaluateBody(t, testutil.ReferenceRows()[2].Features))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err := http.Get(ts.URL + "/api/history?limit=5")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Predictions []db.PredictionRecord `json:"predictions"`
			Count       int                   `json:"count"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		require.Equal(t, 1, payload.Count)
		assert.Equal(t, ml.Benign, payload.Predictions[0].Label)
		assert.Equal(t, ml.SchemaVersion, payload.Predictions[0].SchemaVersion)
	})

	t.Run("invalid limit", func(t *testing.T) {
		ts := newTestServer(t, true)
		resp, err := http.Get(ts.URL + "/api/history?limit=zero")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMetricsHandler(t *testing.T) {
	ts := newTestServer(t, false)
	resp, _ := postEvaluate(t, ts, evaluateBody(t, testutil.UniformRecord(1)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cytodash_evaluations_total{label="Benign"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, false)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/evaluate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

func TestRequestSizeMiddleware(t *testing.T) {
	handler := RequestSizeMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(bytes.Repeat([]byte("x"), 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebSocketEvaluate(t *testing.T) {
	ts := newTestServer(t, false)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var reply ServerMessage
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessagePing, ID: "1"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessagePong, reply.Type)
	assert.Equal(t, "1", reply.ID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageEvaluate, ID: "2", Features: testutil.ReferenceRows()[0].Features}))
	reply = ServerMessage{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageEvaluation, reply.Type)
	assert.Equal(t, "2", reply.ID)
	require.NotNil(t, reply.Data)
	assert.Equal(t, ml.Malignant, reply.Data.Prediction.Label)

	incomplete := testutil.UniformRecord(1)
	delete(incomplete, "area_worst")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageEvaluate, ID: "3", Features: incomplete}))
	reply = ServerMessage{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageError, reply.Type)
	assert.Contains(t, reply.Error, "area_worst")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", ID: "4"}))
	reply = ServerMessage{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageError, reply.Type)
}

func TestTimeoutMiddlewareSkipsUpgrades(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	handler := TimeoutMiddleware(20 * time.Millisecond)(slow)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	rr := httptest.NewRecorder()
	err := writeJSON(rr, http.StatusOK, map[string]float64{"radius_mean": math.NaN()})
	require.Error(t, err)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Contains(t, payload["error"], "encode response")
}
