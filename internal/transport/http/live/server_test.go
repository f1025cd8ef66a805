package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gridbot/internal/reconciler"
	"gridbot/internal/store/model"
)

type staticStatus struct {
	snap reconciler.Snapshot
}

func (s staticStatus) Status() reconciler.Snapshot { return s.snap }

type fakeHistory struct {
	runs  []model.GridRunModel
	fills map[string][]model.GridFillModel
	err   error
}

func (f *fakeHistory) RecentRuns(_ context.Context, limit int) ([]model.GridRunModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeHistory) RunFills(_ context.Context, runID string, _ int) ([]model.GridFillModel, error) {
	return f.fills[runID], f.err
}

func newTestServer(t *testing.T, hist *fakeHistory) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_test_gauge", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(3)

	status := staticStatus{snap: reconciler.Snapshot{
		RunID:  "run-1",
		Symbol: "BTCUSDT",
		State:  reconciler.StatePolling,
		Tracked: []reconciler.TrackedOrder{
			{GridIndex: 3, Side: "buy", OrderID: "b3", Price: 87884},
			{GridIndex: 5, Side: "sell", OrderID: "s5", Price: 89861},
		},
	}}
	cfg := ServerConfig{Status: status, Gatherer: reg}
	if hist != nil {
		cfg.History = hist
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServerRequiresStatus(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthzReportsState(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","state":"polling"}`, rec.Body.String())
}

func TestStatusAndOrders(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/api/live/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap["run_id"])
	assert.Equal(t, "polling", snap["state"])

	rec = get(t, h, "/api/live/orders?side=SELL")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count  int                       `json:"count"`
		Orders []reconciler.TrackedOrder `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "s5", body.Orders[0].OrderID)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gridbot_test_gauge 3"))
}

func TestHistoryRoutesOnlyWithReader(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/live/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsAndFills(t *testing.T) {
	hist := &fakeHistory{
		runs: []model.GridRunModel{
			{RunID: "run-2", Symbol: "BTCUSDT", Status: model.RunStatusStopped, Reason: "interrupted",
				StatsJSON: datatypes.JSON(`{"net_pnl":1.5}`), StartedAtUnix: 1714521600000, EndedAtUnix: 1714525200000},
			{RunID: "run-1", Symbol: "BTCUSDT", Status: model.RunStatusFailed, StartedAtUnix: 1714435200000},
		},
		fills: map[string][]model.GridFillModel{
			"run-2": {{RunID: "run-2", GridIndex: 4, Side: "buy", FillPrice: 88867.13}},
		},
	}
	h := newTestServer(t, hist)

	rec := get(t, h, "/api/live/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Count int `json:"count"`
		Runs  []struct {
			RunID   string          `json:"run_id"`
			Status  string          `json:"status"`
			Stats   json.RawMessage `json:"stats"`
			EndedAt *string         `json:"ended_at"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, "stopped", runs.Runs[0].Status)
	assert.JSONEq(t, `{"net_pnl":1.5}`, string(runs.Runs[0].Stats))
	assert.NotNil(t, runs.Runs[0].EndedAt)

	rec = get(t, h, "/api/live/runs/run-2/fills")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fill_price":88867.13`)

	hist.err = errors.New("db locked")
	rec = get(t, h, "/api/live/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
