package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
	"github.com/veranemoloko/bulk-downloader/internal/metrics"
)

type mockSource struct {
	snap domain.StatusResponse
}

func (m *mockSource) Snapshot() domain.StatusResponse { return m.snap }

func newTestServer(t *testing.T, source StatusSource) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(source, logger))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, &mockSource{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var data map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_Stats(t *testing.T) {
	resumeAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	source := &mockSource{snap: domain.StatusResponse{
		RunID:    "run-1",
		InFlight: 3,
		Queued:   7,
		Stats:    domain.Statistics{Total: 12, Downloaded: 2, PauseEvents: 1},
		Circuit: domain.CircuitState{
			Mode:                   domain.CircuitPaused,
			ConsecutiveCorruptions: 0,
			ResumeAt:               &resumeAt,
		},
	}}
	srv := newTestServer(t, source)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got domain.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.InFlight)
	assert.Equal(t, 7, got.Queued)
	assert.Equal(t, 12, got.Stats.Total)
	assert.Equal(t, 1, got.Stats.PauseEvents)
	assert.Equal(t, domain.CircuitPaused, got.Circuit.Mode)
	require.NotNil(t, got.Circuit.ResumeAt)
	assert.True(t, resumeAt.Equal(*got.Circuit.ResumeAt))
}

func TestStatusHandler_NoSource(t *testing.T) {
	h := NewStatusHandler(nil, nil)

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no run in progress")
}

func TestRouter_Metrics(t *testing.T) {
	metrics.TasksSkipped.Inc()
	srv := newTestServer(t, &mockSource{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "bulk_downloader_tasks_skipped_total"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, &mockSource{})

	resp, err := http.Get(srv.URL + "/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
