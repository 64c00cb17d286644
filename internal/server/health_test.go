package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/leadflow/internal/automation"
)

func serve(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthChecker_Probes(t *testing.T) {
	h := NewHealthChecker()
	r := chi.NewRouter()
	h.RegisterHealthEndpoints(r)

	tests := []struct {
		name       string
		setup      func()
		path       string
		wantCode   int
		wantStatus string
	}{
		{"liveness", func() {}, "/healthz", http.StatusOK, "ok"},
		{"ready", func() {}, "/readyz", http.StatusOK, "ok"},
		{"detailed", func() {}, "/healthz/detailed", http.StatusOK, "ok"},
		{"not ready", func() { h.SetReady(false) }, "/readyz", http.StatusServiceUnavailable, "not ready"},
		{"detailed not ready", func() {}, "/healthz/detailed", http.StatusServiceUnavailable, "not ready"},
		{"liveness while not ready", func() {}, "/healthz", http.StatusOK, "ok"},
		{"shutting down", func() { h.SetReady(true); h.SetShuttingDown() }, "/readyz", http.StatusServiceUnavailable, "not ready"},
		{"detailed shutting down", func() {}, "/healthz/detailed", http.StatusServiceUnavailable, "shutting down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			rec, body := serve(t, r, tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestHealthChecker_ReadinessChecks(t *testing.T) {
	h := NewHealthChecker()
	h.SetShuttingDown()

	_, body := serve(t, h.ReadinessHandler(), "/readyz")
	checks, ok := body["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", checks["ready"])
	assert.Equal(t, "shutting down", checks["shutdown"])
}

func TestHealthChecker_LastRun(t *testing.T) {
	h := NewHealthChecker()
	assert.True(t, h.IsReady())
	assert.Nil(t, h.LastRun())

	_, body := serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.NotContains(t, body, "last_run")
	assert.NotEmpty(t, body["uptime"])

	h.RecordRun(&automation.Result{RunID: "run-9", Trigger: automation.TriggerSchedule, Welcomed: 1, Failed: 2}, nil)
	_, body = serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	last, ok := body["last_run"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-9", last["run_id"])
	assert.Equal(t, "schedule", last["trigger"])
	assert.Equal(t, float64(1), last["sent"])
	assert.Equal(t, float64(2), last["failed"])

	h.RecordRun(nil, errors.New("sheet unavailable"))
	report := h.LastRun()
	require.NotNil(t, report)
	assert.Equal(t, "error", report.Status)
	assert.Equal(t, "sheet unavailable", report.Error)
	assert.Empty(t, report.RunID)
}
