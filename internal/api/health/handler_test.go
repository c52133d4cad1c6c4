package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

func newHandler(checks map[string]CheckFunc) *Handler {
	h := New(logger.New(zap.NewNop()), "tripmind", "test")
	for name, c := range checks {
		h.AddCheck(name, c)
	}
	return h
}

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.ErrUnavailable }

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var s HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	return s
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		wantCode int
		want     string
	}{
		{"no dependencies", nil, http.StatusOK, "healthy"},
		{"all up", map[string]CheckFunc{"redis": ok, "kafka": ok}, http.StatusOK, "healthy"},
		{"partial", map[string]CheckFunc{"redis": ok, "kafka": down}, http.StatusOK, "degraded"},
		{"all down", map[string]CheckFunc{"redis": down}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandler(tt.checks).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			s := decode(t, rec)
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, "tripmind", s.Service)
			assert.Len(t, s.Checks, len(tt.checks))
		})
	}
}

func TestHandleReadiness(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(map[string]CheckFunc{"redis": ok, "kafka": down}).
		HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	s := decode(t, rec)
	assert.Equal(t, "unhealthy", s.Status)
	assert.Equal(t, "unhealthy", s.Checks["kafka"].Status)
	assert.NotEmpty(t, s.Checks["kafka"].Error)
	assert.Equal(t, "healthy", s.Checks["redis"].Status)
}

func TestHandleLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(nil).HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
