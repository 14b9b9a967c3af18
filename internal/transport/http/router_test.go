package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelguard/pkg/platform/middleware/requestid"
	"travelguard/pkg/requestcontext"
)

type stubHandler struct{}

func (stubHandler) Register(r chi.Router) {
	r.Post("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline := r.Context().Deadline()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"deadline":   hasDeadline,
			"request_id": requestcontext.RequestID(r.Context()),
		})
	})
	r.Post("/v1/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newRouter(degraded bool) http.Handler {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "travelguard_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	return NewRouter(RouterConfig{
		RequestTimeout: time.Second,
		Gatherer:       reg,
		Health:         Health{Backend: "redis", Degraded: func() bool { return degraded }},
	}, stubHandler{})
}

func TestRouter_Healthz(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, healthResponse{Status: "ok", Store: "redis", Degraded: true}, got)
}

func TestRouter_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "travelguard_test_total 1")
}

func TestRouter_APIRoutesCarryTimeoutAndRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/echo", strings.NewReader("{}"))
	req.Header.Set(requestid.Header, "req-7")
	w := httptest.NewRecorder()
	newRouter(false).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, true, got["deadline"])
	assert.Equal(t, "req-7", got["request_id"])
}

func TestRouter_RecoversFromHandlerPanic(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
