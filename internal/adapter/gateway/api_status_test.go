package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/eventbus"
	"suitcase-link/internal/usecase/session"
)

func TestHealthHandler(t *testing.T) {
	handler := healthHandler(time.Now().Add(-90 * time.Second))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(89))
}

func TestStatusHandler(t *testing.T) {
	deps, stub := newStubDeps()
	r := domain.NewReading(55, domain.UnitPounds, domain.TransportPeripheral)
	rssi := -61
	stub.snap = session.Snapshot{
		State:     domain.Connected(domain.Device{ID: "AA:BB", Name: "Suitcase"}),
		Transport: domain.TransportPeripheral,
		Devices:   []domain.Device{},
		Latest:    &r,
		Class:     domain.ClassEconomy,
		Threshold: 50,
		OverLimit: true,
		RSSI:      &rssi,
	}

	w := httptest.NewRecorder()
	statusHandler(deps)(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, domain.StateConnected, snap.State.Kind)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, 55.0, snap.Latest.Value)
	assert.True(t, snap.OverLimit)
	require.NotNil(t, snap.RSSI)
	assert.Equal(t, -61, *snap.RSSI)
}

func TestStatusHandlerMethodNotAllowed(t *testing.T) {
	deps, _ := newStubDeps()
	for _, h := range []http.HandlerFunc{statusHandler(deps), healthHandler(time.Now()), metricsHandler(NewMetrics(nil, deps.Session, time.Now()))} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	deps, stub := newStubDeps()
	r := domain.NewReading(23, domain.UnitKilograms, domain.TransportNetwork)
	stub.snap = session.Snapshot{
		State:     domain.Connected(domain.Device{ID: "http://x/weight"}),
		Latest:    &r,
		Class:     domain.ClassBusiness,
		Threshold: 70,
	}
	metrics := NewMetrics(nil, deps.Session, time.Now())
	metrics.ReadingsTotal.Add(12)
	metrics.AlertsTotal.Add(2)

	w := httptest.NewRecorder()
	metricsHandler(metrics)(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, want := range []string{
		"suitcase_readings_total 12",
		"suitcase_alerts_total 2",
		"suitcase_connected 1",
		`suitcase_threshold_pounds{class="business"} 70`,
		`suitcase_weight_pounds{source="network"} 50.7`,
		"suitcase_over_limit 0",
		"go_goroutines",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "suitcase_rssi_dbm")
}

func TestMetricsCountBusEvents(t *testing.T) {
	bus := eventbus.New(testLogger())
	m := NewMetrics(bus, nil, time.Now())

	ctx := context.Background()
	bus.Publish(ctx, domain.Event{Type: domain.EventReading})
	bus.Publish(ctx, domain.Event{Type: domain.EventReading})
	bus.Publish(ctx, domain.Event{Type: domain.EventAlertFired})
	bus.Publish(ctx, domain.Event{Type: domain.EventTransportError})
	bus.Publish(ctx, domain.Event{Type: domain.EventDevicesUpdated})
	bus.Close()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadingsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportErrorsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StateChangesTotal))
}

func TestRESTRoutesRequireToken(t *testing.T) {
	deps, _ := newStubDeps()
	srv := startTestServer(t, &testBus{}, func(s *Server) {
		RegisterRESTHandlers(s, deps)
	})
	base := "http://" + srv.BoundAddr()

	get := func(path string, header string) (int, string) {
		req, err := http.NewRequest(http.MethodGet, base+path, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	code, _ := get("/status", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := get("/status", "Bearer test-token")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, `"scanning"`), body)

	code, _ = get("/metrics?token=test-token", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/healthz", "")
	assert.Equal(t, http.StatusOK, code)
}
