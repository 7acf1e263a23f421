package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"suitcase-link/internal/adapter/history"
	"suitcase-link/internal/adapter/notify"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"suitcase"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func TestConfigPath(t *testing.T) {
	t.Setenv("SUITCASE_CONFIG", "")

	withArgs(t, "monitor", "--config", "/etc/suitcase.yaml")
	if got := configPath(); got != "/etc/suitcase.yaml" {
		t.Errorf("--config PATH: got %q", got)
	}

	withArgs(t, "--config=/tmp/s.yaml")
	if got := configPath(); got != "/tmp/s.yaml" {
		t.Errorf("--config=PATH: got %q", got)
	}

	withArgs(t, "run")
	t.Setenv("SUITCASE_CONFIG", "/env/config.yaml")
	if got := configPath(); got != "/env/config.yaml" {
		t.Errorf("env: got %q", got)
	}

	t.Setenv("SUITCASE_CONFIG", "")
	if got := configPath(); got != "config.yaml" {
		t.Errorf("default: got %q", got)
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.Defaults().Alerts
	n, ok := buildNotifier(cfg, testLogger()).(notify.Multi)
	if !ok {
		t.Fatalf("expected notify.Multi")
	}
	if len(n) != 1 || n[0].Name() != "log" {
		t.Fatalf("without webhook: got %d notifiers", len(n))
	}

	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/X"
	n = buildNotifier(cfg, testLogger()).(notify.Multi)
	if len(n) != 2 || n[1].Name() != "slack" {
		t.Fatalf("with webhook: got %v", n)
	}
}

func TestBuildResolver(t *testing.T) {
	cfg := config.Defaults().Network
	cfg.Endpoint = "http://10.0.0.7/weight"
	r, err := buildResolver(cfg, testLogger())
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	got, err := r.Resolve(context.Background())
	if err != nil || got != "http://10.0.0.7/weight" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}

	cfg.Endpoint = "ftp://nope"
	if _, err := buildResolver(cfg, testLogger()); err == nil {
		t.Error("expected error for non-http endpoint")
	}
}

func TestBuildGateway_AuthTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Defaults()
	for _, authType := range []string{"none", "static"} {
		gw := cfg.Gateway
		gw.Auth.Type = authType
		gw.Auth.Tokens = []config.TokenConfig{{Token: "secret", Name: "phone"}}
		if _, err := buildGateway(ctx, gw, nil, nil, nil, testLogger()); err != nil {
			t.Errorf("%s: %v", authType, err)
		}
	}

	gw := cfg.Gateway
	gw.Auth.Type = "oauth"
	if _, err := buildGateway(ctx, gw, nil, nil, nil, testLogger()); err == nil {
		t.Error("expected error for unknown auth type")
	}
}

func TestBuildApp_NetworkTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"weight": 10}`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Session.Transport = "network"
	cfg.Network.Endpoint = srv.URL + "/weight"
	cfg.Network.Interval = 20 * time.Millisecond

	a, err := buildApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	if a.gateway != nil {
		t.Error("gateway should be disabled by default")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := a.session.Snapshot()
		if snap.Transport == domain.TransportNetwork && snap.Latest != nil {
			if snap.Latest.Unit != domain.UnitKilograms || snap.Latest.Value != 10 {
				t.Errorf("latest = %+v", *snap.Latest)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no network reading arrived; snapshot %+v", a.session.Snapshot())
}

func TestBuildApp_BadTransport(t *testing.T) {
	cfg := config.Defaults()
	cfg.Session.Transport = "carrier-pigeon"
	if _, err := buildApp(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestBuildApp_HistoryRecordsReadings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"weight": 24}`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Session.Transport = "network"
	cfg.Network.Endpoint = srv.URL + "/weight"
	cfg.Network.Interval = 20 * time.Millisecond
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "trip.db")

	a, err := buildApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	if a.history == nil {
		t.Fatal("history store should be open")
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alerts, err := a.history.Alerts(context.Background(), 0)
		if err != nil {
			t.Fatalf("Alerts: %v", err)
		}
		if len(alerts) == 1 {
			readings, _ := a.history.Readings(context.Background(), 0)
			if len(readings) == 0 || !readings[0].OverLimit {
				t.Errorf("readings = %+v", readings)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("overweight alert never reached the history store")
}

func TestPruneHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "trip.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	old := domain.Reading{Value: 10, Unit: domain.UnitKilograms, ReceivedAt: time.Now().Add(-48 * time.Hour)}
	if err := store.RecordReading(ctx, domain.ReadingPayload{Reading: old, Class: domain.ClassEconomy}); err != nil {
		t.Fatal(err)
	}
	if err := pruneHistory(store, 24*time.Hour, testLogger())(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if readings, _ := store.Readings(ctx, 0); len(readings) != 0 {
		t.Errorf("old reading survived pruning: %+v", readings)
	}
}
