//go:build !ble

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/config"
)

func TestBuildSources_NoBluetoothDropsPeripheral(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	sources, err := buildSources(config.Defaults(), log)
	if err != nil {
		t.Fatalf("buildSources: %v", err)
	}
	if len(sources) != 1 || sources[0].Kind() != domain.TransportNetwork {
		t.Fatalf("sources = %v, want only the network transport", sources)
	}
	if !strings.Contains(buf.String(), "bluetooth unavailable") {
		t.Errorf("expected a warning about bluetooth, got %q", buf.String())
	}
}

func TestBuildApp_PeripheralUnavailable(t *testing.T) {
	cfg := config.Defaults()
	a, err := buildApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	err = a.session.SelectTransport(context.Background(), domain.TransportPeripheral)
	if !errors.Is(err, domain.ErrUnknownTransport) {
		t.Errorf("SelectTransport(peripheral) = %v, want ErrUnknownTransport", err)
	}
}

func TestCheckBluetooth_NotCompiledIn(t *testing.T) {
	got := checkBluetooth(config.Defaults())
	if got.Status != StatusWarn || !strings.Contains(got.Message, "not compiled in") {
		t.Errorf("checkBluetooth = %s %q, want WARN about the ble tag", got.Status, got.Message)
	}
}
