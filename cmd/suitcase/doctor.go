package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"suitcase-link/internal/adapter/history"
	"suitcase-link/internal/adapter/network"
	"suitcase-link/internal/adapter/peripheral"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// bluetoothScanWindow is how long the doctor listens for advertisements.
const bluetoothScanWindow = 3 * time.Second

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Bluetooth", Fn: checkBluetooth},
		{Name: "Suitcase endpoint", Fn: checkEndpoint},
		{Name: "Slack alerts", Fn: checkSlack},
		{Name: "Gateway", Fn: checkGateway},
		{Name: "Trip history", Fn: checkHistory},
	}

	fmt.Println("suitcase doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn == 0 {
		fmt.Println("\nAll checks passed.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loaded. A
// missing file is only a warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and permissions (chmod 600)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults", cfgPath),
				Fix:     "Create config.yaml or pass --config",
			}
		}
		msg := fmt.Sprintf("config loaded from %s", cfgPath)
		if cfg != nil && len(cfg.IncludedFiles) > 0 {
			msg += fmt.Sprintf(" (+%d included: %s)", len(cfg.IncludedFiles), strings.Join(cfg.IncludedFiles, ", "))
		}
		return CheckResult{
			Status:  StatusPass,
			Message: msg,
		}
	}
}

var bluetoothNotCompiled = CheckResult{
	Status:  StatusWarn,
	Message: "bluetooth support not compiled in",
	Fix:     "Rebuild with -tags ble",
}

// checkBluetooth enables the adapter and listens briefly for suitcases.
func checkBluetooth(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "config not loaded"}
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	radio, err := peripheral.NewBluetoothRadio(quiet)
	if errors.Is(err, domain.ErrDisabled) {
		return bluetoothNotCompiled
	}
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Turn Bluetooth on and grant this program access to it",
		}
	}
	return scanCheck(radio, cfg.Peripheral.ServiceUUID, bluetoothScanWindow)
}

func scanCheck(radio peripheral.Radio, service string, window time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]bool)
	err := radio.Scan(ctx, service, func(ad peripheral.Advertisement) {
		mu.Lock()
		seen[ad.ID] = true
		mu.Unlock()
	})
	mu.Lock()
	defer mu.Unlock()
	switch {
	case errors.Is(err, domain.ErrDisabled):
		return bluetoothNotCompiled
	case err != nil && !errors.Is(err, context.DeadlineExceeded):
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("scan failed: %v", err)}
	case len(seen) == 0:
		return CheckResult{
			Status:  StatusWarn,
			Message: "no suitcases advertising nearby",
			Fix:     "Wake the suitcase and keep it within a few metres",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d suitcase(s) in range", len(seen))}
}

// checkEndpoint performs one weight poll against the configured endpoint.
func checkEndpoint(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "config not loaded"}
	}
	if cfg.Network.Discovery.Enabled {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("endpoint discovered at runtime via %s", cfg.Network.Discovery.Service),
		}
	}

	client := network.NewHTTPClient(cfg.Network.Timeout)
	resp, err := client.Get(cfg.Network.Endpoint)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s unreachable: %v", cfg.Network.Endpoint, err),
			Fix:     "Only needed for the network transport; check the suitcase is on this network",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s returned HTTP %d", cfg.Network.Endpoint, resp.StatusCode),
			Fix:     "Verify network.endpoint points at the suitcase /weight path",
		}
	}
	var body struct {
		Weight *float64 `json:"weight"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil || body.Weight == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s did not return {\"weight\": <kg>}", cfg.Network.Endpoint),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reports %.2f kg", cfg.Network.Endpoint, *body.Weight),
	}
}

func checkSlack(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "config not loaded"}
	}
	if cfg.Alerts.Slack.WebhookURL == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no webhook configured; alerts are only logged",
			Fix:     "Set alerts.slack.webhook_url or SUITCASE_SLACK_WEBHOOK_URL",
		}
	}
	return CheckResult{Status: StatusPass, Message: "webhook configured"}
}

// checkGateway verifies the gateway address is free and flags an open
// gateway listening beyond loopback.
func checkGateway(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "config not loaded"}
	}
	if !cfg.Gateway.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}

	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Gateway.Addr, err),
			Fix:     "Stop the other process or change gateway.addr",
		}
	}
	ln.Close()

	if cfg.Gateway.Auth.Type != "static" && !isLoopback(cfg.Gateway.Addr) {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s is reachable from the network without authentication", cfg.Gateway.Addr),
			Fix:     "Set gateway.auth.type: static with tokens",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s available", cfg.Gateway.Addr)}
}

// checkHistory opens the trip log to confirm the database path is usable.
func checkHistory(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "config not loaded"}
	}
	if !cfg.History.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.History.Path, err),
			Fix:     "Check history.path points at a writable location",
		}
	}
	defer store.Close()

	readings, err := store.Readings(context.Background(), 1)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("query failed: %v", err)}
	}
	if len(readings) == 0 {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s ready (empty)", cfg.History.Path)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s ready, last reading %s", cfg.History.Path, readings[0].ReceivedAt.Local().Format(time.RFC822)),
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
