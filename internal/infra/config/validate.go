package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/scheduling"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateSession(cfg, ve)
	validatePeripheral(cfg, ve)
	validateNetwork(cfg, ve)
	validateAlerts(cfg, ve)
	validateGateway(cfg, ve)
	validateHistory(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want debug, info, warn or error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported (want noop or stdout)", cfg.Tracer.Exporter)
	}
}

func validateSession(cfg *Config, ve *ValidationError) {
	if _, err := domain.ParseClassOfTravel(cfg.Session.Class); err != nil {
		ve.Add("session.class %q is invalid (want economy or business)", cfg.Session.Class)
	}
	if cfg.Session.Transport != "" {
		if _, err := domain.ParseTransportKind(cfg.Session.Transport); err != nil {
			ve.Add("session.transport %q is invalid (want peripheral or network)", cfg.Session.Transport)
		}
	}
	if _, err := domain.ParseDisplayUnit(cfg.Session.DisplayUnit); err != nil {
		ve.Add("session.display_unit %q is invalid (want lbs or kg)", cfg.Session.DisplayUnit)
	}
}

func validatePeripheral(cfg *Config, ve *ValidationError) {
	p := cfg.Peripheral
	if p.ServiceUUID == "" {
		ve.Add("peripheral.service_uuid is required")
	}
	if p.CharacteristicUUID == "" {
		ve.Add("peripheral.characteristic_uuid is required")
	}
	if p.ConnectTimeout <= 0 {
		ve.Add("peripheral.connect_timeout must be positive")
	}
	if p.RSSIInterval < 0 {
		ve.Add("peripheral.rssi_interval must not be negative")
	}
}

func validateNetwork(cfg *Config, ve *ValidationError) {
	n := cfg.Network
	if n.Interval <= 0 {
		ve.Add("network.interval must be positive")
	}
	if n.Timeout <= 0 {
		ve.Add("network.timeout must be positive")
	}
	if !n.Discovery.Enabled && n.Endpoint != "" {
		u, err := url.Parse(n.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("network.endpoint %q must be an absolute http(s) URL", n.Endpoint)
		}
	}
	if n.Discovery.Enabled {
		if n.Discovery.Service == "" {
			ve.Add("network.discovery.service is required when discovery is enabled")
		}
		if n.Discovery.Timeout <= 0 {
			ve.Add("network.discovery.timeout must be positive")
		}
	}
	if n.Breaker.MaxFailures == 0 {
		ve.Add("network.breaker.max_failures must be at least 1")
	}
	if n.Breaker.Timeout <= 0 {
		ve.Add("network.breaker.timeout must be positive")
	}
}

func validateAlerts(cfg *Config, ve *ValidationError) {
	a := cfg.Alerts
	if a.ThrottlePer < 0 {
		ve.Add("alerts.throttle_per must not be negative")
	}
	if a.ThrottlePer > 0 && a.ThrottleBurst < 1 {
		ve.Add("alerts.throttle_burst must be at least 1 when throttling")
	}
	if a.Slack.WebhookURL != "" && !strings.HasPrefix(a.Slack.WebhookURL, "enc:") {
		if u, err := url.Parse(a.Slack.WebhookURL); err != nil || u.Scheme != "https" {
			ve.Add("alerts.slack.webhook_url must be an https URL")
		}
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	if cfg.Gateway.RateLimit < 0 {
		ve.Add("gateway.rate_limit must not be negative")
	}
	switch cfg.Gateway.Auth.Type {
	case "", "none":
	case "static":
		if len(cfg.Gateway.Auth.Tokens) == 0 {
			ve.Add("gateway.auth.tokens is required for static auth")
		}
		for i, tok := range cfg.Gateway.Auth.Tokens {
			if tok.Token == "" {
				ve.Add("gateway.auth.tokens[%d].token is required", i)
			}
		}
	default:
		ve.Add("gateway.auth.type %q is invalid (want none or static)", cfg.Gateway.Auth.Type)
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	h := cfg.History
	if !h.Enabled {
		return
	}
	if h.Path == "" {
		ve.Add("history.path is required when history is enabled")
	}
	if h.Retention < 0 {
		ve.Add("history.retention must not be negative")
	}
	if h.Retention > 0 {
		if _, err := scheduling.ParseSchedule(h.PruneSchedule); err != nil {
			ve.Add("history.prune_schedule %q is invalid: %v", h.PruneSchedule, err)
		}
	}
}
