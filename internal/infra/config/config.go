package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the suitcase link.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Session    SessionConfig    `yaml:"session"`
	Peripheral PeripheralConfig `yaml:"peripheral"`
	Network    NetworkConfig    `yaml:"network"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	History    HistoryConfig    `yaml:"history"`
	Includes   []string         `yaml:"includes,omitempty"`

	// IncludedFiles lists the fragments merged by Load, in merge order.
	IncludedFiles []string `yaml:"-"`
}

// SessionConfig holds the connectivity session's startup settings.
type SessionConfig struct {
	Class       string `yaml:"class"`        // "economy" or "business"
	Transport   string `yaml:"transport"`    // transport selected at startup; empty for none
	DisplayUnit string `yaml:"display_unit"` // "lbs" or "kg"
}

// PeripheralConfig holds BLE transport settings.
type PeripheralConfig struct {
	ServiceUUID        string        `yaml:"service_uuid"`
	CharacteristicUUID string        `yaml:"characteristic_uuid"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	RSSIInterval       time.Duration `yaml:"rssi_interval"` // 0 disables sampling
}

// NetworkConfig holds polled HTTP transport settings.
type NetworkConfig struct {
	Endpoint  string          `yaml:"endpoint"`
	Interval  time.Duration   `yaml:"interval"`
	Timeout   time.Duration   `yaml:"timeout"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// DiscoveryConfig controls mDNS lookup of the suitcase endpoint.
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Service string        `yaml:"service"`
	Timeout time.Duration `yaml:"timeout"`
}

// BreakerConfig configures the poll circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AlertsConfig controls where overweight alerts are delivered.
type AlertsConfig struct {
	ThrottlePer   time.Duration `yaml:"throttle_per"`
	ThrottleBurst int           `yaml:"throttle_burst"`
	Timeout       time.Duration `yaml:"timeout"`
	Slack         SlackConfig   `yaml:"slack"`
}

// SlackConfig holds incoming-webhook settings. An empty WebhookURL disables it.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel,omitempty"`
}

// GatewayConfig holds WebSocket gateway settings.
type GatewayConfig struct {
	Enabled   bool       `yaml:"enabled"`
	Addr      string     `yaml:"addr"`
	RateLimit float64    `yaml:"rate_limit"` // requests per second per client IP; 0 disables
	Auth      AuthConfig `yaml:"auth"`
}

// AuthConfig configures gateway authentication.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "none" or "static"
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig is a single static token entry.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// HistoryConfig controls the local SQLite trip log.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`      // rows older than this are pruned
	PruneSchedule string        `yaml:"prune_schedule"` // cron expression or duration
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		Session: SessionConfig{
			Class:       "economy",
			DisplayUnit: "lbs",
		},
		Peripheral: PeripheralConfig{
			ServiceUUID:        "4fafc201-1fb5-459e-8fcc-c5c9c331914b",
			CharacteristicUUID: "beb5483e-36e1-4688-b7f5-ea07361b26a8",
			ConnectTimeout:     15 * time.Second,
			RSSIInterval:       5 * time.Second,
		},
		Network: NetworkConfig{
			Endpoint: "http://192.168.1.100/weight",
			Interval: 2 * time.Second,
			Timeout:  5 * time.Second,
			Discovery: DiscoveryConfig{
				Service: "_suitcase._tcp",
				Timeout: 3 * time.Second,
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     10 * time.Second,
			},
		},
		Alerts: AlertsConfig{
			ThrottlePer:   time.Minute,
			ThrottleBurst: 1,
			Timeout:       10 * time.Second,
		},
		Gateway: GatewayConfig{
			Addr:      "127.0.0.1:8790",
			RateLimit: 20,
			Auth: AuthConfig{
				Type: "none",
			},
		},
		History: HistoryConfig{
			Path:          "suitcase-history.db",
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "@daily",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass picks up the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		loader := newFragmentLoader(cfg, absPath)
		if err := loader.includeAll(cfg.Includes, filepath.Dir(absPath), 0); err != nil {
			return nil, err
		}
		cfg.IncludedFiles = loader.loaded

		// Second pass so the main file wins over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("SUITCASE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps SUITCASE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUITCASE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("SUITCASE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("SUITCASE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("SUITCASE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("SUITCASE_CLASS"); v != "" {
		cfg.Session.Class = v
	}
	if v := os.Getenv("SUITCASE_TRANSPORT"); v != "" {
		cfg.Session.Transport = v
	}
	if v := os.Getenv("SUITCASE_DISPLAY_UNIT"); v != "" {
		cfg.Session.DisplayUnit = v
	}
	if v := os.Getenv("SUITCASE_PERIPHERAL_SERVICE_UUID"); v != "" {
		cfg.Peripheral.ServiceUUID = v
	}
	if v := os.Getenv("SUITCASE_PERIPHERAL_CHARACTERISTIC_UUID"); v != "" {
		cfg.Peripheral.CharacteristicUUID = v
	}
	if v := os.Getenv("SUITCASE_NETWORK_ENDPOINT"); v != "" {
		cfg.Network.Endpoint = v
	}
	if v := os.Getenv("SUITCASE_NETWORK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Network.Interval = d
		}
	}
	if v := os.Getenv("SUITCASE_NETWORK_DISCOVERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Network.Discovery.Enabled = b
		}
	}
	if v := os.Getenv("SUITCASE_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
	}
	if v := os.Getenv("SUITCASE_GATEWAY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.Enabled = b
		}
	}
	if v := os.Getenv("SUITCASE_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("SUITCASE_HISTORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History.Enabled = b
		}
	}
	if v := os.Getenv("SUITCASE_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("SUITCASE_GATEWAY_TOKENS"); v != "" && len(cfg.Gateway.Auth.Tokens) == 0 {
		for i, tok := range splitAndTrim(v, ",") {
			if tok == "" {
				continue
			}
			cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{
				Token: tok,
				Name:  fmt.Sprintf("env-%d", i),
			})
		}
		if len(cfg.Gateway.Auth.Tokens) > 0 {
			cfg.Gateway.Auth.Type = "static"
		}
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// decryptSecrets replaces "enc:..." values in the Slack webhook and gateway
// tokens with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Alerts.Slack.WebhookURL, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Alerts.Slack.WebhookURL, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("slack webhook_url: %w", err)
		}
		cfg.Alerts.Slack.WebhookURL = decrypted
	}

	for i := range cfg.Gateway.Auth.Tokens {
		tok := cfg.Gateway.Auth.Tokens[i].Token
		if strings.HasPrefix(tok, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(tok, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("gateway auth token %s: %w", cfg.Gateway.Auth.Tokens[i].Name, err)
			}
			cfg.Gateway.Auth.Tokens[i].Token = decrypted
		}
	}

	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
