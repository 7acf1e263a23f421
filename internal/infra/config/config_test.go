package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Session.Class != "economy" {
		t.Errorf("Session.Class = %q, want %q", cfg.Session.Class, "economy")
	}
	if cfg.Network.Endpoint != "http://192.168.1.100/weight" {
		t.Errorf("Network.Endpoint = %q", cfg.Network.Endpoint)
	}
	if cfg.Network.Interval != 2*time.Second {
		t.Errorf("Network.Interval = %v, want 2s", cfg.Network.Interval)
	}
	if cfg.Network.Timeout != 5*time.Second {
		t.Errorf("Network.Timeout = %v, want 5s", cfg.Network.Timeout)
	}
	if cfg.Peripheral.ServiceUUID != "4fafc201-1fb5-459e-8fcc-c5c9c331914b" {
		t.Errorf("Peripheral.ServiceUUID = %q", cfg.Peripheral.ServiceUUID)
	}
	if cfg.Peripheral.CharacteristicUUID != "beb5483e-36e1-4688-b7f5-ea07361b26a8" {
		t.Errorf("Peripheral.CharacteristicUUID = %q", cfg.Peripheral.CharacteristicUUID)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load("/tmp/nonexistent-suitcase-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.Interval != 2*time.Second {
		t.Errorf("expected defaults, got Network.Interval=%v", cfg.Network.Interval)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
session:
  class: "business"
  transport: "network"
  display_unit: "kg"
network:
  endpoint: "http://10.0.0.7/weight"
  interval: 500ms
peripheral:
  connect_timeout: 30s
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Class != "business" {
		t.Errorf("Session.Class = %q, want %q", cfg.Session.Class, "business")
	}
	if cfg.Session.Transport != "network" {
		t.Errorf("Session.Transport = %q, want %q", cfg.Session.Transport, "network")
	}
	if cfg.Network.Endpoint != "http://10.0.0.7/weight" {
		t.Errorf("Network.Endpoint = %q", cfg.Network.Endpoint)
	}
	if cfg.Network.Interval != 500*time.Millisecond {
		t.Errorf("Network.Interval = %v, want 500ms", cfg.Network.Interval)
	}
	if cfg.Network.Timeout != 5*time.Second {
		t.Errorf("Network.Timeout = %v, want default 5s", cfg.Network.Timeout)
	}
	if cfg.Peripheral.ConnectTimeout != 30*time.Second {
		t.Errorf("Peripheral.ConnectTimeout = %v, want 30s", cfg.Peripheral.ConnectTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
session:
  class: "first"
network:
  interval: 0s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(ve.Errors), ve.Errors)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUITCASE_CLASS", "business")
	t.Setenv("SUITCASE_TRANSPORT", "peripheral")
	t.Setenv("SUITCASE_LOGGER_LEVEL", "debug")
	t.Setenv("SUITCASE_NETWORK_ENDPOINT", "http://suitcase.local/weight")
	t.Setenv("SUITCASE_NETWORK_INTERVAL", "1s")
	t.Setenv("SUITCASE_NETWORK_DISCOVERY", "true")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Session.Class != "business" {
		t.Errorf("Session.Class = %q, want %q", cfg.Session.Class, "business")
	}
	if cfg.Session.Transport != "peripheral" {
		t.Errorf("Session.Transport = %q, want %q", cfg.Session.Transport, "peripheral")
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Network.Endpoint != "http://suitcase.local/weight" {
		t.Errorf("Network.Endpoint = %q", cfg.Network.Endpoint)
	}
	if cfg.Network.Interval != time.Second {
		t.Errorf("Network.Interval = %v, want 1s", cfg.Network.Interval)
	}
	if !cfg.Network.Discovery.Enabled {
		t.Error("Network.Discovery.Enabled should be true")
	}
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("SUITCASE_NETWORK_INTERVAL", "soon")
	t.Setenv("SUITCASE_GATEWAY_ENABLED", "maybe")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Network.Interval != 2*time.Second {
		t.Errorf("Network.Interval = %v, want default", cfg.Network.Interval)
	}
	if cfg.Gateway.Enabled {
		t.Error("Gateway.Enabled should stay false")
	}
}

func TestApplyEnvOverridesTracer(t *testing.T) {
	t.Setenv("SUITCASE_TRACER_ENABLED", "true")
	t.Setenv("SUITCASE_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled {
		t.Error("Tracer.Enabled should be true")
	}
	if cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer.Exporter = %q, want %q", cfg.Tracer.Exporter, "stdout")
	}
}

func TestApplyEnvOverridesGatewayTokens(t *testing.T) {
	t.Setenv("SUITCASE_GATEWAY_TOKENS", "alpha, beta,")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Gateway.Auth.Type != "static" {
		t.Errorf("Auth.Type = %q, want %q", cfg.Gateway.Auth.Type, "static")
	}
	if len(cfg.Gateway.Auth.Tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(cfg.Gateway.Auth.Tokens))
	}
	if cfg.Gateway.Auth.Tokens[1].Token != "beta" {
		t.Errorf("Tokens[1] = %q, want %q", cfg.Gateway.Auth.Tokens[1].Token, "beta")
	}
}

func TestApplyEnvOverridesGatewayTokensSkipsConfigured(t *testing.T) {
	t.Setenv("SUITCASE_GATEWAY_TOKENS", "from-env")

	cfg := Defaults()
	cfg.Gateway.Auth.Tokens = []TokenConfig{{Token: "from-file", Name: "ops"}}
	ApplyEnvOverrides(cfg)

	if len(cfg.Gateway.Auth.Tokens) != 1 || cfg.Gateway.Auth.Tokens[0].Token != "from-file" {
		t.Errorf("configured tokens should win: %+v", cfg.Gateway.Auth.Tokens)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "https://hooks.slack.com/services/T000/B000/XXXX"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptValue(encrypted, "wrong-pass")
	if err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	webhook := "https://hooks.slack.com/services/T000/B000/XXXX"

	encWebhook, err := EncryptValue(webhook, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	encToken, err := EncryptValue("gw-secret", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	cfg := Defaults()
	cfg.Alerts.Slack.WebhookURL = "enc:" + encWebhook
	cfg.Gateway.Auth.Tokens = []TokenConfig{
		{Name: "ops", Token: "enc:" + encToken},
		{Name: "plain", Token: "left-alone"},
	}

	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}

	if cfg.Alerts.Slack.WebhookURL != webhook {
		t.Errorf("WebhookURL = %q, want %q", cfg.Alerts.Slack.WebhookURL, webhook)
	}
	if cfg.Gateway.Auth.Tokens[0].Token != "gw-secret" {
		t.Errorf("Tokens[0] = %q, want %q", cfg.Gateway.Auth.Tokens[0].Token, "gw-secret")
	}
	if cfg.Gateway.Auth.Tokens[1].Token != "left-alone" {
		t.Errorf("Tokens[1] should remain unchanged, got %q", cfg.Gateway.Auth.Tokens[1].Token)
	}
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Auth.Tokens = []TokenConfig{{Name: "ops", Token: "enc:notvalidhex"}}

	if err := decryptSecrets(cfg, "passphrase"); err == nil {
		t.Error("expected error for invalid ciphertext")
	}
}

func TestDecryptValueInvalidFormat(t *testing.T) {
	if _, err := DecryptValue("no-colon-here", "passphrase"); err == nil {
		t.Error("expected error for missing separator")
	}
}

func TestDecryptValueInvalidSalt(t *testing.T) {
	if _, err := DecryptValue("zz:aabb", "passphrase"); err == nil {
		t.Error("expected error for invalid salt hex")
	}
}

func TestDecryptValueTooShort(t *testing.T) {
	// Valid hex but too short for nonce+ciphertext
	_, err := DecryptValue("aabbccddee112233aabbccddee112233:aabb", "passphrase")
	if err == nil {
		t.Error("expected error for ciphertext too short")
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "test-load-key"
	webhook := "https://hooks.slack.com/services/T1/B1/abc"

	encrypted, err := EncryptValue(webhook, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
alerts:
  slack:
    webhook_url: "enc:` + encrypted + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUITCASE_CONFIG_KEY", passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Alerts.Slack.WebhookURL != webhook {
		t.Errorf("WebhookURL = %q, want %q", cfg.Alerts.Slack.WebhookURL, webhook)
	}
}

func TestLoadDecryptSecretsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
alerts:
  slack:
    webhook_url: "enc:invalid-not-hex"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUITCASE_CONFIG_KEY", "some-passphrase")
	if _, err := Load(path); err == nil {
		t.Error("expected error from decrypt secrets")
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insecure.yaml")
	if err := os.WriteFile(path, []byte("session:\n  class: business\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Chmod after writing so the umask cannot mask the group/world write bits.
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("invalid: [yaml: bad"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		mode os.FileMode
		ok   bool
	}{
		{"owner only", 0600, true},
		{"world readable", 0644, true},
		{"world writable", 0666, false},
		{"group writable", 0660, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			if err := os.WriteFile(path, []byte("test"), 0600); err != nil {
				t.Fatal(err)
			}
			if err := os.Chmod(path, tc.mode); err != nil {
				t.Fatal(err)
			}
			err := validatePermissions(path)
			if tc.ok && err != nil {
				t.Errorf("%o should pass: %v", tc.mode, err)
			}
			if !tc.ok && err == nil {
				t.Errorf("%o should fail", tc.mode)
			}
		})
	}
}

func TestValidatePermissionsStatError(t *testing.T) {
	if err := validatePermissions("/tmp/nonexistent-file-for-stat-test-xyz.yaml"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestApplyEnvOverridesHistory(t *testing.T) {
	t.Setenv("SUITCASE_HISTORY_ENABLED", "true")
	t.Setenv("SUITCASE_HISTORY_PATH", "/var/lib/suitcase/trip.db")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.History.Enabled {
		t.Error("History.Enabled should be true")
	}
	if cfg.History.Path != "/var/lib/suitcase/trip.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
}
