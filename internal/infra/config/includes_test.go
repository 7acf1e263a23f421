package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTree writes files (relative path → YAML) under a temp dir with 0600
// permissions and returns the path of config.yaml.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "config.yaml")
}

func TestLoadTripFragments(t *testing.T) {
	path := writeTree(t, map[string]string{
		"config.yaml": "includes:\n  - \"trips/*.yaml\"\nnetwork:\n  interval: 1s\n",
		"trips/a-outbound.yaml": `
session:
  class: business
network:
  endpoint: "http://10.0.0.7/weight"
  interval: 9s
`,
		"trips/b-hotel.yaml": `
network:
  endpoint: "http://10.0.0.8/weight"
  timeout: 3s
`,
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Class != "business" {
		t.Errorf("Session.Class = %q, want business", cfg.Session.Class)
	}
	if cfg.Network.Endpoint != "http://10.0.0.8/weight" {
		t.Errorf("Endpoint = %q, want the later fragment to win", cfg.Network.Endpoint)
	}
	if cfg.Network.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Network.Timeout)
	}
	if cfg.Network.Interval != time.Second {
		t.Errorf("Interval = %v, want the main file to win", cfg.Network.Interval)
	}
	if len(cfg.IncludedFiles) != 2 || !strings.HasSuffix(cfg.IncludedFiles[0], "a-outbound.yaml") {
		t.Errorf("IncludedFiles = %v", cfg.IncludedFiles)
	}
	if cfg.Includes != nil {
		t.Errorf("Includes = %v, want cleared after load", cfg.Includes)
	}
}

func TestLoadNestedFragment(t *testing.T) {
	path := writeTree(t, map[string]string{
		"config.yaml":          "includes: [\"profiles/travel.yaml\"]\n",
		"profiles/travel.yaml": "includes: [\"alerts.yaml\"]\nsession:\n  display_unit: kg\n",
		"profiles/alerts.yaml": "alerts:\n  throttle_burst: 2\n",
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.DisplayUnit != "kg" {
		t.Errorf("DisplayUnit = %q, want kg", cfg.Session.DisplayUnit)
	}
	if cfg.Alerts.ThrottleBurst != 2 {
		t.Errorf("ThrottleBurst = %d, want 2 from the nested fragment", cfg.Alerts.ThrottleBurst)
	}
}

func TestLoadEmptyFragmentKeepsDefaults(t *testing.T) {
	path := writeTree(t, map[string]string{
		"config.yaml": "includes: [\"empty.yaml\", \"conf.d/*.yaml\"]\n",
		"empty.yaml":  "",
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.Interval != 2*time.Second {
		t.Errorf("Interval = %v, want default 2s", cfg.Network.Interval)
	}
}

func TestLoadRejectsBadFragments(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name: "gateway section",
			files: map[string]string{
				"config.yaml": "includes: [\"tokens.yaml\"]\n",
				"tokens.yaml": "gateway:\n  addr: \"0.0.0.0:1\"\n",
			},
			wantErr: `may not set "gateway"`,
		},
		{
			name: "unknown section",
			files: map[string]string{
				"config.yaml": "includes: [\"x.yaml\"]\n",
				"x.yaml":      "netwrok:\n  interval: 1s\n",
			},
			wantErr: `may not set "netwrok"`,
		},
		{
			name: "unknown field",
			files: map[string]string{
				"config.yaml": "includes: [\"x.yaml\"]\n",
				"x.yaml":      "network:\n  intervall: 1s\n",
			},
			wantErr: "intervall",
		},
		{
			name: "cycle",
			files: map[string]string{
				"config.yaml": "includes: [\"a.yaml\"]\n",
				"a.yaml":      "includes: [\"b.yaml\"]\n",
				"b.yaml":      "includes: [\"a.yaml\"]\n",
			},
			wantErr: "include cycle",
		},
		{
			name: "self",
			files: map[string]string{
				"config.yaml": "includes: [\"config.yaml\"]\n",
			},
			wantErr: "include cycle",
		},
		{
			name: "escapes directory",
			files: map[string]string{
				"config.yaml": "includes: [\"../outside.yaml\"]\n",
			},
			wantErr: "escapes the config directory",
		},
		{
			name: "missing literal",
			files: map[string]string{
				"config.yaml": "includes: [\"gone.yaml\"]\n",
			},
			wantErr: "not found",
		},
		{
			name: "invalid yaml",
			files: map[string]string{
				"config.yaml": "includes: [\"bad.yaml\"]\n",
				"bad.yaml":    "session: [class: bad",
			},
			wantErr: "parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTree(t, tt.files))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsWritableFragment(t *testing.T) {
	path := writeTree(t, map[string]string{
		"config.yaml": "includes: [\"shared.yaml\"]\n",
		"shared.yaml": "logger:\n  level: debug\n",
	})
	if err := os.Chmod(filepath.Join(filepath.Dir(path), "shared.yaml"), 0o666); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "insecure permissions") {
		t.Fatalf("expected permissions error, got %v", err)
	}
}

func TestLoadFragmentDepthLimit(t *testing.T) {
	files := map[string]string{"config.yaml": "includes: [\"f1.yaml\"]\n"}
	for i := 1; i <= maxIncludeDepth+1; i++ {
		files[fmt.Sprintf("f%d.yaml", i)] = fmt.Sprintf("includes: [\"f%d.yaml\"]\n", i+1)
	}
	files[fmt.Sprintf("f%d.yaml", maxIncludeDepth+2)] = ""

	_, err := Load(writeTree(t, files))
	if err == nil || !strings.Contains(err.Error(), "nested deeper") {
		t.Fatalf("expected depth error, got %v", err)
	}
}
