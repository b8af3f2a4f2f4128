package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("LoadConfig with explicit missing file should fail, got %v", v)
	}

	// Search-path mode tolerates a missing file.
	t.Chdir(t.TempDir())
	v, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetDuration("plugins.liveness.sweep_interval"); got != 30*time.Second {
		t.Errorf("sweep_interval = %v, want 30s", got)
	}
	if got := v.GetInt("plugins.liveness.tiers.large.concurrency"); got != 100 {
		t.Errorf("large concurrency = %d, want 100", got)
	}
	if !v.GetBool("plugins.liveness.continuous") {
		t.Error("continuous = false, want true")
	}
	if got := v.GetFloat64("plugins.liveness.sweep_rate"); got != 0.2 {
		t.Errorf("sweep_rate = %v, want 0.2", got)
	}
	if got := v.GetDuration("server.write_timeout"); got != 2*time.Minute {
		t.Errorf("server.write_timeout = %v, want 2m", got)
	}
}

func TestLoadConfig_FileOverridesTierDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetpulse.yaml")
	content := []byte(`
plugins:
  liveness:
    offline_alert_threshold: 5m
    tiers:
      small:
        concurrency: 7
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetDuration("plugins.liveness.offline_alert_threshold"); got != 5*time.Minute {
		t.Errorf("offline_alert_threshold = %v, want 5m", got)
	}
	if got := v.GetInt("plugins.liveness.tiers.small.concurrency"); got != 7 {
		t.Errorf("small concurrency = %d, want 7", got)
	}
	if got := v.GetDuration("plugins.liveness.tiers.small.probe_timeout"); got != time.Second {
		t.Errorf("small probe_timeout = %v, want 1s", got)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FP_SERVER_PORT", "9191")

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetInt("server.port"); got != 9191 {
		t.Errorf("server.port = %d, want 9191", got)
	}
}
