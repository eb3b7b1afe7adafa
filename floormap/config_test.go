package floormap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig_NotExists(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoadConfig_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `mapping:
  mergePolicy: saturating-add
mqtt:
  broker: tcp://localhost:1883
  poseTopic: robot/pose
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mapping.MergePolicy != "saturating-add" {
		t.Errorf("MergePolicy = %q, want saturating-add", cfg.Mapping.MergePolicy)
	}
	if cfg.Mapping.AlphaThreshold != 254 {
		t.Errorf("AlphaThreshold = %d, want default 254", cfg.Mapping.AlphaThreshold)
	}
	if cfg.Calibration.TileResolution != 50 {
		t.Errorf("TileResolution = %d, want default 50", cfg.Calibration.TileResolution)
	}
	if len(cfg.Cameras) != NumCameras {
		t.Errorf("len(Cameras) = %d, want %d", len(cfg.Cameras), NumCameras)
	}
	if cfg.MQTT.PoseTopic != "robot/pose" {
		t.Errorf("PoseTopic = %q", cfg.MQTT.PoseTopic)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "calibration: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero tile resolution", func(c *Config) { c.Calibration.TileResolution = 0 }, "tileResolution"},
		{"negative tile size", func(c *Config) { c.Calibration.TileSize = -1 }, "tileSize"},
		{"negative margin", func(c *Config) { c.Calibration.BodyMargin = -0.1 }, "bodyMargin"},
		{"negative span", func(c *Config) { c.Calibration.TilesUp = -1 }, "spans"},
		{"two cameras", func(c *Config) { c.Cameras = c.Cameras[:2] }, "exactly 3 cameras"},
		{"unknown camera", func(c *Config) { c.Cameras[0].ID = "rear" }, "unknown camera"},
		{"duplicate camera", func(c *Config) { c.Cameras[1].ID = "right" }, "duplicated"},
		{"threshold too high", func(c *Config) { c.Mapping.AlphaThreshold = 256 }, "alphaThreshold"},
		{"bad merge policy", func(c *Config) { c.Mapping.MergePolicy = "average" }, "mergePolicy"},
		{"negative chunk", func(c *Config) { c.Grid.ChunkSize = -1 }, "grid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cameras[0].Topic = "robot/cam/right"
	cfg.DebugDir = "/tmp/floor-debug"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Mounts(t *testing.T) {
	mounts := DefaultConfig().Mounts()
	want := map[CameraID]float64{CameraRight: 300, CameraCenter: 0, CameraLeft: 60}
	for id, deg := range want {
		m := mounts[id]
		if got := m.Orientation.Degrees(); got < deg-1e-9 || got > deg+1e-9 {
			t.Errorf("%s orientation = %v, want %v", id, got, deg)
		}
		if m.RotateCW != 1 || !m.Mirror {
			t.Errorf("%s mount = %+v, want one CW turn and mirror", id, m)
		}
	}
}
