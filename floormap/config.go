package floormap

import (
	"fmt"
	"os"

	"github.com/kwv/floormesh/geometry"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration file
type Config struct {
	Calibration CalibrationConfig `yaml:"calibration" json:"calibration"`
	Cameras     []CameraConfig    `yaml:"cameras" json:"cameras"`
	Mapping     MappingConfig     `yaml:"mapping" json:"mapping"`
	Grid        GridConfig        `yaml:"grid" json:"grid"`
	MQTT        MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	DebugDir    string            `yaml:"debugDir,omitempty" json:"debugDir,omitempty"` // Write intermediate rasters as PNG when set
}

// CalibrationConfig describes the fixed camera/floor geometry.
type CalibrationConfig struct {
	TileResolution int                  `yaml:"tileResolution" json:"tileResolution"` // Pixels per floor tile
	TileSize       float64              `yaml:"tileSize" json:"tileSize"`             // Tile edge length in meters
	CameraDistance float64              `yaml:"cameraDistance" json:"cameraDistance"` // Camera stand-off from the rotation center, meters
	BodyMargin     float64              `yaml:"bodyMargin" json:"bodyMargin"`         // Extra blind distance around the body, meters
	TilesUp        int                  `yaml:"tilesUp" json:"tilesUp"`
	TilesDown      int                  `yaml:"tilesDown" json:"tilesDown"`
	TilesSides     int                  `yaml:"tilesSides" json:"tilesSides"`
	FrameWidth     int                  `yaml:"frameWidth,omitempty" json:"frameWidth,omitempty"`   // Expected width after mount rotation; 0 skips the check
	FrameHeight    int                  `yaml:"frameHeight,omitempty" json:"frameHeight,omitempty"` // Expected height after mount rotation; 0 skips the check
	SourcePoints   [4]geometry.Position `yaml:"sourcePoints" json:"sourcePoints"`                  // Center tile corners in frame pixels
	Supersample    int                  `yaml:"supersample,omitempty" json:"supersample,omitempty"` // Warp at N× then downsample; default 1
}

// CameraConfig defines one mounted camera
type CameraConfig struct {
	ID          string  `yaml:"id" json:"id"`                           // right, center or left
	Orientation float64 `yaml:"orientation" json:"orientation"`         // Mount offset in degrees, counter-clockwise on the canvas
	RotateCW    int     `yaml:"rotateCW" json:"rotateCW"`               // Quarter turns applied to the raw frame before rectification
	Mirror      bool    `yaml:"mirror" json:"mirror"`                   // Mirror the rectified view horizontally
	Topic       string  `yaml:"topic,omitempty" json:"topic,omitempty"` // MQTT topic carrying PNG frames
}

// MappingConfig tunes how composited views are committed.
type MappingConfig struct {
	AlphaThreshold int    `yaml:"alphaThreshold" json:"alphaThreshold"` // Commit pixels whose merged alpha exceeds this
	MergePolicy    string `yaml:"mergePolicy" json:"mergePolicy"`       // max-alpha or saturating-add
}

// GridConfig sizes the in-memory expandable grid.
type GridConfig struct {
	InitialWidth  int `yaml:"initialWidth" json:"initialWidth"`
	InitialHeight int `yaml:"initialHeight" json:"initialHeight"`
	ChunkSize     int `yaml:"chunkSize" json:"chunkSize"` // Growth step in cells
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	PoseTopic     string `yaml:"poseTopic,omitempty" json:"poseTopic,omitempty"`
}

// DefaultConfig returns the calibration used on the reference robot: 50px tiles of
// 12cm, cameras 3.5cm from the rotation center, frames rotated one quarter turn
// clockwise and mirrored.
func DefaultConfig() *Config {
	return &Config{
		Calibration: CalibrationConfig{
			TileResolution: 50,
			TileSize:       0.12,
			CameraDistance: 0.035,
			BodyMargin:     0.03,
			TilesUp:        1,
			TilesDown:      1,
			TilesSides:     1,
			FrameWidth:     40,
			FrameHeight:    64,
			SourcePoints: [4]geometry.Position{
				{X: 0, Y: 24},
				{X: 39, Y: 24},
				{X: 32, Y: 16},
				{X: 7, Y: 16},
			},
			Supersample: 1,
		},
		Cameras: []CameraConfig{
			{ID: "right", Orientation: 300, RotateCW: 1, Mirror: true},
			{ID: "center", Orientation: 0, RotateCW: 1, Mirror: true},
			{ID: "left", Orientation: 60, RotateCW: 1, Mirror: true},
		},
		Mapping: MappingConfig{
			AlphaThreshold: 254,
			MergePolicy:    MergeMaxAlpha.String(),
		},
		Grid: GridConfig{
			InitialWidth:  256,
			InitialHeight: 256,
			ChunkSize:     128,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "floormesh",
			ClientID:      "floormesh",
		},
	}
}

// GetCamera returns the camera config for the given ID
func (c *Config) GetCamera(id CameraID) *CameraConfig {
	for i := range c.Cameras {
		if c.Cameras[i].ID == id.String() {
			return &c.Cameras[i]
		}
	}
	return nil
}

// Mounts returns the per-camera mount transforms in calibration order.
func (c *Config) Mounts() [NumCameras]CameraMount {
	var mounts [NumCameras]CameraMount
	for _, id := range CameraOrder {
		if cc := c.GetCamera(id); cc != nil {
			mounts[id] = CameraMount{
				Orientation: geometry.AngleFromDegrees(cc.Orientation),
				RotateCW:    cc.RotateCW,
				Mirror:      cc.Mirror,
			}
		}
	}
	return mounts
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	cal := c.Calibration
	if cal.TileResolution <= 0 {
		return fmt.Errorf("%w: calibration.tileResolution must be positive", ErrDegenerateCalibration)
	}
	if cal.TileSize <= 0 {
		return fmt.Errorf("%w: calibration.tileSize must be positive", ErrDegenerateCalibration)
	}
	if cal.CameraDistance < 0 || cal.BodyMargin < 0 {
		return fmt.Errorf("calibration.cameraDistance and bodyMargin must not be negative")
	}
	if cal.TilesUp < 0 || cal.TilesDown < 0 || cal.TilesSides < 0 {
		return fmt.Errorf("calibration tile spans must not be negative")
	}
	if cal.Supersample < 0 {
		return fmt.Errorf("calibration.supersample must not be negative")
	}

	if len(c.Cameras) != NumCameras {
		return fmt.Errorf("exactly %d cameras must be defined, got %d", NumCameras, len(c.Cameras))
	}
	seen := make(map[CameraID]bool)
	for i, cc := range c.Cameras {
		id, err := ParseCameraID(cc.ID)
		if err != nil {
			return fmt.Errorf("cameras[%d].id: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("cameras[%d].id %q is duplicated", i, cc.ID)
		}
		seen[id] = true
		if cc.RotateCW < 0 {
			return fmt.Errorf("cameras[%d].rotateCW must not be negative", i)
		}
	}

	if c.Mapping.AlphaThreshold < 0 || c.Mapping.AlphaThreshold > 255 {
		return fmt.Errorf("mapping.alphaThreshold must be in [0, 255]")
	}
	if _, err := ParseMergePolicy(c.Mapping.MergePolicy); err != nil {
		return fmt.Errorf("mapping.mergePolicy: %w", err)
	}

	if c.Grid.ChunkSize < 0 || c.Grid.InitialWidth < 0 || c.Grid.InitialHeight < 0 {
		return fmt.Errorf("grid sizes must not be negative")
	}
	return nil
}

// LoadConfig loads the configuration from a YAML file. Fields absent from the
// file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
