package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PatternKind selects what the demo renders into the buffer.
type PatternKind string

const (
	PatternGradient PatternKind = "gradient" // animated color gradient
	PatternChecker  PatternKind = "checker"  // scrolling checkerboard
	PatternImage    PatternKind = "image"    // a PNG scaled to the buffer
)

// DamageMode selects how the demo reports damage on incremental frames.
type DamageMode string

const (
	DamageFull  DamageMode = "full"  // whole-buffer present every frame
	DamageTiles DamageMode = "tiles" // present only the tiles that changed
)

const (
	DefaultWindowWidth  = 640
	DefaultWindowHeight = 480
	DefaultTileSize     = 64
	DefaultLogMaxSizeMB = 5
	DefaultLogMaxFiles  = 3
)

// Window configures the demo window.
type Window struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	Center bool   `yaml:"center"` // center on the active monitor
}

// Pattern configures the rendered content.
type Pattern struct {
	Kind PatternKind `yaml:"kind"`
	// Image is the PNG path used when Kind is "image".
	Image string `yaml:"image,omitempty"`
}

// Damage configures incremental presentation.
type Damage struct {
	Mode     DamageMode `yaml:"mode"`
	TileSize int        `yaml:"tile_size"`
}

// Log configures the frame action log.
type Log struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Level     string `yaml:"level"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Config is the demo configuration.
type Config struct {
	Window  Window  `yaml:"window"`
	Pattern Pattern `yaml:"pattern"`
	Damage  Damage  `yaml:"damage"`
	Log     Log     `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Window: Window{
			Width:  DefaultWindowWidth,
			Height: DefaultWindowHeight,
			Title:  "blitdemo",
			Center: true,
		},
		Pattern: Pattern{Kind: PatternGradient},
		Damage: Damage{
			Mode:     DamageTiles,
			TileSize: DefaultTileSize,
		},
		Log: Log{
			Enabled:   false,
			Level:     "info",
			MaxSizeMB: DefaultLogMaxSizeMB,
			MaxFiles:  DefaultLogMaxFiles,
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "blitdemo", "config.yaml"), nil
}

// Load reads the config file at path, layered over defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the demo cannot run with.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	switch c.Pattern.Kind {
	case PatternGradient, PatternChecker:
	case PatternImage:
		if c.Pattern.Image == "" {
			return fmt.Errorf("pattern kind %q requires an image path", c.Pattern.Kind)
		}
	default:
		return fmt.Errorf("unknown pattern kind %q", c.Pattern.Kind)
	}
	switch c.Damage.Mode {
	case DamageFull, DamageTiles:
	default:
		return fmt.Errorf("unknown damage mode %q", c.Damage.Mode)
	}
	if c.Damage.Mode == DamageTiles && c.Damage.TileSize <= 0 {
		return fmt.Errorf("tile size %d must be positive", c.Damage.TileSize)
	}
	if c.Log.Enabled && c.Log.Path == "" {
		return fmt.Errorf("log enabled without a path")
	}
	return nil
}
