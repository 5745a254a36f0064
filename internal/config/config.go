package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variables carrying the required connection settings. Each one
// must be present; Load fails fast when any is missing.
const (
	EnvDatabasePath = "BMSRENDER_DB"
	EnvRendererURL  = "BMSRENDER_RENDERER_URL"
	EnvBucket       = "BMSRENDER_BUCKET"
	EnvListen       = "BMSRENDER_LISTEN"
)

// Tools lists the external executables the pipeline orchestrates.
type Tools struct {
	Downloader string `toml:"downloader"`
	Archiver   string `toml:"archiver"`
	Converter  string `toml:"converter"`
	Indexer    string `toml:"indexer"`
	Renderer   string `toml:"renderer"`
	Normalizer string `toml:"normalizer"`
	Trimmer    string `toml:"trimmer"`
	Encoder    string `toml:"encoder"`
}

// Timeouts carries per-stage bounds in seconds.
type Timeouts struct {
	Download  int `toml:"download"`
	Extract   int `toml:"extract"`
	Convert   int `toml:"convert"`
	Index     int `toml:"index"`
	Render    int `toml:"render"`
	Normalize int `toml:"normalize"`
	Trim      int `toml:"trim"`
	Encode    int `toml:"encode"`
	Dispatch  int `toml:"dispatch"`
}

// Logging carries logger construction settings.
type Logging struct {
	Level       string   `toml:"level"`
	Format      string   `toml:"format"`
	OutputPaths []string `toml:"output_paths"`
}

// Storage selects and parameterizes the object storage provider.
type Storage struct {
	Provider         string `toml:"provider"` // localfs or gdrive
	GDriveClientID   string `toml:"gdrive_client_id"`
	GDriveSecret     string `toml:"gdrive_client_secret"`
	GDriveRefreshTok string `toml:"gdrive_refresh_token"`
}

// Config is the process-wide configuration shared by every command.
type Config struct {
	// Environment-derived, required.
	DatabasePath string `toml:"-"`
	RendererURL  string `toml:"-"`
	Bucket       string `toml:"-"`
	Listen       string `toml:"-"`

	WorkRoot    string   `toml:"work_root"`
	MaxInFlight int      `toml:"max_in_flight"`
	Tools       Tools    `toml:"tools"`
	Timeouts    Timeouts `toml:"timeouts"`
	Logging     Logging  `toml:"logging"`
	Storage     Storage  `toml:"storage"`
}

// Default returns a configuration populated with tool and timeout defaults.
// Required connection settings are left empty until Load fills them from the
// environment.
func Default() *Config {
	return &Config{
		WorkRoot:    filepath.Join(os.TempDir(), "bmsrender"),
		MaxInFlight: 128,
		Tools: Tools{
			Downloader: "wget",
			Archiver:   "7z",
			Converter:  "ffmpeg",
			Indexer:    "bmsindexer",
			Renderer:   "bms-render",
			Normalizer: "normalize-audio",
			Trimmer:    "sox",
			Encoder:    "lame",
		},
		Timeouts: Timeouts{
			Download:  120,
			Extract:   60,
			Convert:   60,
			Index:     30,
			Render:    300,
			Normalize: 15,
			Trim:      30,
			Encode:    60,
			Dispatch:  900,
		},
		Logging: Logging{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Storage: Storage{Provider: "localfs"},
	}
}

// Load builds the configuration: defaults, then the optional TOML file at
// path (or the default location when path is empty), then the required
// environment settings. Missing environment settings are a hard error.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, explicit := resolvePath(path)
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", resolved, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// Optional default location; absence is fine.
		default:
			return nil, fmt.Errorf("read config %s: %w", resolved, err)
		}
	}

	if err := cfg.loadEnvironment(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnvironment() error {
	var missing []string
	for _, binding := range []struct {
		env string
		dst *string
	}{
		{EnvDatabasePath, &c.DatabasePath},
		{EnvRendererURL, &c.RendererURL},
		{EnvBucket, &c.Bucket},
		{EnvListen, &c.Listen},
	} {
		value := strings.TrimSpace(os.Getenv(binding.env))
		if value == "" {
			missing = append(missing, binding.env)
			continue
		}
		*binding.dst = value
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks derived and file-provided settings for coherence.
func (c *Config) Validate() error {
	if c.MaxInFlight <= 0 {
		return errors.New("max_in_flight must be positive")
	}
	if strings.TrimSpace(c.WorkRoot) == "" {
		return errors.New("work_root must not be empty")
	}
	switch c.Storage.Provider {
	case "localfs", "gdrive":
	default:
		return fmt.Errorf("storage provider: unsupported value %q", c.Storage.Provider)
	}
	for name, bin := range map[string]string{
		"downloader": c.Tools.Downloader,
		"archiver":   c.Tools.Archiver,
		"converter":  c.Tools.Converter,
		"indexer":    c.Tools.Indexer,
		"renderer":   c.Tools.Renderer,
		"normalizer": c.Tools.Normalizer,
		"trimmer":    c.Tools.Trimmer,
		"encoder":    c.Tools.Encoder,
	} {
		if strings.TrimSpace(bin) == "" {
			return fmt.Errorf("tools.%s must not be empty", name)
		}
	}
	return nil
}

// EnsureDirectories creates the working directory root.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.WorkRoot, 0o755); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}

func resolvePath(path string) (resolved string, explicit bool) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".config", "bmsrender", "config.toml"), false
}
