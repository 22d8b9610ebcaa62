package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Backend names accepted by capture.backend
const (
	BackendAuto      = "auto"
	BackendMalgo     = "malgo"
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Whisper   WhisperConfig   `mapstructure:"whisper"`
	Translate TranslateConfig `mapstructure:"translate"`
}

type CaptureConfig struct {
	Backend    string `mapstructure:"backend"`     // "auto", "malgo", "pulse", "portaudio"
	DeviceID   string `mapstructure:"device_id"`   // empty = default output monitor
	Loopback   bool   `mapstructure:"loopback"`    // capture what the system is playing
	SampleRate int    `mapstructure:"sample_rate"` // target rate of the written WAV
	QueueSize  int    `mapstructure:"queue_size"`  // frames buffered between callback and writer
	OutputDir  string `mapstructure:"output_dir"`
}

type WhisperConfig struct {
	Model     string `mapstructure:"model"`    // "base", "small", "large-v3", ...
	Language  string `mapstructure:"language"` // "auto", "en", etc.
	Threads   int    `mapstructure:"threads"`
	ModelsDir string `mapstructure:"models_dir"`
}

type TranslateConfig struct {
	Source     string   `mapstructure:"source"`
	Target     string   `mapstructure:"target"`
	Candidates []string `mapstructure:"candidates"`
	Model      string   `mapstructure:"model"`
	BaseURL    string   `mapstructure:"base_url"`
	APIKey     string   `mapstructure:"api_key"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			Backend:    BackendAuto,
			Loopback:   true,
			SampleRate: 16000,
			QueueSize:  64,
			OutputDir:  ".",
		},
		Whisper: WhisperConfig{
			Model:    "base",
			Language: "auto",
			Threads:  0, // Auto-detect
		},
		Translate: TranslateConfig{
			Source:     "en",
			Target:     "zh",
			Candidates: []string{"en", "zh", "ja", "ko", "fr", "de", "es", "ru"},
			Model:      "gpt-4o-mini",
		},
	}
}

// Load reads defaults, the config file, TRANSVOX_* environment variables and
// any flags already bound to v. A missing config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRANSVOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Translate.APIKey == "" {
		cfg.Translate.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a session.
func (c *Config) Validate() error {
	var errs []error
	switch c.Capture.Backend {
	case BackendAuto, BackendMalgo, BackendPulse, BackendPortAudio:
	default:
		errs = append(errs, fmt.Errorf("config: unknown capture backend %q", c.Capture.Backend))
	}
	if c.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.sample_rate must be positive, got %d", c.Capture.SampleRate))
	}
	if c.Capture.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.queue_size must be positive, got %d", c.Capture.QueueSize))
	}
	if c.Whisper.Threads < 0 {
		errs = append(errs, fmt.Errorf("config: whisper.threads must not be negative, got %d", c.Whisper.Threads))
	}
	return errors.Join(errs...)
}

// Save writes the config as JSON to path, or to the default location when
// path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v, c)
	v.SetConfigType("json")
	return v.WriteConfigAs(path)
}

// ModelPath returns the on-disk location of the configured whisper model
func (c *Config) ModelPath() string {
	dir := c.Whisper.ModelsDir
	if dir == "" {
		dir = ModelsPath()
	}
	return filepath.Join(dir, "ggml-"+c.Whisper.Model+".bin")
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("capture.backend", c.Capture.Backend)
	v.SetDefault("capture.device_id", c.Capture.DeviceID)
	v.SetDefault("capture.loopback", c.Capture.Loopback)
	v.SetDefault("capture.sample_rate", c.Capture.SampleRate)
	v.SetDefault("capture.queue_size", c.Capture.QueueSize)
	v.SetDefault("capture.output_dir", c.Capture.OutputDir)
	v.SetDefault("whisper.model", c.Whisper.Model)
	v.SetDefault("whisper.language", c.Whisper.Language)
	v.SetDefault("whisper.threads", c.Whisper.Threads)
	v.SetDefault("whisper.models_dir", c.Whisper.ModelsDir)
	v.SetDefault("translate.source", c.Translate.Source)
	v.SetDefault("translate.target", c.Translate.Target)
	v.SetDefault("translate.candidates", c.Translate.Candidates)
	v.SetDefault("translate.model", c.Translate.Model)
	v.SetDefault("translate.base_url", c.Translate.BaseURL)
	v.SetDefault("translate.api_key", c.Translate.APIKey)
}

// DefaultPath returns the config file used when --config is not given
func DefaultPath() string {
	return filepath.Join(configDir(), "config.json")
}

// configDir returns the platform-specific config directory
func configDir() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "transvox")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "transvox", "models")
}
