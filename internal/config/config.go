// Package config loads the torrplay YAML configuration and its environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath    = "TORRPLAY_CONFIG"
	EnvAPIURL        = "TORRPLAY_API_URL"
	EnvLogLevel      = "TORRPLAY_LOG_LEVEL"
	EnvLogFormat     = "TORRPLAY_LOG_FORMAT"
	EnvUserAgent     = "TORRPLAY_USER_AGENT"
	EnvMetricsListen = "TORRPLAY_METRICS_LISTEN"
	EnvMPVPath       = "TORRPLAY_MPV_PATH"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Host    HostConfig    `yaml:"host"`
	Handoff HandoffConfig `yaml:"handoff"`
	Player  PlayerConfig  `yaml:"player"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

// HostConfig overrides host feature detection. Nil toggles mean auto-detect.
type HostConfig struct {
	UserAgent string `yaml:"user_agent"`
	Native    *bool  `yaml:"native"`
	TVBridge  *bool  `yaml:"tv_bridge"`
}

type HandoffConfig struct {
	IntentSettle   time.Duration `yaml:"intent_settle"`
	RedirectSettle time.Duration `yaml:"redirect_settle"`
	TVAppID        string        `yaml:"tv_app_id"`
	AMPath         string        `yaml:"am_path"`
	LunaSendPath   string        `yaml:"luna_send_path"`
}

type PlayerConfig struct {
	MPVPath   string        `yaml:"mpv_path"`
	IPCSocket string        `yaml:"ipc_socket"`
	SeekStep  time.Duration `yaml:"seek_step"`
	ExtraArgs []string      `yaml:"extra_args"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout:  10 * time.Second,
			RetryMax: 3,
		},
		Handoff: HandoffConfig{
			IntentSettle:   100 * time.Millisecond,
			RedirectSettle: 250 * time.Millisecond,
			TVAppID:        "com.webos.app.mediadiscovery",
			AMPath:         "am",
			LunaSendPath:   "luna-send",
		},
		Player: PlayerConfig{
			MPVPath:  "mpv",
			SeekStep: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (may be empty), applies environment overrides and validates
// the result. lookupEnv is os.LookupEnv outside tests.
func Load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		if v, ok := lookupEnv(EnvConfigPath); ok {
			path = strings.TrimSpace(v)
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, lookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvAPIURL, &cfg.API.BaseURL)
	set(EnvLogLevel, &cfg.Log.Level)
	set(EnvLogFormat, &cfg.Log.Format)
	set(EnvUserAgent, &cfg.Host.UserAgent)
	set(EnvMetricsListen, &cfg.Metrics.Listen)
	set(EnvMPVPath, &cfg.Player.MPVPath)
}

// Validate rejects configurations that indicate a construction defect.
func (c Config) Validate() error {
	var errs []error

	if base := strings.TrimSpace(c.API.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("api.base_url: %w", err))
		case parsed.Scheme != "http" && parsed.Scheme != "https":
			errs = append(errs, fmt.Errorf("api.base_url: unsupported scheme %q", parsed.Scheme))
		case parsed.Host == "":
			errs = append(errs, fmt.Errorf("api.base_url: missing host"))
		}
	}
	if c.API.Timeout < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative"))
	}
	if c.API.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("api.retry_max must not be negative"))
	}
	if c.Handoff.IntentSettle < 0 || c.Handoff.RedirectSettle < 0 {
		errs = append(errs, fmt.Errorf("handoff settle delays must not be negative"))
	}
	if strings.TrimSpace(c.Handoff.TVAppID) == "" {
		errs = append(errs, fmt.Errorf("handoff.tv_app_id is required"))
	}
	if c.Player.SeekStep <= 0 {
		errs = append(errs, fmt.Errorf("player.seek_step must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported value %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
