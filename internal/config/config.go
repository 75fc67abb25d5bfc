// Package config loads directorscut settings from file, environment and
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Writer  WriterConfig  `mapstructure:"writer"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Studio  StudioConfig  `mapstructure:"studio"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`

	v *viper.Viper
}

type WriterConfig struct {
	Backend     string        `mapstructure:"backend"` // gemini or openai
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TTSConfig struct {
	Type      string        `mapstructure:"type"` // auto, googleclassic, openai, espeak, mock
	Voice     string        `mapstructure:"voice"`
	Language  string        `mapstructure:"language"`
	Speed     float64       `mapstructure:"speed"`
	Volume    float64       `mapstructure:"volume"`
	CachePath string        `mapstructure:"cache_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StudioConfig struct {
	LoadingInterval time.Duration `mapstructure:"loading_interval"`
	RevealInterval  time.Duration `mapstructure:"reveal_interval"`
	SimulatedDelay  time.Duration `mapstructure:"simulated_delay"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")

	v.SetDefault("writer.backend", "gemini")
	v.SetDefault("writer.model", "")
	v.SetDefault("writer.base_url", "")
	v.SetDefault("writer.temperature", 0.8)
	v.SetDefault("writer.timeout", 45*time.Second)

	v.SetDefault("tts.type", "auto") // Auto-select best engine
	v.SetDefault("tts.voice", "")
	v.SetDefault("tts.language", "en-US")
	v.SetDefault("tts.speed", 1.0)
	v.SetDefault("tts.volume", 1.0)
	v.SetDefault("tts.cache_path", defaultCachePath())
	v.SetDefault("tts.timeout", 60*time.Second)

	v.SetDefault("studio.loading_interval", 1500*time.Millisecond)
	v.SetDefault("studio.reveal_interval", 10*time.Millisecond)
	v.SetDefault("studio.simulated_delay", 2*time.Second)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "directorscut", "audio")
}

// Load reads directorscut.yaml (or configFile when set), then
// DIRECTORSCUT_* environment variables. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("directorscut")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.directorscut")
	}

	// DIRECTORSCUT_WRITER_BACKEND, DIRECTORSCUT_TTS_TYPE, ...
	v.SetEnvPrefix("DIRECTORSCUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", "DIRECTORSCUT_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		logrus.Debug("No config file found, using defaults and environment")
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Debug("Loaded config file")
	}

	cfg := Config{v: v}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Credentials returns the provider for the service key.
func (c *Config) Credentials() *Credentials {
	return &Credentials{v: c.v}
}

// Credentials reads the key on every call, so a key exported after start-up
// is used by the next request.
type Credentials struct {
	v *viper.Viper
}

func (c *Credentials) APIKey() string {
	if c == nil || c.v == nil {
		return ""
	}
	return strings.TrimSpace(resolveEnvRef(c.v.GetString("api_key")))
}

// Redacted is the key as shown to users.
func (c *Credentials) Redacted() string {
	key := c.APIKey()
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "****" + key[len(key)-4:]
	}
}

// resolveEnvRef replaces "${VAR_NAME}" with the value of the variable.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global logrus logger.
func SetupLogging(cfg LoggingConfig) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
