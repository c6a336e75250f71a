package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvPrefix = "NOTEHUB_"

	defaultListen           = ":5000"
	defaultURL              = "http://localhost:5000"
	defaultStorageRoot      = "data/notes"
	defaultCatalogFileName  = "data/notes-data.json"
	defaultMaxFileSize      = 50 * 1024 * 1024
	defaultThumbnailRoot    = "data/thumbnails"
	defaultThumbnailFormat  = "png"
	defaultWebPQuality      = 80
	defaultRenderScale      = 1.5
	defaultWorkers          = 4
	defaultBadgerDir        = "data/counters"
	defaultDumpFileName     = "counters.yml"
	defaultConverterBinary  = "soffice"
	defaultConverterTimeout = 60 * time.Second
	defaultShutdownTimeout  = 5 * time.Second
)

var (
	ConvertibleExtensions = []string{"doc", "docx", "ppt", "pptx", "txt"}
)

type StorageConfig struct {
	Root            string   `yaml:"root"`
	CatalogFileName string   `yaml:"catalog"`
	MaxFileSize     int64    `yaml:"max_file_size"`
	Extensions      []string `yaml:"extensions"`
}

type ThumbnailConfig struct {
	Root          string  `yaml:"root"`
	CacheEnabled  *bool   `yaml:"cache_enabled"`
	DefaultFormat string  `yaml:"default_format"`
	WebPQuality   float32 `yaml:"webp_quality"`
	Scale         float64 `yaml:"scale"`
	Workers       int     `yaml:"workers"`
	OnUpload      bool    `yaml:"on_upload"`
}

func (c *ThumbnailConfig) Caching() bool {
	return c.CacheEnabled == nil || *c.CacheEnabled
}

type CounterConfig struct {
	RedisURL     string        `yaml:"redis_url"`
	BadgerDir    string        `yaml:"badger_dir"`
	DumpFileName string        `yaml:"dump_filename"`
	UniqueWindow time.Duration `yaml:"unique_window"` // One counted download per client and file within the window, 0 counts every request
}

type ConverterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	URL             string          `yaml:"url"`
	Listen          string          `yaml:"listen"`
	LogLevel        string          `yaml:"log_level"`
	BaseDir         string          `yaml:"base_dir"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Storage         StorageConfig   `yaml:"storage"`
	Thumbnails      ThumbnailConfig `yaml:"thumbnails"`
	Counter         CounterConfig   `yaml:"counter"`
	Converter       ConverterConfig `yaml:"converter"`
}

// MustLoad reads .env (when present), the YAML file at path and NOTEHUB_* overrides. It panics on any error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) SetDefaults() {
	setDefault(&c.Listen, defaultListen)
	setDefault(&c.URL, defaultURL)
	setDefault(&c.LogLevel, LogLevelInfo)
	setDefault(&c.BaseDir, ".")
	setDefault(&c.Storage.Root, defaultStorageRoot)
	setDefault(&c.Storage.CatalogFileName, defaultCatalogFileName)
	setDefault(&c.Thumbnails.Root, defaultThumbnailRoot)
	setDefault(&c.Thumbnails.DefaultFormat, defaultThumbnailFormat)
	setDefault(&c.Counter.BadgerDir, defaultBadgerDir)
	setDefault(&c.Counter.DumpFileName, defaultDumpFileName)
	setDefault(&c.Converter.Binary, defaultConverterBinary)

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	if c.Storage.MaxFileSize <= 0 {
		c.Storage.MaxFileSize = defaultMaxFileSize
	}

	if len(c.Storage.Extensions) == 0 {
		c.Storage.Extensions = []string{"pdf"}
	}

	if c.Thumbnails.WebPQuality <= 0 {
		c.Thumbnails.WebPQuality = defaultWebPQuality
	}

	if c.Thumbnails.Scale <= 0 {
		c.Thumbnails.Scale = defaultRenderScale
	}

	if c.Thumbnails.Workers <= 0 {
		c.Thumbnails.Workers = defaultWorkers
	}

	if c.Converter.Timeout <= 0 {
		c.Converter.Timeout = defaultConverterTimeout
	}
}

// ApplyEnv overrides values from NOTEHUB_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		"LISTEN":    &c.Listen,
		"URL":       &c.URL,
		"LOG_LEVEL": &c.LogLevel,
		"BASE_DIR":  &c.BaseDir,
		"REDIS_URL": &c.Counter.RedisURL,
	}

	for name, target := range overrides {
		if val, ok := lookup(EnvPrefix + name); ok {
			*target = val
		}
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}

	switch c.Thumbnails.DefaultFormat {
	case "png", "webp":
	default:
		return fmt.Errorf("unknown thumbnail format: %s", c.Thumbnails.DefaultFormat)
	}

	if c.Thumbnails.WebPQuality > 100 {
		return fmt.Errorf("webp quality must be in 1..100, got %v", c.Thumbnails.WebPQuality)
	}

	return nil
}

// AllowedExtensions returns the upload whitelist, including convertible formats when the converter is on.
func (c *Config) AllowedExtensions() []string {
	exts := make([]string, 0, len(c.Storage.Extensions)+len(ConvertibleExtensions))
	for _, ext := range c.Storage.Extensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	if c.Converter.Enabled {
		exts = append(exts, ConvertibleExtensions...)
	}

	return exts
}

func (c *Config) StorageRoot() string {
	return c.inBaseDir(c.Storage.Root)
}

func (c *Config) CatalogFileName() string {
	return c.inBaseDir(c.Storage.CatalogFileName)
}

func (c *Config) ThumbnailRoot() string {
	return c.inBaseDir(c.Thumbnails.Root)
}

func (c *Config) BadgerDir() string {
	return c.inBaseDir(c.Counter.BadgerDir)
}

func (c *Config) inBaseDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.BaseDir, p)
}

func setDefault(field *string, val string) {
	if *field == "" {
		*field = val
	}
}
