// Package config loads runtime configuration from YAML files and
// LEYESMX_-prefixed environment variables, with defaults mirroring the
// per-package Default*Config constructors.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcoria/leyesmx/pkg/convert"
	"github.com/rcoria/leyesmx/pkg/fetch"
	"github.com/rcoria/leyesmx/pkg/store"
)

// Store backends.
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// Config aggregates every tunable of the ingestion toolchain.
type Config struct {
	Archive     ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Fetch       FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Convert     ConvertConfig `mapstructure:"convert" yaml:"convert"`
	Store       StoreConfig   `mapstructure:"store" yaml:"store"`
	CatalogPath string        `mapstructure:"catalog_path" yaml:"catalog_path"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
}

// ArchiveConfig identifies the upstream archive and how to speak to it.
type ArchiveConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language" yaml:"accept_language"`
	DefaultCharset string `mapstructure:"default_charset" yaml:"default_charset"`
}

// FetchConfig tunes pacing, retries, and size limits.
type FetchConfig struct {
	RateLimit      time.Duration `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxInFlight    int           `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	MinHTMLBytes   int           `mapstructure:"min_html_bytes" yaml:"min_html_bytes"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CacheDir       string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// ConvertConfig tunes the external conversion tools.
type ConvertConfig struct {
	WordCommand    string        `mapstructure:"word_command" yaml:"word_command"`
	PDFCommand     string        `mapstructure:"pdf_command" yaml:"pdf_command"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOutputBytes int64         `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	Backend         string `mapstructure:"backend" yaml:"backend"`
	Path            string `mapstructure:"path" yaml:"path"`
	MongoURI        string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database" yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// Default returns the working defaults, mirroring the per-package
// constructors so a bare `leyesmx ingest` behaves sensibly.
func Default() *Config {
	clientDefaults := fetch.DefaultClientConfig()
	fallbackDefaults := fetch.DefaultFallbackConfig()
	convertDefaults := convert.DefaultConvertConfig()
	mongoDefaults := store.DefaultMongoConfig()

	return &Config{
		Archive: ArchiveConfig{
			BaseURL:        fallbackDefaults.BaseURL,
			UserAgent:      clientDefaults.UserAgent,
			AcceptLanguage: clientDefaults.AcceptLanguage,
			DefaultCharset: clientDefaults.DefaultCharset,
		},
		Fetch: FetchConfig{
			RateLimit:      time.Second,
			MaxInFlight:    2,
			Timeout:        clientDefaults.Timeout,
			MaxRetries:     clientDefaults.MaxRetries,
			RetryBaseDelay: clientDefaults.RetryBaseDelay,
			MinHTMLBytes:   fallbackDefaults.MinHTMLBytes,
			MaxBodyBytes:   clientDefaults.MaxBodyBytes,
			CacheDir:       "",
			CacheTTL:       24 * time.Hour,
		},
		Convert: ConvertConfig{
			WordCommand:    convertDefaults.WordCommand,
			PDFCommand:     convertDefaults.PDFCommand,
			Timeout:        convertDefaults.Timeout,
			MaxOutputBytes: convertDefaults.MaxOutputBytes,
		},
		Store: StoreConfig{
			Backend:         BackendFile,
			Path:            "data",
			MongoURI:        mongoDefaults.URI,
			MongoDatabase:   mongoDefaults.Database,
			MongoCollection: mongoDefaults.Collection,
		},
		CatalogPath: "catalog.yaml",
		Workers:     2,
	}
}

// Load reads configuration from an explicit file, or from
// $XDG_CONFIG_HOME/leyesmx/config.yaml when path is empty, applying
// defaults first and LEYESMX_ environment overrides last. A missing config
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return cfg, fmt.Errorf("failed to find home directory: %w", err)
			}
			configHome = filepath.Join(home, ".config")
		}
		v.AddConfigPath(filepath.Join(configHome, "leyesmx"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEYESMX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file on the search path means defaults plus environment;
	// an explicit path that cannot be read is always an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides resolve even
// without a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("archive.base_url", cfg.Archive.BaseURL)
	v.SetDefault("archive.user_agent", cfg.Archive.UserAgent)
	v.SetDefault("archive.accept_language", cfg.Archive.AcceptLanguage)
	v.SetDefault("archive.default_charset", cfg.Archive.DefaultCharset)

	v.SetDefault("fetch.rate_limit", cfg.Fetch.RateLimit)
	v.SetDefault("fetch.max_in_flight", cfg.Fetch.MaxInFlight)
	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.max_retries", cfg.Fetch.MaxRetries)
	v.SetDefault("fetch.retry_base_delay", cfg.Fetch.RetryBaseDelay)
	v.SetDefault("fetch.min_html_bytes", cfg.Fetch.MinHTMLBytes)
	v.SetDefault("fetch.max_body_bytes", cfg.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.cache_dir", cfg.Fetch.CacheDir)
	v.SetDefault("fetch.cache_ttl", cfg.Fetch.CacheTTL)

	v.SetDefault("convert.word_command", cfg.Convert.WordCommand)
	v.SetDefault("convert.pdf_command", cfg.Convert.PDFCommand)
	v.SetDefault("convert.timeout", cfg.Convert.Timeout)
	v.SetDefault("convert.max_output_bytes", cfg.Convert.MaxOutputBytes)

	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.mongo_uri", cfg.Store.MongoURI)
	v.SetDefault("store.mongo_database", cfg.Store.MongoDatabase)
	v.SetDefault("store.mongo_collection", cfg.Store.MongoCollection)

	v.SetDefault("catalog_path", cfg.CatalogPath)
	v.SetDefault("workers", cfg.Workers)
}

// ClientConfig builds the fetch client settings, creating the disk cache
// when a cache directory is configured.
func (cfg *Config) ClientConfig() (fetch.ClientConfig, error) {
	clientConfig := fetch.DefaultClientConfig()
	clientConfig.UserAgent = cfg.Archive.UserAgent
	clientConfig.AcceptLanguage = cfg.Archive.AcceptLanguage
	clientConfig.DefaultCharset = cfg.Archive.DefaultCharset
	clientConfig.Timeout = cfg.Fetch.Timeout
	clientConfig.MaxRetries = cfg.Fetch.MaxRetries
	clientConfig.RetryBaseDelay = cfg.Fetch.RetryBaseDelay
	clientConfig.MaxBodyBytes = cfg.Fetch.MaxBodyBytes

	if cfg.Fetch.CacheDir != "" {
		cache, err := fetch.NewDiskCache(cfg.Fetch.CacheDir, cfg.Fetch.CacheTTL)
		if err != nil {
			return clientConfig, fmt.Errorf("failed to create fetch cache: %w", err)
		}
		clientConfig.Cache = cache
	}

	return clientConfig, nil
}

// FallbackConfig builds the format-fallback settings.
func (cfg *Config) FallbackConfig() fetch.FallbackConfig {
	return fetch.FallbackConfig{
		BaseURL:      cfg.Archive.BaseURL,
		MinHTMLBytes: cfg.Fetch.MinHTMLBytes,
	}
}

// ConvertConfig builds the external-converter settings.
func (cfg *Config) ConvertConfig() convert.ConvertConfig {
	return convert.ConvertConfig{
		WordCommand:    cfg.Convert.WordCommand,
		PDFCommand:     cfg.Convert.PDFCommand,
		Timeout:        cfg.Convert.Timeout,
		MaxOutputBytes: cfg.Convert.MaxOutputBytes,
	}
}

// Gate builds the shared fetch gate.
func (cfg *Config) Gate() *fetch.Gate {
	return fetch.NewGate(cfg.Fetch.MaxInFlight, cfg.Fetch.RateLimit)
}

// WriteExample writes a commented example config to path, creating parent
// directories as needed. Refuses to overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

const exampleConfig = `# leyesmx configuration. Every key can also be set through the
# environment with the LEYESMX_ prefix, e.g. LEYESMX_WORKERS=4.

archive:
  # Root of the Cámara de Diputados statute archive.
  base_url: https://www.diputados.gob.mx/LeyesBiblio
  user_agent: leyesmx/1.0 (+https://github.com/rcoria/leyesmx)
  accept_language: es-MX,es;q=0.9
  # Encoding assumed when a page declares none.
  default_charset: windows-1252

fetch:
  # Minimum interval between requests to the archive.
  rate_limit: 1s
  max_in_flight: 2
  timeout: 30s
  max_retries: 3
  retry_base_delay: 2s
  min_html_bytes: 2048
  max_body_bytes: 20971520
  # Uncomment to cache fetched pages between runs.
  # cache_dir: .leyesmx-cache
  cache_ttl: 24h

convert:
  word_command: antiword
  pdf_command: pdftotext
  timeout: 60s
  max_output_bytes: 20971520

store:
  # "file" keeps JSON documents under path; "mongo" uses MongoDB.
  backend: file
  path: data
  mongo_uri: mongodb://localhost:27017
  mongo_database: leyesmx
  mongo_collection: documents

catalog_path: catalog.yaml
workers: 2
`

// OpenStore opens the configured persistence backend.
func (cfg *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Backend {
	case BackendMongo:
		return store.OpenMongoStore(ctx, store.MongoConfig{
			URI:        cfg.Store.MongoURI,
			Database:   cfg.Store.MongoDatabase,
			Collection: cfg.Store.MongoCollection,
		})
	case BackendFile, "":
		return store.OpenFileStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
