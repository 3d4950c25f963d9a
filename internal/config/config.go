// Package config loads the pictomap configuration from YAML, the environment and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Map           MapConfig           `mapstructure:"map"`
	Overpass      OverpassConfig      `mapstructure:"overpass"`
	GlobalSymbols GlobalSymbolsConfig `mapstructure:"global_symbols"`
	Sorting       SortingConfig       `mapstructure:"sorting"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
}

// MapConfig is the viewport used by the CLI and the HTTP API.
type MapConfig struct {
	Width       float64       `mapstructure:"width" validate:"gt=0"`
	Height      float64       `mapstructure:"height" validate:"gt=0"`
	Debounce    time.Duration `mapstructure:"debounce"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
}

type OverpassConfig struct {
	APIURL          string        `mapstructure:"api_url" validate:"required,url"`
	Types           []string      `mapstructure:"types" validate:"dive,osm_key"`
	OSMTypes        []string      `mapstructure:"osm_types" validate:"min=1,dive,oneof=node way relation"`
	Limit           int           `mapstructure:"limit" validate:"gte=1"`
	MaxLimit        int           `mapstructure:"max_limit" validate:"gtefield=Limit"`
	MaxRetries      uint          `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DeriveNames     bool          `mapstructure:"derive_names"`
	FilterOutNoName bool          `mapstructure:"filter_out_no_name"`
}

type GlobalSymbolsConfig struct {
	APIURL                   string        `mapstructure:"api_url" validate:"required,url"`
	SymbolSet                string        `mapstructure:"symbol_set" validate:"required,symbol_set"`
	Language                 string        `mapstructure:"language" validate:"required,len=3"`
	MaxRetries               uint          `mapstructure:"max_retries"`
	RetryDelay               time.Duration `mapstructure:"retry_delay"`
	IncludeTypeInDisplayText bool          `mapstructure:"include_type_in_display_text"`
	IncludeTypeInAriaLabel   bool          `mapstructure:"include_type_in_aria_label"`
}

type SortingConfig struct {
	Horizontal   string  `mapstructure:"horizontal" validate:"oneof=lr rl"`
	Vertical     string  `mapstructure:"vertical" validate:"oneof=tb bt"`
	RowThreshold float64 `mapstructure:"row_threshold" validate:"gt=0"`
}

type CacheConfig struct {
	// Backend is memory, file or sql. Only file and sql survive a restart.
	Backend    string        `mapstructure:"backend" validate:"oneof=memory file sql"`
	Directory  string        `mapstructure:"directory" validate:"required_if=Backend file"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=mysql postgres sqlite"`
	// DSN overrides the connection fields below when set.
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

type ServerConfig struct {
	Port     int        `mapstructure:"port" validate:"gte=1,lte=65535"`
	CORS     CORSConfig `mapstructure:"cors"`
	CertFile string     `mapstructure:"cert_file" validate:"omitempty,file"`
	KeyFile  string     `mapstructure:"key_file" validate:"required_with=CertFile"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pictomap")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("map.width", 1024)
	v.SetDefault("map.height", 768)
	v.SetDefault("map.debounce", 300*time.Millisecond)
	v.SetDefault("map.concurrency", 8)
	v.SetDefault("overpass.api_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.types", []string{"shop", "leisure"})
	v.SetDefault("overpass.osm_types", []string{"node"})
	v.SetDefault("overpass.limit", 25)
	v.SetDefault("overpass.max_limit", 100)
	v.SetDefault("overpass.max_retries", 3)
	v.SetDefault("overpass.retry_delay", time.Second)
	v.SetDefault("overpass.timeout", 25*time.Second)
	v.SetDefault("overpass.derive_names", true)
	v.SetDefault("overpass.filter_out_no_name", true)
	v.SetDefault("global_symbols.api_url", "https://globalsymbols.com/api/v1/labels/search")
	v.SetDefault("global_symbols.symbol_set", "arasaac")
	v.SetDefault("global_symbols.language", "eng")
	v.SetDefault("global_symbols.max_retries", 0)
	v.SetDefault("global_symbols.retry_delay", time.Second)
	v.SetDefault("global_symbols.include_type_in_display_text", false)
	v.SetDefault("global_symbols.include_type_in_aria_label", true)
	v.SetDefault("sorting.horizontal", "lr")
	v.SetDefault("sorting.vertical", "tb")
	v.SetDefault("sorting.row_threshold", 64)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.directory", filepath.Join("cache", "pictograms"))
	v.SetDefault("cache.key_prefix", "pictomap_cache")
	v.SetDefault("cache.expiration", 7*24*time.Hour)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "pictomap.db")
	v.SetDefault("database.username", "user")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	// Bind database secrets to environment variables
	if err := v.BindEnv("database.password", "PICTOMAP_DATABASE_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind PICTOMAP_DATABASE_PASSWORD environment variable: %w", err)
	}
	if err := v.BindEnv("database.dsn", "PICTOMAP_DATABASE_DSN"); err != nil {
		return nil, fmt.Errorf("failed to bind PICTOMAP_DATABASE_DSN environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
