// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package config loads build-time and server-time settings from
// layered sources: struct defaults, an optional YAML file, then
// environment variables, with later layers winning.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/validation"
)

// DefaultConfigPaths lists the config file locations searched in
// order; the first that exists wins.
var DefaultConfigPaths = []string{
	"imdbsearch.yaml",
	"imdbsearch.yml",
	"/etc/imdbsearch/config.yaml",
	"/etc/imdbsearch/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "IMDBSEARCH_CONFIG_PATH"

// envPrefix namespaces the environment variables this package reads:
// IMDBSEARCH_INDEX_NGRAM_SIZE -> index.ngram_size.
const envPrefix = "IMDBSEARCH_"

// Config is the full configuration tree.
type Config struct {
	Data    DataConfig    `koanf:"data"`
	Index   IndexConfig   `koanf:"index"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// DataConfig locates the IMDb TSV files.
type DataConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// IndexConfig controls index location and build/query settings.
type IndexConfig struct {
	Dir string `koanf:"dir" validate:"required"`
	// NgramType is "window" or "edge".
	NgramType string `koanf:"ngram_type"`
	NgramSize int    `koanf:"ngram_size" validate:"min=2,max=16"`
	// StopWordRatio is the df/N threshold separating driving ngrams
	// from boosting ngrams at query time.
	StopWordRatio float64 `koanf:"stop_word_ratio" validate:"min=0,max=1"`
	// Scorer is the default name scorer for queries that don't choose
	// one.
	Scorer string `koanf:"scorer"`
	// CheckpointDir, when set, enables resumable builds via a BadgerDB
	// checkpoint database at this path.
	CheckpointDir string `koanf:"checkpoint_dir"`
}

// ServerConfig controls the optional HTTP query facade.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=0,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
	// AuthMode is "none", "apikey", "jwt", or "oidc".
	AuthMode string `koanf:"auth_mode" validate:"oneof=none apikey jwt oidc"`
	// JWTSecret signs and verifies bearer tokens in jwt mode.
	JWTSecret string `koanf:"jwt_secret"`
	// APIKeyHash is the bcrypt hash of the static API key in apikey
	// mode. The plaintext key never appears in configuration.
	APIKeyHash string `koanf:"api_key_hash"`
	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	// KeyRatePerSec and KeyRateBurst bound each authenticated
	// principal's sustained and burst query rates.
	KeyRatePerSec float64       `koanf:"key_rate_per_sec"`
	KeyRateBurst  int           `koanf:"key_rate_burst"`
	CORSOrigins   []string      `koanf:"cors_origins"`
	OIDC          OIDCConfig    `koanf:"oidc"`
	Casbin        CasbinConfig  `koanf:"casbin"`
	Breaker       BreakerConfig `koanf:"breaker"`
}

// OIDCConfig configures token verification against an OIDC issuer.
type OIDCConfig struct {
	IssuerURL string `koanf:"issuer_url"`
	ClientID  string `koanf:"client_id"`
	// RolesClaim is the token claim listing the subject's roles.
	RolesClaim string `koanf:"roles_claim"`
}

// CasbinConfig configures role-based access control. Empty paths fall
// back to the built-in model and policy, which grant read access to
// the reader and admin roles and admin endpoints to the admin role.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// BreakerConfig bounds the exhaustive-scan fallback, the one query
// path whose cost scales with corpus size.
type BreakerConfig struct {
	// MaxFailures trips the breaker after this many consecutive scan
	// failures or timeouts.
	MaxFailures uint32 `koanf:"max_failures"`
	// OpenFor is how long the breaker rejects scans after tripping.
	OpenFor time.Duration `koanf:"open_for"`
	// ScanTimeout bounds a single exhaustive scan.
	ScanTimeout time.Duration `koanf:"scan_timeout"`
}

// LoggingConfig mirrors logging.Config for the settings exposed here.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "data",
		},
		Index: IndexConfig{
			Dir:           "index",
			NgramType:     "window",
			NgramSize:     3,
			StopWordRatio: 0.01,
			Scorer:        "okapibm25",
			CheckpointDir: "",
		},
		Server: ServerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            8781,
			Timeout:         30 * time.Second,
			AuthMode:        "none",
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			KeyRatePerSec:   50,
			KeyRateBurst:    100,
			CORSOrigins:     []string{"*"},
			OIDC: OIDCConfig{
				RolesClaim: "roles",
			},
			Breaker: BreakerConfig{
				MaxFailures: 3,
				OpenFor:     30 * time.Second,
				ScanTimeout: 2 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load assembles the configuration from defaults, an optional config
// file, and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("loading defaults: %v", err)}
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("loading %s: %v", path, err)}
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("loading environment: %v", err)}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("unmarshaling configuration: %v", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps environment variable names to koanf paths:
// IMDBSEARCH_SERVER_PORT -> server.port,
// IMDBSEARCH_SERVER_OIDC_ISSUER_URL -> server.oidc.issuer_url,
// IMDBSEARCH_INDEX_NGRAM_SIZE -> index.ngram_size. Section prefixes
// are rewritten longest-first so nested sections win over their
// parents; the remainder of the key keeps its underscores, matching
// the koanf struct tags.
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	sections := []string{
		"server_oidc", "server_casbin", "server_breaker",
		"data", "index", "server", "logging",
	}
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			dotted := strings.ReplaceAll(section, "_", ".")
			return dotted + "." + key[len(section)+1:]
		}
	}
	return key
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks both the struct tags and the cross-field rules the
// tags can't express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return &indexerrors.ConfigError{Detail: verr.Error()}
	}
	if _, ok := analyzer.ParseNgramType(c.Index.NgramType); !ok {
		return &indexerrors.ConfigError{Detail: fmt.Sprintf("unknown ngram type %q", c.Index.NgramType)}
	}
	if _, err := nameindex.ParseScorer(c.Index.Scorer); err != nil {
		return &indexerrors.ConfigError{Detail: fmt.Sprintf("unknown scorer %q", c.Index.Scorer)}
	}
	if c.Server.Enabled {
		switch c.Server.AuthMode {
		case "jwt":
			if c.Server.JWTSecret == "" {
				return &indexerrors.ConfigError{Detail: "auth_mode jwt requires jwt_secret"}
			}
		case "apikey":
			if c.Server.APIKeyHash == "" {
				return &indexerrors.ConfigError{Detail: "auth_mode apikey requires api_key_hash"}
			}
		case "oidc":
			if c.Server.OIDC.IssuerURL == "" {
				return &indexerrors.ConfigError{Detail: "auth_mode oidc requires oidc.issuer_url"}
			}
		}
	}
	return nil
}

// NgramTypeParsed returns the parsed ngram type. Validate has already
// guaranteed it parses.
func (c *IndexConfig) NgramTypeParsed() analyzer.NgramType {
	t, _ := analyzer.ParseNgramType(c.NgramType)
	return t
}

// ScorerParsed returns the parsed default scorer.
func (c *IndexConfig) ScorerParsed() nameindex.Scorer {
	s, _ := nameindex.ParseScorer(c.Scorer)
	return s
}
