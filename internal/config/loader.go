package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/semroute/semroute/internal/domain/fault"
)

// DefaultPath is used when no configuration path is given on the command
// line.
const DefaultPath = "./config.json"

// envPrefix namespaces the environment overrides, e.g.
// SEMROUTE_LOADING_CONNECTION_TIMEOUT.
const envPrefix = "SEMROUTE"

// rawConfig is the file shape. Upstream ids are map keys and must stay
// case-sensitive, so the file is decoded with encoding/json; pointer
// fields distinguish absent values from explicit zero values.
type rawConfig struct {
	MCPServers map[string]UpstreamConfig `json:"mcpServers"`
	Loading    *rawLoading               `json:"loading"`
	Metrics    *MetricsConfig            `json:"metrics"`
}

type rawLoading struct {
	AutoLoad               []string `json:"auto_load"`
	LazyLoad               *bool    `json:"lazy_load"`
	CacheEmbeddings        *bool    `json:"cache_embeddings"`
	ConnectionTimeout      *int     `json:"connection_timeout"`
	MaxConcurrentUpstreams *int     `json:"max_concurrent_upstreams"`
	RateLimit              *int     `json:"rate_limit"`
}

// Load reads, parses, and defaults the JSON configuration file, applies
// environment overrides for the scalar settings, then validates the result.
// Every failure is a configuration fault with a descriptive message; the
// process must not start on any of them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.Configuration("Configuration file not found: %s", path)
		}
		return nil, fault.Configuration("Failed to read configuration file: %v", err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		if _, ok := err.(*json.SyntaxError); ok {
			return nil, fault.Configuration("Invalid JSON in configuration file: %v", err)
		}
		return nil, fault.Configuration("Invalid configuration structure: %v", err)
	}

	cfg := &Config{
		MCPServers: raw.MCPServers,
		Loading:    buildLoading(raw.Loading),
	}
	if raw.Metrics != nil {
		cfg.Metrics = *raw.Metrics
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLoading fills the documented defaults for every absent field.
func buildLoading(raw *rawLoading) LoadingConfig {
	l := LoadingConfig{
		AutoLoad:               []string{"all"},
		LazyLoad:               true,
		CacheEmbeddings:        true,
		ConnectionTimeout:      30,
		MaxConcurrentUpstreams: 10,
		RateLimit:              5,
	}
	if raw == nil {
		return l
	}
	if raw.AutoLoad != nil {
		l.AutoLoad = raw.AutoLoad
	}
	if raw.LazyLoad != nil {
		l.LazyLoad = *raw.LazyLoad
	}
	if raw.CacheEmbeddings != nil {
		l.CacheEmbeddings = *raw.CacheEmbeddings
	}
	if raw.ConnectionTimeout != nil {
		l.ConnectionTimeout = *raw.ConnectionTimeout
	}
	if raw.MaxConcurrentUpstreams != nil {
		l.MaxConcurrentUpstreams = *raw.MaxConcurrentUpstreams
	}
	if raw.RateLimit != nil {
		l.RateLimit = *raw.RateLimit
	}
	return l
}

// applyEnvOverrides lets scalar settings be overridden without editing
// the file, e.g. SEMROUTE_LOADING_CONNECTION_TIMEOUT=10 or
// SEMROUTE_METRICS_ADDR=:9090.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := []string{
		"loading.lazy_load",
		"loading.cache_embeddings",
		"loading.connection_timeout",
		"loading.max_concurrent_upstreams",
		"loading.rate_limit",
		"metrics.addr",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if v.IsSet("loading.lazy_load") {
		cfg.Loading.LazyLoad = v.GetBool("loading.lazy_load")
	}
	if v.IsSet("loading.cache_embeddings") {
		cfg.Loading.CacheEmbeddings = v.GetBool("loading.cache_embeddings")
	}
	if v.IsSet("loading.connection_timeout") {
		cfg.Loading.ConnectionTimeout = v.GetInt("loading.connection_timeout")
	}
	if v.IsSet("loading.max_concurrent_upstreams") {
		cfg.Loading.MaxConcurrentUpstreams = v.GetInt("loading.max_concurrent_upstreams")
	}
	if v.IsSet("loading.rate_limit") {
		cfg.Loading.RateLimit = v.GetInt("loading.rate_limit")
	}
	if v.IsSet("metrics.addr") {
		cfg.Metrics.Addr = v.GetString("metrics.addr")
	}
}

// describeUpstream formats a per-upstream validation failure.
func describeUpstream(id, problem string) error {
	return fault.Configuration("Invalid configuration for upstream '%s': %s", id, problem)
}
