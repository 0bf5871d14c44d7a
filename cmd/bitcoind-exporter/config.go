package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BITCOIND_EXPORTER"

// config is the final set of settings, merged from (in order of precedence)
// flags explicitly set, environment variables, the config file, and flag
// defaults.
//
type config struct {
	BindAddr      string        `mapstructure:"bind-addr"`
	TelemetryPath string        `mapstructure:"telemetry-path"`
	ScrapeTimeout time.Duration `mapstructure:"scrape-timeout"`

	RPCHost       string `mapstructure:"rpc-host"`
	RPCUser       string `mapstructure:"rpc-user"`
	RPCPassword   string `mapstructure:"rpc-password"`
	RPCCookieFile string `mapstructure:"rpc-cookie-file"`
	RPCTLS        bool   `mapstructure:"rpc-tls"`

	WaitForNode time.Duration `mapstructure:"wait-for-node"`

	GeoIPFilepath  string `mapstructure:"geoip-filepath"`
	PruneStaleBans bool   `mapstructure:"prune-stale-bans"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`
}

// newViper binds every flag to a viper key of the same name, also reachable
// through `BITCOIND_EXPORTER_<FLAG>` (dashes replaced by underscores).
//
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind pflags: %w", err)
	}

	return v, nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w",
				path, err)
		}
	}

	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return cfg, nil
}

func (c *config) validate() error {
	if c.RPCHost == "" {
		return fmt.Errorf("rpc-host must be set")
	}

	if !strings.HasPrefix(c.TelemetryPath, "/") {
		return fmt.Errorf("telemetry-path '%s' must start with '/'",
			c.TelemetryPath)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log-format '%s' must be either 'console' "+
			"or 'json'", c.LogFormat)
	}

	if c.ScrapeTimeout < 0 || c.WaitForNode < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	return nil
}
