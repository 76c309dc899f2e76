package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SWITCHBOARD_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SWITCHBOARD_LOG_DEBUG, SWITCHBOARD_UPSTREAM_TIMEOUT, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SWITCHBOARD_LOG_DEBUG, SWITCHBOARD_EVENTS_TOPIC, etc.
	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Log
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)

	// Upstream
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)
	v.SetDefault("upstream.routes_file", d.Upstream.RoutesFile)

	// Router
	v.SetDefault("router.recoverable", d.Router.Recoverable)

	// Events
	v.SetDefault("events.publisher", d.Events.Publisher)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.workers", d.Events.Workers)
	v.SetDefault("events.queue_size", d.Events.QueueSize)
}

// ApplyViper overlays the scalar settings resolved by v (flags, env, file,
// defaults) onto cfg. Tables such as the route table only come from the
// config file.
func ApplyViper(cfg *Config, v *viper.Viper) {
	cfg.Log.Debug = v.GetBool("log.debug")
	cfg.Log.JSON = v.GetBool("log.json")

	cfg.Upstream.Timeout = v.GetString("upstream.timeout")
	cfg.Upstream.RoutesFile = v.GetString("upstream.routes_file")

	if rec := v.GetStringSlice("router.recoverable"); len(rec) > 0 {
		cfg.Router.Recoverable = rec
	}

	cfg.Events.Publisher = v.GetString("events.publisher")
	if brokers := v.GetStringSlice("events.brokers"); len(brokers) > 0 {
		cfg.Events.Brokers = brokers
	}
	cfg.Events.Topic = v.GetString("events.topic")
	cfg.Events.Workers = v.GetUint("events.workers")
	cfg.Events.QueueSize = v.GetUint("events.queue_size")
}
