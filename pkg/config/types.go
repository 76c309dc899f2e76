package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/router"
)

// Config represents the persistent switchboard configuration stored as
// config.toml in the .switchboard/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Log      LogConfig      `toml:"log"`
	Stream   StreamConfig   `toml:"stream"`
	Upstream UpstreamConfig `toml:"upstream"`
	Router   RouterConfig   `toml:"router"`
	Events   EventsConfig   `toml:"events"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Debug bool `toml:"debug,omitempty"`
	JSON  bool `toml:"json,omitempty"`
}

// StreamConfig holds canonical stream settings.
type StreamConfig struct {
	// Markers are the inline reasoning tags split out of answer text.
	Markers []stream.Marker `toml:"markers,omitempty"`
}

// UpstreamConfig holds settings for calls to provider backends.
type UpstreamConfig struct {
	// Timeout bounds one exchange, as a Go duration string.
	Timeout string `toml:"timeout,omitempty"`

	// RoutesFile is a routes document that replaces [router.providers]. A
	// relative path is resolved against the config directory.
	RoutesFile string `toml:"routes_file,omitempty"`
}

// RouterConfig holds the inline route table and fallback policy.
type RouterConfig struct {
	Recoverable []string     `toml:"recoverable,omitempty"`
	Providers   router.Table `toml:"providers,omitempty"`
}

// EventsConfig holds stream telemetry settings.
type EventsConfig struct {
	Publisher string   `toml:"publisher,omitempty"`
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic,omitempty"`
	Workers   uint     `toml:"workers,omitempty"`
	QueueSize uint     `toml:"queue_size,omitempty"`
}

// Publisher names accepted by events.publisher.
const (
	PublisherNop   = "nop"
	PublisherKafka = "kafka"
)

// TimeoutDuration parses upstream.timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Upstream.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid upstream.timeout: %w", err)
	}
	return d, nil
}

// RecoverableKinds parses router.recoverable. An empty list yields nil.
func (c *Config) RecoverableKinds() ([]llm.ErrorKind, error) {
	return parseKinds(c.Router.Recoverable)
}

func parseKinds(values []string) ([]llm.ErrorKind, error) {
	if len(values) == 0 {
		return nil, nil
	}
	kinds := make([]llm.ErrorKind, 0, len(values))
	for _, v := range values {
		k, err := llm.ParseErrorKind(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"log.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Debug) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.debug: %w", err)
			}
			c.Log.Debug = b
			return nil
		},
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	"upstream.timeout": {
		get: func(c *Config) string { return c.Upstream.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for upstream.timeout: %w", err)
			}
			c.Upstream.Timeout = v
			return nil
		},
	},
	"upstream.routes_file": {
		get: func(c *Config) string { return c.Upstream.RoutesFile },
		set: func(c *Config, v string) error { c.Upstream.RoutesFile = v; return nil },
	},
	"router.recoverable": {
		get: func(c *Config) string { return strings.Join(c.Router.Recoverable, ",") },
		set: func(c *Config, v string) error {
			list := splitList(v)
			if _, err := parseKinds(list); err != nil {
				return fmt.Errorf("invalid value for router.recoverable: %w", err)
			}
			c.Router.Recoverable = list
			return nil
		},
	},
	"events.publisher": {
		get: func(c *Config) string { return c.Events.Publisher },
		set: func(c *Config, v string) error {
			if !slices.Contains([]string{PublisherNop, PublisherKafka}, v) {
				return fmt.Errorf("invalid value for events.publisher: %q (available: %s, %s)", v, PublisherNop, PublisherKafka)
			}
			c.Events.Publisher = v
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = splitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"events.workers": {
		get: func(c *Config) string { return formatUint(c.Events.Workers) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for events.workers: %w", err)
			}
			c.Events.Workers = uint(n)
			return nil
		},
	},
	"events.queue_size": {
		get: func(c *Config) string { return formatUint(c.Events.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for events.queue_size: %w", err)
			}
			c.Events.QueueSize = uint(n)
			return nil
		},
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}
