package config

import (
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/router"
)

const (
	defaultTimeout = "5m"

	defaultOllamaProvider = "ollama"
	defaultOllamaEndpoint = "http://localhost:11434"

	defaultEventsTopic     = "switchboard.streams"
	defaultEventsWorkers   = 3
	defaultEventsQueueSize = 256
)

// defaultRecoverable mirrors router.DefaultRecoverable as config strings.
func defaultRecoverable() []string {
	kinds := router.DefaultRecoverable()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Stream: StreamConfig{
			Markers: stream.DefaultMarkers(),
		},
		Upstream: UpstreamConfig{
			Timeout: defaultTimeout,
		},
		Router: RouterConfig{
			Recoverable: defaultRecoverable(),
			Providers: router.Table{
				defaultOllamaProvider: {
					{Name: "ollama-local", Dialect: "ollama", Endpoint: defaultOllamaEndpoint, Priority: 1},
				},
			},
		},
		Events: EventsConfig{
			Publisher: PublisherNop,
			Topic:     defaultEventsTopic,
			Workers:   defaultEventsWorkers,
			QueueSize: defaultEventsQueueSize,
		},
	}
}
