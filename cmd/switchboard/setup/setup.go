// Package setup turns the resolved configuration (flags, env, config.toml and
// the routes file) into the objects commands run on: the logger, the dialect
// registry, the router and the event publisher.
package setup

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/eventstream"
	"github.com/papercomputeco/switchboard/pkg/eventstream/kafka"
	"github.com/papercomputeco/switchboard/pkg/eventstream/nop"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/pkg/router"
	"github.com/papercomputeco/switchboard/pkg/upstream"
	"github.com/papercomputeco/switchboard/pkg/worker"
)

// Env is everything a command needs to reach upstream backends.
type Env struct {
	Config   *config.Config
	Configer *config.Configer
	Logger   *zap.Logger
	Registry *provider.Registry
	Resolver *router.Resolver

	// RoutesPath is the routes file in effect, empty when routes come from
	// config.toml.
	RoutesPath string
}

// Load resolves configuration for cmd. flagKeys name the config.Flags entries
// registered on cmd that take part in the flag > env > file > default chain.
func Load(cmd *cobra.Command, flagKeys ...string) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	keys := append([]string{config.FlagDebug, config.FlagJSONLogs}, flagKeys...)
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.ApplyViper(cfg, v)

	log := NewLogger(cfg)

	routes, routesPath, err := cfger.Routes(cfg)
	if err != nil {
		return nil, err
	}
	kinds, err := routes.RecoverableKinds()
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		kinds = router.DefaultRecoverable()
	}

	reg := provider.NewRegistry()
	resolver, err := router.New(routes.Providers,
		router.WithRegistry(reg),
		router.WithRecoverable(kinds...),
		router.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	log.Debug("configuration loaded",
		zap.String("config", cfger.GetTarget()),
		zap.String("routes", routesPath),
		zap.Strings("providers", resolver.Table().Providers()),
	)

	return &Env{
		Config:     cfg,
		Configer:   cfger,
		Logger:     log,
		Registry:   reg,
		Resolver:   resolver,
		RoutesPath: routesPath,
	}, nil
}

// NewLogger writes to stderr so stdout stays free for command output.
func NewLogger(cfg *config.Config) *zap.Logger {
	if cfg.Log.JSON {
		return logger.NewJSONLogger(cfg.Log.Debug, os.Stderr)
	}
	return logger.NewLoggerWithWriters(cfg.Log.Debug, os.Stderr)
}

// HTTPClient bounds every upstream exchange by upstream.timeout.
func (e *Env) HTTPClient() (*http.Client, error) {
	timeout, err := e.Config.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: timeout}, nil
}

// Invoker returns an HTTP invoker using the configured registry, markers and
// timeout.
func (e *Env) Invoker(opts ...upstream.InvokerOption) (*upstream.HTTPInvoker, error) {
	client, err := e.HTTPClient()
	if err != nil {
		return nil, err
	}

	base := []upstream.InvokerOption{
		upstream.WithHTTPClient(client),
		upstream.WithDialects(e.Registry),
		upstream.WithInvokerLogger(e.Logger),
	}
	if len(e.Config.Stream.Markers) > 0 {
		base = append(base, upstream.WithMarkers(e.Config.Stream.Markers...))
	}
	return upstream.NewHTTPInvoker(append(base, opts...)...), nil
}

// Publisher builds the configured stream event publisher.
func (e *Env) Publisher() (eventstream.Publisher, error) {
	ev := e.Config.Events
	switch ev.Publisher {
	case "", config.PublisherNop:
		return nop.NewPublisher(), nil
	case config.PublisherKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers:  ev.Brokers,
			Topic:    ev.Topic,
			ClientID: "switchboard",
		})
	default:
		return nil, fmt.Errorf("unknown events publisher: %q", ev.Publisher)
	}
}

// EventPool starts the worker pool publishing completed-stream events.
// The caller must Close it to drain pending events.
func (e *Env) EventPool() (*worker.Pool, error) {
	pub, err := e.Publisher()
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher:  pub,
		NumWorkers: e.Config.Events.Workers,
		QueueSize:  e.Config.Events.QueueSize,
		Logger:     e.Logger,
	})
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	return pool, nil
}

// Watch reloads the routes file into the resolver until ctx is done. It is a
// no-op when routes come from config.toml.
func (e *Env) Watch(ctx context.Context) {
	if e.RoutesPath == "" {
		return
	}

	w := router.NewWatcher(e.RoutesPath, e.Resolver, e.Logger)
	go func() {
		if err := w.Run(ctx); err != nil {
			e.Logger.Warn("routes watcher stopped", zap.String("path", e.RoutesPath), zap.Error(err))
		}
	}()
}

// Close flushes the logger.
func (e *Env) Close() {
	_ = e.Logger.Sync()
}
