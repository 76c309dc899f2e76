package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
	"github.com/papercomputeco/switchboard/pkg/router"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config, read as v1
	v0 = 0

	// v1 is the first versioned config layout
	v1 = 1

	// CurrentV is the currently supported version, points to v1
	CurrentV = v1
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .switchboard/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names
// in TOML section order.
func ValidConfigKeys() []string {
	ordered := []string{
		"log.debug",
		"log.json",
		"upstream.timeout",
		"upstream.routes_file",
		"router.recoverable",
		"events.publisher",
		"events.brokers",
		"events.topic",
		"events.workers",
		"events.queue_size",
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Dir is the directory holding config.toml, or empty when none resolved.
func (c *Configer) Dir() string {
	if c.targetPath == "" {
		return ""
	}
	return filepath.Dir(c.targetPath)
}

// LoadConfig loads the configuration from config.toml in the target
// .switchboard/ directory. If the file does not exist, returns
// NewDefaultConfig() so callers always receive a fully-populated Config.
// Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
// An explicit empty [router.providers] table is kept empty.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == v0 {
		cfg.Version = defaults.Version
	}

	if len(cfg.Stream.Markers) == 0 {
		cfg.Stream.Markers = defaults.Stream.Markers
	}

	if cfg.Upstream.Timeout == "" {
		cfg.Upstream.Timeout = defaults.Upstream.Timeout
	}

	if len(cfg.Router.Recoverable) == 0 {
		cfg.Router.Recoverable = defaults.Router.Recoverable
	}
	if cfg.Router.Providers == nil {
		cfg.Router.Providers = defaults.Router.Providers
	}

	if cfg.Events.Publisher == "" {
		cfg.Events.Publisher = defaults.Events.Publisher
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}
	if cfg.Events.Workers == 0 {
		cfg.Events.Workers = defaults.Events.Workers
	}
	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = defaults.Events.QueueSize
	}
}

// SaveConfig persists the configuration to config.toml in the target
// .switchboard/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// Routes returns the route table and fallback policy in effect: the routes
// file when upstream.routes_file is set, the inline [router] section
// otherwise. A recoverable list in the routes file wins over the inline one.
func (c *Configer) Routes(cfg *Config) (*router.File, string, error) {
	inline := &router.File{
		Recoverable: cfg.Router.Recoverable,
		Providers:   cfg.Router.Providers,
	}
	if cfg.Upstream.RoutesFile == "" {
		return inline, "", nil
	}

	path := cfg.Upstream.RoutesFile
	if !filepath.IsAbs(path) && c.Dir() != "" {
		path = filepath.Join(c.Dir(), path)
	}

	f, err := router.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	if len(f.Recoverable) == 0 {
		f.Recoverable = inline.Recoverable
	}
	return f, path, nil
}

// PresetConfig returns a Config with a single route for the named provider
// preset. Supported presets: "openai", "anthropic", "ollama", "gemini".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	var c router.Candidate

	switch strings.ToLower(name) {
	case "openai":
		c = router.Candidate{
			Name:     "openai",
			Dialect:  "openai",
			Endpoint: "https://api.openai.com",
			Headers:  map[string]string{"Authorization": "Bearer ${OPENAI_API_KEY}"},
		}

	case "anthropic":
		c = router.Candidate{
			Name:     "anthropic",
			Dialect:  "anthropic",
			Endpoint: "https://api.anthropic.com",
			Headers:  map[string]string{"x-api-key": "${ANTHROPIC_API_KEY}"},
		}

	case "ollama":
		c = router.Candidate{
			Name:     "ollama-local",
			Dialect:  "ollama",
			Endpoint: defaultOllamaEndpoint,
		}

	case "gemini":
		c = router.Candidate{
			Name:     "gemini",
			Dialect:  "gemini",
			Endpoint: "https://generativelanguage.googleapis.com",
			Headers:  map[string]string{"x-goog-api-key": "${GEMINI_API_KEY}"},
		}

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	c.Priority = 1
	cfg := NewDefaultConfig()
	cfg.Router.Providers = router.Table{strings.ToLower(name): {c}}
	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama", "gemini"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not supported.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != v0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
