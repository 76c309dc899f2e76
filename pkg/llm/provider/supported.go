package provider

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/bedrock"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/besteffort"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/gemini"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/ollama"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/openai"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/vertex"
)

// Builtin dialect names
const (
	Anthropic  = "anthropic"
	OpenAI     = "openai"
	Ollama     = "ollama"
	Gemini     = "gemini"
	Bedrock    = "bedrock"
	Vertex     = "vertex"
	BestEffort = "besteffort"
)

// ErrUnknownDialect is returned when a dialect name is not registered.
var ErrUnknownDialect = errors.New("unknown dialect")

// SupportedProviders returns the list of builtin dialect names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama, Gemini, Bedrock, Vertex, BestEffort}
}

// New creates a builtin Provider for the given dialect.
func New(dialect string) (Provider, error) {
	switch dialect {
	case Anthropic:
		return anthropic.New(), nil
	case OpenAI:
		return openai.New(), nil
	case Ollama:
		return ollama.New(), nil
	case Gemini:
		return gemini.New(), nil
	case Bedrock:
		return bedrock.New(), nil
	case Vertex:
		return vertex.New(), nil
	case BestEffort:
		return besteffort.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownDialect, dialect, SupportedProviders())
	}
}

// Registry maps dialect names to providers. It is populated at startup and
// read concurrently by every request afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns a registry holding every builtin dialect.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, name := range SupportedProviders() {
		p, _ := New(name)
		r.providers[name] = p
	}
	return r
}

// Register adds or replaces a dialect.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider for dialect.
func (r *Registry) Get(dialect string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[dialect]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDialect, dialect, r.namesLocked())
	}
	return p, nil
}

// Has reports whether dialect is registered.
func (r *Registry) Has(dialect string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[dialect]
	return ok
}

// Names returns the registered dialect names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MapError classifies raw with the mapper of dialect. Unregistered dialects
// fall back to the generic rules so the mapping stays total.
func (r *Registry) MapError(dialect string, raw error, provider string) *llm.Error {
	p, err := r.Get(dialect)
	if err != nil {
		return errmap.Map(raw, provider, nil)
	}
	return p.MapError(raw, provider)
}
