// Package router resolves a logical provider name to the concrete backends
// ("candidates") that can serve it and executes requests against them in
// priority order, falling back on recoverable failures.
package router

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

// Candidate is one concrete backend behind a logical provider name.
type Candidate struct {
	// Name identifies the candidate in logs and errors.
	Name string `toml:"name"`

	// Dialect is the wire format the backend speaks.
	Dialect string `toml:"dialect"`

	// Models the candidate may serve. Entries may be path.Match patterns
	// ("gpt-4*"). Empty means any model.
	Models []string `toml:"models,omitempty"`

	// Priority orders candidates of one provider, lowest first. Priorities
	// are unique within a provider.
	Priority int `toml:"priority"`

	// Endpoint is the base URL of the backend.
	Endpoint string `toml:"endpoint,omitempty"`

	// Headers are sent with every request. Values may reference environment
	// variables as ${NAME}.
	Headers map[string]string `toml:"headers,omitempty"`
}

// Serves reports whether the candidate may serve model.
func (c Candidate) Serves(model string) bool {
	if len(c.Models) == 0 {
		return true
	}
	for _, m := range c.Models {
		if m == model {
			return true
		}
		if strings.ContainsAny(m, "*?[") {
			if ok, err := path.Match(m, model); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Table maps logical provider names to their candidates.
type Table map[string][]Candidate

// ErrInvalidTable is wrapped by every validation failure.
var ErrInvalidTable = errors.New("invalid route table")

// Validate checks that every provider has candidates with names, known
// dialects and unique priorities. knownDialect may be nil to skip the dialect
// check.
func (t Table) Validate(knownDialect func(string) bool) error {
	var errs []error
	for _, provider := range t.Providers() {
		candidates := t[provider]
		if len(candidates) == 0 {
			errs = append(errs, fmt.Errorf("%w: provider %q has no candidates", ErrInvalidTable, provider))
			continue
		}

		priorities := make(map[int]string, len(candidates))
		names := make(map[string]bool, len(candidates))
		for i, c := range candidates {
			switch {
			case c.Name == "":
				errs = append(errs, fmt.Errorf("%w: provider %q candidate %d has no name", ErrInvalidTable, provider, i))
			case names[c.Name]:
				errs = append(errs, fmt.Errorf("%w: provider %q has duplicate candidate %q", ErrInvalidTable, provider, c.Name))
			}
			names[c.Name] = true

			if c.Dialect == "" {
				errs = append(errs, fmt.Errorf("%w: candidate %q has no dialect", ErrInvalidTable, c.Name))
			} else if knownDialect != nil && !knownDialect(c.Dialect) {
				errs = append(errs, fmt.Errorf("%w: candidate %q has unknown dialect %q", ErrInvalidTable, c.Name, c.Dialect))
			}

			if other, dup := priorities[c.Priority]; dup {
				errs = append(errs, fmt.Errorf("%w: provider %q candidates %q and %q share priority %d",
					ErrInvalidTable, provider, other, c.Name, c.Priority))
			}
			priorities[c.Priority] = c.Name

			for _, m := range c.Models {
				if _, err := path.Match(m, ""); err != nil {
					errs = append(errs, fmt.Errorf("%w: candidate %q model pattern %q: %w", ErrInvalidTable, c.Name, m, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Providers returns the logical provider names, sorted.
func (t Table) Providers() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for provider, candidates := range t {
		cs := make([]Candidate, len(candidates))
		for i, c := range candidates {
			c.Models = slices.Clone(c.Models)
			if c.Headers != nil {
				h := make(map[string]string, len(c.Headers))
				for k, v := range c.Headers {
					h[k] = v
				}
				c.Headers = h
			}
			cs[i] = c
		}
		out[provider] = cs
	}
	return out
}

// Resolve returns the candidates of provider that may serve model, in
// priority order. It performs no I/O.
func (t Table) Resolve(provider, model string) ([]Candidate, error) {
	candidates, ok := t[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Serves(model) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: provider %q, model %q", ErrNoCandidates, provider, model)
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		return a.Priority - b.Priority
	})
	return out, nil
}
