package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
)

var (
	// ErrUnknownProvider is returned when no table entry exists for a
	// logical provider name.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoCandidates is returned when no candidate of a provider serves the
	// requested model.
	ErrNoCandidates = errors.New("no candidate serves model")
)

// DefaultRecoverable are the kinds that move execution on to the next
// candidate: the failure belongs to that candidate (its credentials, its
// model catalog, its permissions), not to the request.
func DefaultRecoverable() []llm.ErrorKind {
	return []llm.ErrorKind{
		llm.ErrorKindInvalidCredentials,
		llm.ErrorKindModelNotFound,
		llm.ErrorKindPermissionDenied,
	}
}

// ErrorMapper classifies the raw failure of one candidate invocation.
type ErrorMapper func(c Candidate, provider string, err error) *llm.Error

// RegistryMapper classifies with the mapper of the candidate's dialect.
func RegistryMapper(reg *provider.Registry) ErrorMapper {
	return func(c Candidate, name string, err error) *llm.Error {
		return reg.MapError(c.Dialect, err, name)
	}
}

// Resolver holds the route table and the fallback policy. The table can be
// swapped while requests are executing; each Execute call works on the table
// it started with.
type Resolver struct {
	table       atomic.Pointer[Table]
	recoverable map[llm.ErrorKind]bool
	mapErr      ErrorMapper
	known       func(string) bool
	logger      *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRecoverable replaces the set of kinds that fall back to the next
// candidate.
func WithRecoverable(kinds ...llm.ErrorKind) Option {
	return func(r *Resolver) {
		r.recoverable = make(map[llm.ErrorKind]bool, len(kinds))
		for _, k := range kinds {
			r.recoverable[k] = true
		}
	}
}

// WithErrorMapper replaces the error classification.
func WithErrorMapper(m ErrorMapper) Option {
	return func(r *Resolver) {
		if m != nil {
			r.mapErr = m
		}
	}
}

// WithRegistry classifies errors with reg and validates candidate dialects
// against it.
func WithRegistry(reg *provider.Registry) Option {
	return func(r *Resolver) {
		r.mapErr = RegistryMapper(reg)
		r.known = reg.Has
	}
}

// WithLogger sets the logger for fallback hops and exhaustion.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New validates table and returns a Resolver over it. Without options it
// uses the builtin dialect registry and DefaultRecoverable.
func New(table Table, opts ...Option) (*Resolver, error) {
	r := &Resolver{logger: zap.NewNop()}
	WithRegistry(provider.NewRegistry())(r)
	WithRecoverable(DefaultRecoverable()...)(r)
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Swap(table); err != nil {
		return nil, err
	}
	return r, nil
}

// Swap validates t and makes it the active table. An invalid table is
// rejected and the active one is kept.
func (r *Resolver) Swap(t Table) error {
	if err := t.Validate(r.known); err != nil {
		return err
	}
	clone := t.Clone()
	r.table.Store(&clone)
	return nil
}

// Table returns the active table. Callers must not modify it.
func (r *Resolver) Table() Table {
	return *r.table.Load()
}

// Recoverable reports whether kind falls back to the next candidate.
func (r *Resolver) Recoverable(kind llm.ErrorKind) bool {
	return r.recoverable[kind]
}

// RecoverableKinds returns the configured fallback kinds, sorted.
func (r *Resolver) RecoverableKinds() []llm.ErrorKind {
	out := make([]llm.ErrorKind, 0, len(r.recoverable))
	for k := range r.recoverable {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Resolve returns the candidates that may serve model, in the order Execute
// would try them.
func (r *Resolver) Resolve(provider, model string) ([]Candidate, error) {
	return r.Table().Resolve(provider, model)
}

// Execute invokes fn on the candidates of provider that serve model, one at
// a time in priority order, and returns the first success.
//
// A failure whose canonical kind is recoverable moves on to the next
// candidate; any other failure is returned immediately. When every candidate
// failed recoverably, the last error is returned marked Exhausted. Every
// returned error is an *llm.Error.
func Execute[T any](ctx context.Context, r *Resolver, provider, model string, fn func(context.Context, Candidate) (T, error)) (T, error) {
	var zero T

	candidates, err := r.Resolve(provider, model)
	if err != nil {
		kind := llm.ErrorKindModelNotFound
		if errors.Is(err, ErrUnknownProvider) {
			kind = llm.ErrorKindRequestMalformed
		}
		return zero, llm.NewError(kind, provider, err)
	}

	var last *llm.Error
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			e, _ := llm.ContextError(provider, err)
			e.Attempts = i
			return zero, e
		}

		result, err := fn(ctx, c)
		if err == nil {
			if i > 0 {
				r.logger.Info("fallback candidate succeeded",
					zap.String("provider", provider),
					zap.String("candidate", c.Name),
					zap.Int("attempt", i+1),
				)
			}
			return result, nil
		}

		last = r.mapError(c, provider, err)
		last.Attempts = i + 1

		if !r.recoverable[last.Kind] {
			return zero, last
		}

		if i < len(candidates)-1 {
			r.logger.Warn("candidate failed, falling back",
				zap.String("provider", provider),
				zap.String("model", model),
				zap.String("candidate", c.Name),
				zap.String("next", candidates[i+1].Name),
				zap.String("kind", string(last.Kind)),
				zap.Error(err),
			)
		}
	}

	last.Exhausted = true
	r.logger.Error("all candidates failed",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("attempts", last.Attempts),
		zap.String("kind", string(last.Kind)),
	)
	return zero, last
}

func (r *Resolver) mapError(c Candidate, provider string, err error) *llm.Error {
	if e, ok := llm.AsError(err); ok {
		out := *e
		if out.Provider == "" {
			out.Provider = provider
		}
		return &out
	}
	if e, ok := llm.ContextError(provider, err); ok {
		return e
	}
	if e := r.mapErr(c, provider, err); e != nil {
		return e
	}
	return llm.NewError(llm.ErrorKindProviderBusiness, provider, fmt.Errorf("candidate %s: %w", c.Name, err))
}
