package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
	"github.com/papercomputeco/switchboard/pkg/router"
)

const (
	// DefaultTimeout bounds a whole exchange, stream included.
	DefaultTimeout = 5 * time.Minute

	maxErrorBody = 1 << 20
)

// Invoker sends a canonical request to one candidate and returns the
// canonical chunk stream of its answer. Failures before the stream starts
// are returned as errors (and are therefore eligible for fallback); failures
// after that are delivered in-band as the terminal error chunk.
type Invoker interface {
	Invoke(ctx context.Context, logical string, c router.Candidate, req *llm.ChatRequest) (*pipeline.Stream, error)
}

// HTTPInvoker is the Invoker for HTTP backends.
type HTTPInvoker struct {
	client    *http.Client
	registry  *provider.Registry
	logger    *zap.Logger
	markers   []stream.Marker
	lookupEnv func(string) (string, bool)
	onTerm    []TerminalHook
}

// Exchange describes one invocation of a candidate.
type Exchange struct {
	Provider  string
	Candidate string
	Dialect   string
	Model     string
	Streaming bool
}

// TerminalHook observes the terminal chunk of every stream an invoker opens.
type TerminalHook func(ex Exchange, sc *stream.Context, terminal llm.Chunk)

// InvokerOption configures an HTTPInvoker.
type InvokerOption func(*HTTPInvoker)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) InvokerOption {
	return func(h *HTTPInvoker) {
		if c != nil {
			h.client = c
		}
	}
}

// WithDialects replaces the dialect registry.
func WithDialects(r *provider.Registry) InvokerOption {
	return func(h *HTTPInvoker) {
		if r != nil {
			h.registry = r
		}
	}
}

// WithInvokerLogger sets the logger.
func WithInvokerLogger(l *zap.Logger) InvokerOption {
	return func(h *HTTPInvoker) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMarkers sets the inline reasoning markers of every stream.
func WithMarkers(markers ...stream.Marker) InvokerOption {
	return func(h *HTTPInvoker) {
		h.markers = markers
	}
}

// WithEnv replaces the environment lookup used to expand header values.
func WithEnv(lookup func(string) (string, bool)) InvokerOption {
	return func(h *HTTPInvoker) {
		h.lookupEnv = lookup
	}
}

// WithTerminalHook runs fn on the terminal chunk of every stream.
func WithTerminalHook(fn TerminalHook) InvokerOption {
	return func(h *HTTPInvoker) {
		if fn != nil {
			h.onTerm = append(h.onTerm, fn)
		}
	}
}

// NewHTTPInvoker creates an invoker over the builtin dialects.
func NewHTTPInvoker(opts ...InvokerOption) *HTTPInvoker {
	h := &HTTPInvoker{
		client:   &http.Client{Timeout: DefaultTimeout},
		registry: provider.NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Invoke encodes req in the candidate's dialect, sends it and wires the
// response body into a pipeline stream.
func (h *HTTPInvoker) Invoke(ctx context.Context, logical string, c router.Candidate, req *llm.ChatRequest) (*pipeline.Stream, error) {
	if req == nil {
		return nil, llm.NewError(llm.ErrorKindRequestMalformed, logical, fmt.Errorf("nil request"))
	}
	prov, err := h.registry.Get(c.Dialect)
	if err != nil {
		return nil, llm.NewError(llm.ErrorKindRequestMalformed, logical, err)
	}

	streaming := req.IsStreaming(prov.DefaultStreaming())
	outbound := *req
	outbound.Stream = &streaming

	body, err := prov.EncodeRequest(&outbound)
	if err != nil {
		return nil, llm.NewError(llm.ErrorKindRequestMalformed, logical, fmt.Errorf("encoding %s request: %w", c.Dialect, err))
	}

	target, err := Endpoint(c, req.Model, streaming)
	if err != nil {
		return nil, llm.NewError(llm.ErrorKindRequestMalformed, logical, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewError(llm.ErrorKindRequestMalformed, logical, err)
	}
	h.setHeaders(httpReq, c, streaming)

	h.logger.Debug("invoking candidate",
		zap.String("provider", logical),
		zap.String("candidate", c.Name),
		zap.String("dialect", c.Dialect),
		zap.String("model", req.Model),
		zap.String("url", target),
		zap.Bool("stream", streaming),
	)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", c.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		h.logger.Debug("candidate returned error",
			zap.String("candidate", c.Name),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &llm.HTTPError{StatusCode: resp.StatusCode, Body: respBody}
	}

	sc := stream.New(stream.NewStreamID(), stream.WithProvider(logical), stream.WithMarkers(h.markers...))
	ex := Exchange{
		Provider:  logical,
		Candidate: c.Name,
		Dialect:   c.Dialect,
		Model:     req.Model,
		Streaming: streaming,
	}
	opts := []pipeline.Option{pipeline.WithLogger(h.logger)}
	for _, fn := range h.onTerm {
		opts = append(opts, pipeline.OnTerminal(func(sc *stream.Context, terminal llm.Chunk) {
			fn(ex, sc, terminal)
		}))
	}

	ct := resp.Header.Get("Content-Type")
	if streaming || isStreamContentType(ct) {
		src := pipeline.SourceFor(ct, resp.Body)
		return pipeline.Process(ctx, src, prov, sc, opts...), nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", c.Name, err)
	}
	parsed, err := prov.ParseResponse(respBody)
	if err != nil {
		return nil, llm.NewError(llm.ErrorKindStreamDecode, logical, fmt.Errorf("parsing %s response: %w", c.Dialect, err))
	}
	return pipeline.FromResponse(sc, parsed, opts...), nil
}

func (h *HTTPInvoker) setHeaders(req *http.Request, c router.Candidate, streaming bool) {
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
		if c.Dialect == provider.Bedrock {
			req.Header.Set("Accept", "application/vnd.amazon.eventstream")
		}
	}
	if c.Dialect == provider.Anthropic {
		req.Header.Set("anthropic-version", anthropic.APIVersion)
	}
	for k, v := range ExpandHeaders(c.Headers, h.lookupEnv) {
		req.Header.Set(k, v)
	}
}

func isStreamContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "text/event-stream") ||
		strings.HasPrefix(ct, "application/x-ndjson") ||
		strings.HasPrefix(ct, "application/vnd.amazon.eventstream")
}
