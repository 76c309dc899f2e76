package upstream

import (
	"context"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
	"github.com/papercomputeco/switchboard/pkg/router"
)

// Client routes a request to the first candidate of a logical provider that
// accepts it.
type Client struct {
	resolver *router.Resolver
	invoker  Invoker
}

// NewClient creates a Client.
func NewClient(resolver *router.Resolver, invoker Invoker) *Client {
	return &Client{resolver: resolver, invoker: invoker}
}

// Chat opens a chunk stream for req on the logical provider. Candidates are
// tried in priority order while they fail with a recoverable kind before the
// stream starts.
func (c *Client) Chat(ctx context.Context, logical string, req *llm.ChatRequest) (*pipeline.Stream, error) {
	model := ""
	if req != nil {
		model = req.Model
	}
	return router.Execute(ctx, c.resolver, logical, model, func(ctx context.Context, cand router.Candidate) (*pipeline.Stream, error) {
		return c.invoker.Invoke(ctx, logical, cand, req)
	})
}

// Complete runs Chat and collects the whole stream.
func (c *Client) Complete(ctx context.Context, logical string, req *llm.ChatRequest) ([]llm.Chunk, error) {
	s, err := c.Chat(ctx, logical, req)
	if err != nil {
		return nil, err
	}
	return pipeline.Collect(s)
}

// Run runs Chat and dispatches the stream to h.
func (c *Client) Run(ctx context.Context, logical string, req *llm.ChatRequest, h pipeline.Handlers) error {
	s, err := c.Chat(ctx, logical, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if h.OnError != nil {
			if lerr, ok := llm.AsError(err); ok {
				h.OnError(lerr)
			}
		}
		if h.OnComplete != nil {
			h.OnComplete()
		}
		return err
	}
	return pipeline.Run(ctx, s, h)
}
