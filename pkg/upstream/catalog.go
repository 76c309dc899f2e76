package upstream

import (
	"context"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/router"
)

// Catalog answers "which models can this logical provider serve" across all
// of its candidates.
type Catalog struct {
	resolver *router.Resolver
	client   *http.Client
	logger   *zap.Logger

	// ListerFor builds the lister of a candidate. Tests replace it.
	ListerFor func(c router.Candidate) Lister
}

// NewCatalog creates a Catalog over the resolver's current table.
func NewCatalog(resolver *router.Resolver, client *http.Client, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	cat := &Catalog{
		resolver: resolver,
		client:   client,
		logger:   logger,
	}
	cat.ListerFor = func(c router.Candidate) Lister {
		return ListerFor(c, cat.client, nil)
	}
	return cat
}

// Models returns the sorted, de-duplicated models of the logical provider.
// A candidate whose listing fails is logged and contributes nothing, so the
// result is empty rather than an error when every backend is down.
func (c *Catalog) Models(ctx context.Context, logical string) []string {
	candidates := c.resolver.Table()[logical]

	seen := make(map[string]struct{})
	for _, cand := range candidates {
		models, err := c.ListerFor(cand).ListModels(ctx)
		if err != nil {
			c.logger.Warn("listing models failed",
				zap.String("provider", logical),
				zap.String("candidate", cand.Name),
				zap.Error(err),
			)
			continue
		}
		for _, m := range models {
			if m == "" || !cand.Serves(m) {
				continue
			}
			seen[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
