// Package upstream invokes router candidates over HTTP and lists the models
// they serve.
package upstream

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/router"
)

// Endpoint derives the request URL for model on candidate c. An endpoint
// that already names the operation is used as is.
func Endpoint(c router.Candidate, model string, streaming bool) (string, error) {
	base := strings.TrimRight(c.Endpoint, "/")
	if base == "" {
		return "", fmt.Errorf("candidate %q has no endpoint", c.Name)
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("candidate %q endpoint: %w", c.Name, err)
	}
	escaped := url.PathEscape(model)

	switch c.Dialect {
	case provider.OpenAI:
		if strings.HasSuffix(base, "/chat/completions") {
			return base, nil
		}
		if strings.HasSuffix(base, "/v1") {
			return base + "/chat/completions", nil
		}
		return base + "/v1/chat/completions", nil

	case provider.Anthropic:
		if strings.HasSuffix(base, "/messages") {
			return base, nil
		}
		if strings.HasSuffix(base, "/v1") {
			return base + "/messages", nil
		}
		return base + "/v1/messages", nil

	case provider.Ollama:
		if strings.HasSuffix(base, "/api/chat") {
			return base, nil
		}
		return base + "/api/chat", nil

	case provider.Gemini:
		if streaming {
			return base + "/v1beta/models/" + escaped + ":streamGenerateContent?alt=sse", nil
		}
		return base + "/v1beta/models/" + escaped + ":generateContent", nil

	case provider.Bedrock:
		if streaming {
			return base + "/model/" + escaped + "/invoke-with-response-stream", nil
		}
		return base + "/model/" + escaped + "/invoke", nil

	case provider.Vertex:
		// base is .../locations/{region}/publishers/anthropic/models
		if streaming {
			return base + "/" + escaped + ":streamRawPredict", nil
		}
		return base + "/" + escaped + ":rawPredict", nil

	default:
		return base, nil
	}
}

// ExpandHeaders resolves ${NAME} references in header values with lookup.
// Unset variables expand to the empty string.
func ExpandHeaders(headers map[string]string, lookup func(string) (string, bool)) map[string]string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = os.Expand(v, func(name string) string {
			val, _ := lookup(name)
			return val
		})
	}
	return out
}
