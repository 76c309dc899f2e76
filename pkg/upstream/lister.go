package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/router"
)

const maxListBody = 8 << 20

// Lister lists the models a single backend serves.
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ListerFor returns the Lister for candidate c. Dialects without a listing
// API fall back to the literal entries of the candidate's allow-list.
func ListerFor(c router.Candidate, client *http.Client, lookup func(string) (string, bool)) Lister {
	if client == nil {
		client = http.DefaultClient
	}
	headers := ExpandHeaders(c.Headers, lookup)
	base := strings.TrimRight(c.Endpoint, "/")

	switch c.Dialect {
	case provider.OpenAI:
		return &OpenAILister{BaseURL: base, Headers: headers, HTTPClient: client}
	case provider.Anthropic:
		return &AnthropicLister{BaseURL: base, Headers: headers, HTTPClient: client}
	case provider.Ollama:
		return &OllamaLister{BaseURL: base, Headers: headers, HTTPClient: client}
	case provider.Gemini:
		return &GeminiLister{BaseURL: base, Headers: headers, HTTPClient: client}
	default:
		return StaticLister(c.Models)
	}
}

// StaticLister lists the literal (non-pattern) entries of an allow-list.
type StaticLister []string

// ListModels implements Lister.
func (s StaticLister) ListModels(context.Context) ([]string, error) {
	out := make([]string, 0, len(s))
	for _, m := range s {
		if !strings.ContainsAny(m, "*?[") {
			out = append(out, m)
		}
	}
	return out, nil
}

// OpenAILister lists models through the OpenAI SDK.
type OpenAILister struct {
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

// ListModels implements Lister.
func (l *OpenAILister) ListModels(ctx context.Context) ([]string, error) {
	base := l.BaseURL
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(base + "/"),
		option.WithMaxRetries(0),
	}
	if l.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(l.HTTPClient))
	}
	for k, v := range l.Headers {
		if strings.EqualFold(k, "Authorization") {
			if key, ok := strings.CutPrefix(v, "Bearer "); ok {
				opts = append(opts, option.WithAPIKey(key))
				continue
			}
		}
		opts = append(opts, option.WithHeader(k, v))
	}

	client := openai.NewClient(opts...)
	pager := client.Models.ListAutoPaging(ctx)

	var models []string
	for pager.Next() {
		models = append(models, pager.Current().ID)
	}
	if err := pager.Err(); err != nil {
		return nil, sdkError(err)
	}
	return models, nil
}

// AnthropicLister lists models through the Anthropic SDK.
type AnthropicLister struct {
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

// ListModels implements Lister.
func (l *AnthropicLister) ListModels(ctx context.Context) ([]string, error) {
	base := strings.TrimSuffix(l.BaseURL, "/v1")

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithBaseURL(base + "/"),
		anthropicoption.WithMaxRetries(0),
	}
	if l.HTTPClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(l.HTTPClient))
	}
	for k, v := range l.Headers {
		if strings.EqualFold(k, "x-api-key") {
			opts = append(opts, anthropicoption.WithAPIKey(v))
			continue
		}
		opts = append(opts, anthropicoption.WithHeader(k, v))
	}

	client := anthropic.NewClient(opts...)
	pager := client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})

	var models []string
	for pager.Next() {
		models = append(models, pager.Current().ID)
	}
	if err := pager.Err(); err != nil {
		return nil, sdkError(err)
	}
	return models, nil
}

// sdkError reduces SDK API errors to the HTTPError the dialect mappers read.
func sdkError(err error) error {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return &llm.HTTPError{StatusCode: oaiErr.StatusCode, Body: []byte(oaiErr.RawJSON())}
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return &llm.HTTPError{StatusCode: antErr.StatusCode, Body: []byte(antErr.RawJSON())}
	}
	return err
}

// OllamaLister lists the locally pulled models of an Ollama server.
type OllamaLister struct {
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

// ListModels implements Lister.
func (l *OllamaLister) ListModels(ctx context.Context) ([]string, error) {
	body, err := getJSON(ctx, l.HTTPClient, l.BaseURL+"/api/tags", l.Headers)
	if err != nil {
		return nil, err
	}

	var models []string
	gjson.GetBytes(body, "models").ForEach(func(_, m gjson.Result) bool {
		name := m.Get("name").String()
		if name == "" {
			name = m.Get("model").String()
		}
		if name != "" {
			models = append(models, name)
		}
		return true
	})
	return models, nil
}

// GeminiLister pages through the Gemini models endpoint.
type GeminiLister struct {
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

// ListModels implements Lister.
func (l *GeminiLister) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	token := ""
	for {
		target := l.BaseURL + "/v1beta/models"
		if token != "" {
			target += "?pageToken=" + url.QueryEscape(token)
		}
		body, err := getJSON(ctx, l.HTTPClient, target, l.Headers)
		if err != nil {
			return nil, err
		}

		gjson.GetBytes(body, "models.#.name").ForEach(func(_, name gjson.Result) bool {
			models = append(models, strings.TrimPrefix(name.String(), "models/"))
			return true
		})

		token = gjson.GetBytes(body, "nextPageToken").String()
		if token == "" {
			return models, nil
		}
	}
}

func getJSON(ctx context.Context, client *http.Client, target string, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from %s", target)
	}
	return body, nil
}
