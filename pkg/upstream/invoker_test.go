package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
	"github.com/papercomputeco/switchboard/pkg/router"
	"github.com/papercomputeco/switchboard/pkg/upstream"
)

var _ = Describe("HTTPInvoker", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		rec      *recorder
		invoker  *upstream.HTTPInvoker
		env      map[string]string
	)

	BeforeEach(func() {
		rec = &recorder{}
		env = map[string]string{"OPENAI_KEY": "sk-test"}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.record(r)
			handler(w, r)
		}))
		invoker = upstream.NewHTTPInvoker(
			upstream.WithHTTPClient(server.Client()),
			upstream.WithEnv(func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			}),
		)
	})

	AfterEach(func() {
		server.Close()
	})

	candidate := func(dialect string) router.Candidate {
		return router.Candidate{
			Name:     "primary",
			Dialect:  dialect,
			Endpoint: server.URL,
			Headers:  map[string]string{"Authorization": "Bearer ${OPENAI_KEY}"},
		}
	}

	It("streams an SSE answer through the dialect transformer", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, helloStream)
		}

		s, err := invoker.Invoke(context.Background(), "deepseek", candidate("openai"), chatRequest("deepseek-chat", true))
		Expect(err).NotTo(HaveOccurred())

		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(text(chunks)).To(Equal("Hello"))
		Expect(chunks[len(chunks)-1].Kind).To(Equal(llm.ChunkStop))
		Expect(chunks[0].StreamID).NotTo(BeEmpty())
		Expect(s.Context().Provider).To(Equal("deepseek"))

		received, raw := rec.last()
		var body map[string]any
		Expect(json.Unmarshal(raw, &body)).To(Succeed())
		Expect(received.URL.Path).To(Equal("/v1/chat/completions"))
		Expect(received.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
		Expect(received.Header.Get("Accept")).To(Equal("text/event-stream"))
		Expect(body["model"]).To(Equal("deepseek-chat"))
		Expect(body["stream"]).To(BeTrue())
	})

	It("replays a non-streaming answer as the same canonical sequence", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"id": "chatcmpl-1", "model": "gpt-4o",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
			}`)
		}

		s, err := invoker.Invoke(context.Background(), "openai", candidate("openai"), chatRequest("gpt-4o", false))
		Expect(err).NotTo(HaveOccurred())

		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(kinds(chunks)).To(Equal([]llm.ChunkKind{llm.ChunkText, llm.ChunkUsage, llm.ChunkStop}))
		Expect(chunks[2].StopReason).To(Equal(llm.StopReasonStop))
	})

	It("sends the anthropic version header", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
		}

		s, err := invoker.Invoke(context.Background(), "claude", candidate("anthropic"), chatRequest("claude-sonnet-4-5", true))
		Expect(err).NotTo(HaveOccurred())
		_, _ = pipeline.Collect(s)

		received, _ := rec.last()
		Expect(received.URL.Path).To(Equal("/v1/messages"))
		Expect(received.Header.Get("anthropic-version")).To(Equal("2023-06-01"))
	})

	It("returns non-2xx answers as HTTP errors before any chunk", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`)
		}

		_, err := invoker.Invoke(context.Background(), "openai", candidate("openai"), chatRequest("gpt-4o", true))
		var httpErr *llm.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(string(httpErr.Body)).To(ContainSubstring("invalid_api_key"))
	})

	It("rejects unknown dialects", func() {
		_, err := invoker.Invoke(context.Background(), "x", candidate("smoke-signals"), chatRequest("m", true))
		e, ok := llm.AsError(err)
		Expect(ok).To(BeTrue())
		Expect(e.Kind).To(Equal(llm.ErrorKindRequestMalformed))
	})

	It("runs terminal hooks", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, helloStream)
		}
		var (
			terminal []llm.Chunk
			exchange upstream.Exchange
		)
		invoker = upstream.NewHTTPInvoker(
			upstream.WithHTTPClient(server.Client()),
			upstream.WithTerminalHook(func(ex upstream.Exchange, _ *stream.Context, c llm.Chunk) {
				exchange = ex
				terminal = append(terminal, c)
			}),
		)

		s, err := invoker.Invoke(context.Background(), "openai", candidate("openai"), chatRequest("gpt-4o", true))
		Expect(err).NotTo(HaveOccurred())
		_, err = pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(terminal).To(HaveLen(1))
		Expect(terminal[0].StopReason).To(Equal(llm.StopReasonStop))
		Expect(exchange).To(Equal(upstream.Exchange{
			Provider:  "openai",
			Candidate: "primary",
			Dialect:   "openai",
			Model:     "gpt-4o",
			Streaming: true,
		}))
	})
})
