package testutils

import "strings"

// SSEBody frames each payload as one SSE data event.
func SSEBody(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	return b.String()
}

// OpenAIHelloStream is an OpenAI chat completion stream answering "Hello"
// with a usage report of 3 prompt and 2 completion tokens.
var OpenAIHelloStream = SSEBody(
	`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
	`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
	`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	`[DONE]`,
)
