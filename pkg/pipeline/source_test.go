package pipeline_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/bedrock"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
)

func drain(src pipeline.Source) []string {
	var out []string
	for {
		b, err := src.Next(context.Background())
		if err == io.EOF {
			return out
		}
		Expect(err).NotTo(HaveOccurred())
		out = append(out, string(b))
	}
}

func encodeMessages(msgs ...eventstream.Message) *bytes.Buffer {
	buf := &bytes.Buffer{}
	enc := eventstream.NewEncoder()
	for _, m := range msgs {
		Expect(enc.Encode(buf, m)).To(Succeed())
	}
	return buf
}

func eventMessage(eventType string, payload string) eventstream.Message {
	var headers eventstream.Headers
	headers.Set(":message-type", eventstream.StringValue("event"))
	headers.Set(":event-type", eventstream.StringValue(eventType))
	headers.Set(":content-type", eventstream.StringValue("application/json"))
	return eventstream.Message{Headers: headers, Payload: []byte(payload)}
}

func bedrockChunk(event string) eventstream.Message {
	return eventMessage("chunk", `{"bytes":"`+base64.StdEncoding.EncodeToString([]byte(event))+`"}`)
}

var _ = Describe("Sources", func() {
	It("skips SSE events without data", func() {
		src := pipeline.NewSSESource(strings.NewReader(": ping\n\nevent: ping\n\ndata: {\"a\":1}\n\ndata: [DONE]\n\n"))
		Expect(drain(src)).To(Equal([]string{`{"a":1}`, "[DONE]"}))
	})

	It("skips blank NDJSON lines and trims whitespace", func() {
		src := pipeline.NewNDJSONSource(strings.NewReader("{\"a\":1}\r\n\n  {\"b\":2}  \n"))
		Expect(drain(src)).To(Equal([]string{`{"a":1}`, `{"b":2}`}))
	})

	It("replays slices", func() {
		Expect(drain(pipeline.NewSliceSource([]byte("x"), []byte("y")))).To(Equal([]string{"x", "y"}))
	})

	It("honors a canceled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pipeline.NewSliceSource([]byte("x")).Next(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("closes readers that can be closed", func() {
		rc := io.NopCloser(strings.NewReader(""))
		Expect(pipeline.NewNDJSONSource(rc).Close()).To(Succeed())
		Expect(pipeline.NewSSESource(strings.NewReader("")).Close()).To(Succeed())
	})

	Describe("SourceFor", func() {
		It("dispatches on the content type", func() {
			body := "data: {\"a\":1}\n\n"
			Expect(drain(pipeline.SourceFor("text/event-stream; charset=utf-8", strings.NewReader(body)))).To(Equal([]string{`{"a":1}`}))
			Expect(drain(pipeline.SourceFor("application/x-ndjson", strings.NewReader("{\"a\":1}\n")))).To(Equal([]string{`{"a":1}`}))
		})
	})

	Describe("event-stream", func() {
		It("presents events and exceptions as union members", func() {
			var exHeaders eventstream.Headers
			exHeaders.Set(":message-type", eventstream.StringValue("exception"))
			exHeaders.Set(":exception-type", eventstream.StringValue("throttlingException"))

			var errHeaders eventstream.Headers
			errHeaders.Set(":message-type", eventstream.StringValue("error"))
			errHeaders.Set(":error-code", eventstream.StringValue("InternalFailure"))
			errHeaders.Set(":error-message", eventstream.StringValue("try again"))

			buf := encodeMessages(
				eventMessage("chunk", `{"bytes":"e30="}`),
				eventstream.Message{Headers: exHeaders, Payload: []byte(`{"message":"Too many requests"}`)},
				eventstream.Message{Headers: errHeaders},
			)

			got := drain(pipeline.NewEventStreamSource(buf))
			Expect(got).To(HaveLen(3))
			Expect(got[0]).To(MatchJSON(`{"chunk":{"bytes":"e30="}}`))
			Expect(got[1]).To(MatchJSON(`{"throttlingException":{"message":"Too many requests"}}`))
			Expect(got[2]).To(MatchJSON(`{"InternalFailure":{"message":"try again"}}`))
		})

		It("feeds the bedrock dialect end to end", func() {
			buf := encodeMessages(
				bedrockChunk(`{"type":"message_start","message":{"usage":{"input_tokens":4}}}`),
				bedrockChunk(`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
				bedrockChunk(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`),
				bedrockChunk(`{"type":"content_block_stop","index":0}`),
				bedrockChunk(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`),
				bedrockChunk(`{"type":"message_stop"}`),
			)

			s := pipeline.Process(context.Background(),
				pipeline.SourceFor("application/vnd.amazon.eventstream", buf),
				bedrock.New(), stream.New("b1", stream.WithProvider("bedrock")))
			chunks, err := pipeline.Collect(s)
			Expect(err).NotTo(HaveOccurred())

			Expect(kinds(chunks)).To(ContainElements(llm.ChunkText, llm.ChunkStop))
			last := chunks[len(chunks)-1]
			Expect(last.Kind).To(Equal(llm.ChunkStop))
			Expect(last.StopReason).To(Equal(llm.StopReasonStop))
		})

		It("maps exceptions through the bedrock error mapper", func() {
			var headers eventstream.Headers
			headers.Set(":message-type", eventstream.StringValue("exception"))
			headers.Set(":exception-type", eventstream.StringValue("throttlingException"))
			buf := encodeMessages(eventstream.Message{Headers: headers, Payload: []byte(`{"message":"slow down"}`)})

			s := pipeline.Process(context.Background(), pipeline.NewEventStreamSource(buf),
				bedrock.New(), stream.New("b2", stream.WithProvider("bedrock")))
			chunks, err := pipeline.Collect(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Err.Kind).To(Equal(llm.ErrorKindQuotaExceeded))
		})
	})
})
