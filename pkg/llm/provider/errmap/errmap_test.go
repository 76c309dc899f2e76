package errmap_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

var _ = Describe("Map", func() {
	It("is total for nil", func() {
		e := errmap.Map(nil, "p", nil)
		Expect(e.Kind).To(Equal(llm.ErrorKindProviderBusiness))
	})

	It("passes canonical errors through and fills the provider", func() {
		in := &llm.Error{Kind: llm.ErrorKindStreamDecode}
		out := errmap.Map(fmt.Errorf("wrapped: %w", in), "openai", nil)
		Expect(out).To(BeIdenticalTo(in))
		Expect(out.Provider).To(Equal("openai"))
	})

	It("maps context cancellation", func() {
		Expect(errmap.Map(context.Canceled, "p", nil).Kind).To(Equal(llm.ErrorKindCanceled))
	})

	It("treats transport failures as unavailable", func() {
		raw := fmt.Errorf("sending request: %w", &url.Error{
			Op:  "Post",
			URL: "http://127.0.0.1:1",
			Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
		})
		Expect(errmap.Map(raw, "p", nil).Kind).To(Equal(llm.ErrorKindProviderUnavailable))
	})

	DescribeTable("classifies HTTP statuses",
		func(status int, want llm.ErrorKind) {
			e := errmap.Map(&llm.HTTPError{StatusCode: status}, "p", nil)
			Expect(e.Kind).To(Equal(want))
		},
		Entry("401", 401, llm.ErrorKindInvalidCredentials),
		Entry("402", 402, llm.ErrorKindInsufficientQuota),
		Entry("403", 403, llm.ErrorKindPermissionDenied),
		Entry("404", 404, llm.ErrorKindModelNotFound),
		Entry("413", 413, llm.ErrorKindContextWindowExceeded),
		Entry("429", 429, llm.ErrorKindQuotaExceeded),
		Entry("400", 400, llm.ErrorKindRequestMalformed),
		Entry("529", 529, llm.ErrorKindProviderUnavailable),
		Entry("500", 500, llm.ErrorKindProviderUnavailable),
		Entry("418", 418, llm.ErrorKindProviderBusiness),
	)

	It("refines a 400 from the body message", func() {
		body := []byte(`{"error":{"message":"This model's maximum context length is 8192 tokens"}}`)
		e := errmap.Map(&llm.HTTPError{StatusCode: 400, Body: body}, "openai", nil)
		Expect(e.Kind).To(Equal(llm.ErrorKindContextWindowExceeded))
		Expect(e.Message).To(ContainSubstring("maximum context length"))
	})

	It("lets the dialect inspector decide first", func() {
		body := []byte(`{"error":{"code":"insufficient_quota","message":"You exceeded your current quota"}}`)
		e := errmap.Map(&llm.HTTPError{StatusCode: 429, Body: body}, "openai", errmap.CodeInspector("error.code"))
		Expect(e.Kind).To(Equal(llm.ErrorKindInsufficientQuota))
	})

	It("does not let a message override an authentication status", func() {
		body := []byte(`{"error":{"message":"rate limit reached"}}`)
		e := errmap.Map(&llm.HTTPError{StatusCode: 401, Body: body}, "p", nil)
		Expect(e.Kind).To(Equal(llm.ErrorKindInvalidCredentials))
	})

	It("classifies plain errors by their text", func() {
		e := errmap.Map(errors.New("dial tcp: connection refused"), "ollama", nil)
		Expect(e.Kind).To(Equal(llm.ErrorKindProviderUnavailable))
	})

	It("falls back to provider_business", func() {
		e := errmap.Map(errors.New("something odd"), "ollama", nil)
		Expect(e.Kind).To(Equal(llm.ErrorKindProviderBusiness))
		Expect(e.ProviderRaw).To(MatchError("something odd"))
	})
})

var _ = Describe("Message", func() {
	DescribeTable("extracts from common envelopes",
		func(body, want string) {
			Expect(errmap.Message([]byte(body))).To(Equal(want))
		},
		Entry("nested", `{"error":{"message":"a"}}`, "a"),
		Entry("flat error", `{"error":"b"}`, "b"),
		Entry("message", `{"message":"c"}`, "c"),
		Entry("plain text", "d\n", "d"),
	)
})
