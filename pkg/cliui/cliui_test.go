package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/llm"
)

var _ = Describe("cliui", func() {
	Describe("FormatDuration", func() {
		It("uses milliseconds below a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds with one decimal above", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("Step", func() {
		It("returns the error of fn and prints the message", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "listing models", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("listing models"))
		})
	})

	Describe("FormatUsage", func() {
		It("renders token counts", func() {
			u := &llm.Usage{PromptTokens: 12, CompletionTokens: 40, TotalTokens: 52}
			Expect(cliui.FormatUsage(u)).To(Equal("12 in · 40 out · 52 total"))
		})

		It("is empty for nil usage", func() {
			Expect(cliui.FormatUsage(nil)).To(BeEmpty())
		})
	})

	Describe("RenderChunk", func() {
		It("passes text through", func() {
			Expect(cliui.RenderChunk(llm.TextChunk("s", "hello"))).To(Equal("hello"))
		})

		It("shows only finalized tool calls", func() {
			partial := llm.ToolCallsChunk("s", llm.ToolCall{Name: "search", Arguments: `{"q":`})
			Expect(cliui.RenderChunk(partial)).To(BeEmpty())

			final := llm.ToolCallsChunk("s", llm.ToolCall{Name: "search", Arguments: `{"q":"go"}`, Final: true})
			Expect(cliui.RenderChunk(final)).To(ContainSubstring("search"))
		})

		It("names the error kind", func() {
			e := llm.NewError(llm.ErrorKindQuotaExceeded, "openai", errors.New("slow down"))
			Expect(cliui.RenderChunk(llm.ErrorChunk("s", e))).To(ContainSubstring("quota_exceeded"))
		})
	})
})
