// Package replaycmder provides the replay command, which runs a captured raw
// provider stream through the canonical pipeline.
package replaycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/setup"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
)

// Output formats
const (
	OutputSSE    = "sse"
	OutputJSON   = "json"
	OutputPretty = "pretty"
)

// Framings of the captured stream
const (
	FramingSSE         = "sse"
	FramingNDJSON      = "ndjson"
	FramingEventStream = "eventstream"
)

const replayLongDesc string = `Replay a captured raw provider stream as canonical chunks.

Reads the response body of a streamed chat request exactly as the provider
sent it (SSE, newline-delimited JSON or AWS event-stream frames) and runs it
through the dialect's transformer. Reasoning markers from config.toml apply.

Output formats:
  sse      canonical chunks as server-sent events (type, id, data)
  json     one canonical chunk per line
  pretty   styled terminal rendering

The framing defaults to the dialect's native one: ndjson for ollama,
eventstream for bedrock, sse otherwise.

Examples:
  switchboard replay capture.sse --dialect openai
  switchboard replay capture.ndjson --dialect ollama --output pretty
  curl -sN ... | switchboard replay - --dialect anthropic --output json`

const replayShortDesc string = "Replay a captured raw stream as canonical chunks"

type replayCommander struct {
	dialect  string
	framing  string
	output   string
	markdown bool
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay <file|->",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Debug = true
			}

			log := setup.NewLogger(cfg)
			defer func() { _ = log.Sync() }()

			in, closeIn, err := openInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), in, cfg.Stream.Markers, log)
		},
	}

	cmd.Flags().StringVar(&cmder.dialect, "dialect", provider.OpenAI, "Dialect of the captured stream ("+strings.Join(provider.SupportedProviders(), ", ")+")")
	cmd.Flags().StringVar(&cmder.framing, "framing", "", "Framing of the captured stream (sse, ndjson, eventstream)")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", OutputSSE, "Output format (sse, json, pretty)")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "With --output pretty, render the answer text as markdown once the stream ends")

	return cmd
}

func openInput(stdin io.Reader, name string) (io.Reader, func(), error) {
	if name == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("opening capture: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// DefaultFraming is the framing a dialect streams with.
func DefaultFraming(dialect string) string {
	switch dialect {
	case provider.Ollama:
		return FramingNDJSON
	case provider.Bedrock:
		return FramingEventStream
	default:
		return FramingSSE
	}
}

func newSource(framing string, r io.Reader) (pipeline.Source, error) {
	switch framing {
	case FramingSSE:
		return pipeline.NewSSESource(r), nil
	case FramingNDJSON:
		return pipeline.NewNDJSONSource(r), nil
	case FramingEventStream:
		return pipeline.NewEventStreamSource(r), nil
	default:
		return nil, fmt.Errorf("unknown framing: %q", framing)
	}
}

func (c *replayCommander) run(ctx context.Context, w io.Writer, in io.Reader, markers []stream.Marker, log *zap.Logger) error {
	prov, err := provider.NewRegistry().Get(c.dialect)
	if err != nil {
		return err
	}

	framing := c.framing
	if framing == "" {
		framing = DefaultFraming(c.dialect)
	}
	src, err := newSource(framing, in)
	if err != nil {
		return err
	}

	opts := []stream.Option{stream.WithProvider(c.dialect)}
	if len(markers) > 0 {
		opts = append(opts, stream.WithMarkers(markers...))
	}
	sc := stream.New(stream.NewStreamID(), opts...)

	s := pipeline.Process(ctx, src, prov, sc, pipeline.WithLogger(log))
	defer s.Close()

	switch c.output {
	case OutputSSE:
		return pipeline.NewFramer(w).Copy(s)
	case OutputJSON:
		return writeJSON(w, s)
	case OutputPretty:
		return c.writePretty(w, s)
	default:
		return fmt.Errorf("unknown output format: %q", c.output)
	}
}

func writeJSON(w io.Writer, s *pipeline.Stream) error {
	enc := json.NewEncoder(w)
	for s.Next() {
		if err := enc.Encode(s.Chunk()); err != nil {
			return fmt.Errorf("encoding chunk: %w", err)
		}
	}
	return s.Err()
}

func (c *replayCommander) writePretty(w io.Writer, s *pipeline.Stream) error {
	var answer strings.Builder
	for s.Next() {
		chunk := s.Chunk()
		if c.markdown && chunk.Kind == llm.ChunkText {
			answer.WriteString(chunk.Text)
			continue
		}
		if c.markdown && chunk.Terminal() && answer.Len() > 0 {
			rendered, err := cliui.RenderMarkdown(answer.String())
			if err != nil {
				return fmt.Errorf("rendering markdown: %w", err)
			}
			fmt.Fprint(w, rendered)
			answer.Reset()
		}
		fmt.Fprint(w, cliui.RenderChunk(chunk))
	}
	return s.Err()
}
