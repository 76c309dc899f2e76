// Package chatcmder provides the chat command for interactive LLM chat
// through the switchboard router.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/setup"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/dotdir"
	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
	"github.com/papercomputeco/switchboard/pkg/upstream"
	"github.com/papercomputeco/switchboard/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	provider  string
	model     string
	system    string
	prompt    string
	reset     bool
	noSession bool
	configDir string

	timeout   string
	routes    string
	publisher string
	topic     string
	workers   uint

	in  io.Reader
	out io.Writer

	client   *upstream.Client
	sessions *dotdir.Manager
	logger   *zap.Logger
}

const chatLongDesc string = `Start a chat session with a logical provider.

Messages are routed to the provider's candidates in priority order, falling
back to the next candidate on recoverable failures. Replies stream as
canonical chunks: reasoning is shown dimmed, tool calls once they are
complete, followed by token usage.

The conversation is saved to session.json in the .switchboard/ directory
and resumed by the next "switchboard chat" with the same provider.
Use --reset to start fresh or --no-session to neither read nor write it.

Completed streams are published as events (see "events.*" config keys).

Examples:
  switchboard chat ollama --model qwen3:8b
  switchboard chat openai -m gpt-4o --system "answer in one sentence"
  switchboard chat claude -m claude-sonnet-4-5 --prompt "what is a monad?"`

const chatShortDesc string = "Chat with a provider through the router"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <provider>",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup.Load(cmd,
				config.FlagTimeout,
				config.FlagRoutes,
				config.FlagEventsPublisher,
				config.FlagEventsTopic,
				config.FlagEventsWorkers,
			)
			if err != nil {
				return err
			}
			defer env.Close()

			cmder.provider = args[0]
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context(), env)
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (defaults to the model of the saved session)")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt")
	cmd.Flags().StringVarP(&cmder.prompt, "prompt", "p", "", "Send one message, print the reply and exit")
	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Discard the saved session before starting")
	cmd.Flags().BoolVar(&cmder.noSession, "no-session", false, "Neither resume nor save the session")
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagRoutes, &cmder.routes)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.topic)
	config.AddUintFlag(cmd, config.Flags, config.FlagEventsWorkers, &cmder.workers)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, env *setup.Env) error {
	c.logger = env.Logger
	c.sessions = dotdir.NewManager()

	if _, ok := env.Resolver.Table()[c.provider]; !ok {
		return fmt.Errorf("unknown provider %q (configured: %s)",
			c.provider, strings.Join(env.Resolver.Table().Providers(), ", "))
	}

	pool, err := env.EventPool()
	if err != nil {
		return fmt.Errorf("starting event publisher: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			c.logger.Warn("closing event publisher", zap.Error(err))
		}
	}()

	invoker, err := env.Invoker(upstream.WithTerminalHook(upstream.EventHook(pool)))
	if err != nil {
		return err
	}
	c.client = upstream.NewClient(env.Resolver, invoker)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	env.Watch(ctx)

	history, err := c.resume()
	if err != nil {
		return err
	}
	if c.model == "" {
		return errors.New("no model: pass --model")
	}

	if c.prompt != "" {
		history = append(history, dotdir.SessionMessage{Role: llm.RoleUser, Content: c.prompt})
		reply, err := c.turn(ctx, history)
		fmt.Fprintln(c.out)
		if err != nil {
			return err
		}
		return c.save(append(history, reply))
	}

	return c.repl(ctx, history)
}

// resume returns the saved history for this provider and adopts its model
// when none was given.
func (c *chatCommander) resume() ([]dotdir.SessionMessage, error) {
	if c.noSession {
		return nil, nil
	}
	if c.reset {
		if err := c.sessions.ClearSession(c.configDir); err != nil {
			return nil, fmt.Errorf("clearing session: %w", err)
		}
		return nil, nil
	}

	session, err := c.sessions.LoadSession(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session == nil || session.Provider != c.provider {
		return nil, nil
	}
	if c.model != "" && session.Model != c.model {
		return nil, nil
	}

	c.model = session.Model
	return session.Messages, nil
}

func (c *chatCommander) save(history []dotdir.SessionMessage) error {
	if c.noSession {
		return nil
	}
	err := c.sessions.SaveSession(&dotdir.Session{
		Provider: c.provider,
		Model:    c.model,
		Messages: history,
	}, c.configDir)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (c *chatCommander) repl(ctx context.Context, history []dotdir.SessionMessage) error {
	fmt.Fprintln(c.out)
	if len(history) > 0 {
		last := history[len(history)-1]
		fmt.Fprintf(c.out, "  %s Resuming session %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages, last: %q)", len(history), utils.Truncate(last.Content, 40))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "  %s %s %s\n\n",
		cliui.KeyStyle.Render("Provider:"),
		cliui.NameStyle.Render(c.provider),
		cliui.DimStyle.Render("("+c.model+")"),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /reset clears the history, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/reset":
			history = nil
			if err := c.save(history); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("History cleared."))
			continue
		}

		pending := append(history, dotdir.SessionMessage{Role: llm.RoleUser, Content: input})
		fmt.Fprint(c.out, assistantPrompt)
		reply, err := c.turn(ctx, pending)
		fmt.Fprint(c.out, "\n\n")

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			// The failed message is dropped so it can be retried.
			continue
		}

		history = append(pending, reply)
		if err := c.save(history); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// turn sends the history and streams the reply to the terminal.
func (c *chatCommander) turn(ctx context.Context, history []dotdir.SessionMessage) (dotdir.SessionMessage, error) {
	streaming := true
	req := &llm.ChatRequest{
		Model:    c.model,
		System:   c.system,
		Stream:   &streaming,
		Messages: make([]llm.Message, 0, len(history)),
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, llm.NewTextMessage(msg.Role, msg.Content))
	}

	c.logger.Debug("sending chat request",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("message_count", len(req.Messages)),
	)

	var (
		text      strings.Builder
		reasoning strings.Builder
		usage     *llm.Usage
	)
	err := c.client.Run(ctx, c.provider, req, pipeline.Handlers{
		OnText: func(t string) error {
			text.WriteString(t)
			_, err := io.WriteString(c.out, t)
			return err
		},
		OnReasoning: func(t string) error {
			reasoning.WriteString(t)
			_, err := io.WriteString(c.out, cliui.ReasoningStyle.Render(t))
			return err
		},
		OnToolCall: func(calls []llm.ToolCall) error {
			_, err := io.WriteString(c.out, cliui.RenderChunk(llm.ToolCallsChunk("", calls...)))
			return err
		},
		OnUsage: func(u llm.Usage) error {
			usage = &u
			return nil
		},
		OnError: func(e *llm.Error) {
			fmt.Fprint(c.out, cliui.RenderChunk(llm.ErrorChunk("", e)))
			if e.Exhausted {
				fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("all %d candidates failed", e.Attempts)))
			}
		},
	})
	if err != nil {
		return dotdir.SessionMessage{}, err
	}

	if usage != nil {
		fmt.Fprintf(c.out, "\n  %s", cliui.DimStyle.Render(cliui.FormatUsage(usage)))
	}

	return dotdir.SessionMessage{
		Role:      llm.RoleAssistant,
		Content:   text.String(),
		Reasoning: reasoning.String(),
	}, nil
}
