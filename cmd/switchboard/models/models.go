// Package modelscmder provides the models command, which lists the models a
// logical provider can serve across all of its candidates.
package modelscmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/switchboard/cmd/switchboard/setup"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/router"
	"github.com/papercomputeco/switchboard/pkg/upstream"
)

const modelsLongDesc string = `List the models a logical provider serves.

Every candidate of the provider is asked for its model list (OpenAI and
Anthropic through their SDKs, Ollama via /api/tags, Gemini via
/v1beta/models; other dialects report their configured model names).
The union is printed sorted, one model per line. Candidates that cannot
be reached are skipped; the command never fails because of them.

Examples:
  switchboard models ollama
  switchboard models openai --timeout 10s`

const modelsShortDesc string = "List the models a provider serves"

type modelsCommander struct {
	timeout string
	routes  string
}

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models <provider>",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup.Load(cmd, config.FlagTimeout, config.FlagRoutes)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), env, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagRoutes, &cmder.routes)

	return cmd
}

func (c *modelsCommander) run(ctx context.Context, w io.Writer, env *setup.Env, name string) error {
	if _, ok := env.Resolver.Table()[name]; !ok {
		return fmt.Errorf("%w: %q", router.ErrUnknownProvider, name)
	}

	client, err := env.HTTPClient()
	if err != nil {
		return err
	}
	catalog := upstream.NewCatalog(env.Resolver, client, env.Logger)

	var models []string
	list := func() error {
		models = catalog.Models(ctx, name)
		return nil
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_ = cliui.Step(os.Stderr, "Listing "+name+" models", list)
	} else {
		_ = list()
	}

	if len(models) == 0 {
		fmt.Fprintf(os.Stderr, "  %s\n", cliui.DimStyle.Render("No models reported by "+name))
		return nil
	}
	for _, m := range models {
		fmt.Fprintln(w, m)
	}
	return nil
}
