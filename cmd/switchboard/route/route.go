// Package routecmder provides the route command, which shows how a request
// for a logical provider would be routed.
package routecmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/cmd/switchboard/setup"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/router"
	"github.com/papercomputeco/switchboard/pkg/upstream"
)

const routeLongDesc string = `Show the candidate order for a logical provider.

Prints the backends that would be tried for a request, in priority order,
filtered by the model when one is given. Nothing is sent upstream.
Without arguments every logical provider in the route table is listed.

Examples:
  switchboard route
  switchboard route openai
  switchboard route openai gpt-4o
  switchboard route deepseek --routes routes.toml`

const routeShortDesc string = "Show the candidate order for a provider"

type routeCommander struct {
	routes string
}

func NewRouteCmd() *cobra.Command {
	cmder := &routeCommander{}

	cmd := &cobra.Command{
		Use:   "route [provider] [model]",
		Short: routeShortDesc,
		Long:  routeLongDesc,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup.Load(cmd, config.FlagRoutes)
			if err != nil {
				return err
			}
			defer env.Close()

			return cmder.run(cmd.OutOrStdout(), env, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRoutes, &cmder.routes)

	return cmd
}

func (c *routeCommander) run(w io.Writer, env *setup.Env, args []string) error {
	if len(args) == 0 {
		table := env.Resolver.Table()
		for _, name := range table.Providers() {
			fmt.Fprintf(w, "%s\n", cliui.KeyStyle.Render(name))
			printCandidates(w, table[name], "")
			fmt.Fprintln(w)
		}
		printRecoverable(w, env.Resolver)
		return nil
	}

	name, model := args[0], ""
	if len(args) == 2 {
		model = args[1]
	}

	candidates, err := env.Resolver.Resolve(name, model)
	if err != nil {
		return err
	}

	header := name
	if model != "" {
		header += " " + cliui.DimStyle.Render("("+model+")")
	}
	fmt.Fprintf(w, "%s\n", cliui.KeyStyle.Render(header))
	printCandidates(w, candidates, model)
	fmt.Fprintln(w)
	printRecoverable(w, env.Resolver)
	return nil
}

func printCandidates(w io.Writer, candidates []router.Candidate, model string) {
	if model == "" {
		model = "MODEL"
	}
	for i, cand := range candidates {
		endpoint := cand.Endpoint
		if target, err := upstream.Endpoint(cand, model, true); err == nil {
			endpoint = target
		}

		models := "*"
		if len(cand.Models) > 0 {
			models = strings.Join(cand.Models, ",")
		}

		fmt.Fprintf(w, "  %d. %s %s %s\n     %s\n",
			i+1,
			cliui.NameStyle.Render(cand.Name),
			cliui.DimStyle.Render(fmt.Sprintf("[%s, priority %d]", cand.Dialect, cand.Priority)),
			cliui.DimStyle.Render("models: "+models),
			cliui.ValueStyle.Render(endpoint),
		)
	}
}

func printRecoverable(w io.Writer, r *router.Resolver) {
	kinds := r.RecoverableKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	fmt.Fprintf(w, "%s %s\n", cliui.KeyStyle.Render("Falls back on:"), cliui.DimStyle.Render(strings.Join(names, ", ")))
}
