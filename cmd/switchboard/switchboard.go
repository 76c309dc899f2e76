// Package switchboardcmder
package switchboardcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/switchboard/cmd/switchboard/chat"
	configcmder "github.com/papercomputeco/switchboard/cmd/switchboard/config"
	convertcmder "github.com/papercomputeco/switchboard/cmd/switchboard/convert"
	initcmder "github.com/papercomputeco/switchboard/cmd/switchboard/init"
	modelscmder "github.com/papercomputeco/switchboard/cmd/switchboard/models"
	replaycmder "github.com/papercomputeco/switchboard/cmd/switchboard/replay"
	routecmder "github.com/papercomputeco/switchboard/cmd/switchboard/route"
	versioncmder "github.com/papercomputeco/switchboard/cmd/version"
	"github.com/papercomputeco/switchboard/pkg/config"
)

const switchboardLongDesc string = `Switchboard normalizes LLM chat traffic.

Every provider dialect (OpenAI, Anthropic, Ollama, Gemini, Bedrock, Vertex)
is translated into one canonical stream of text, reasoning, tool call, usage,
stop and error chunks. Logical providers are routed to concrete backends
with fallback on recoverable failures.

Commands:
  switchboard chat <provider>       Chat through the router
  switchboard models <provider>     List the models a provider serves
  switchboard route <provider>      Show the candidate order for a request
  switchboard replay <file>         Normalize a captured raw stream
  switchboard convert               Translate a request between dialects`

const switchboardShortDesc string = "Switchboard - LLM chat traffic normalization"

func NewSwitchboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "switchboard",
		Short:        switchboardShortDesc,
		Long:         switchboardLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	debug := config.Flags[config.FlagDebug]
	cmd.PersistentFlags().BoolP(debug.Name, "d", false, debug.Description)
	jsonLogs := config.Flags[config.FlagJSONLogs]
	cmd.PersistentFlags().Bool(jsonLogs.Name, false, jsonLogs.Description)
	cmd.PersistentFlags().String("config-dir", "", "Override path to .switchboard/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(convertcmder.NewConvertCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(routecmder.NewRouteCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
