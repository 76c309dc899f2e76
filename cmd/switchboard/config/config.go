// Package configcmder provides the config command for managing persistent
// switchboard configuration stored in the .switchboard/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent switchboard configuration.

Configuration is stored as config.toml in the .switchboard/ directory and
provides default values for command flags. CLI flags and SWITCHBOARD_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  log.debug, log.json,
  upstream.timeout, upstream.routes_file,
  router.recoverable,
  events.publisher, events.brokers, events.topic,
  events.workers, events.queue_size

Route tables ([router.providers]) are edited in config.toml or in the
routes file directly.

Use subcommands to get, set, or list configuration values:
  switchboard config set <key> <value>    Set a configuration value
  switchboard config get <key>            Get a configuration value
  switchboard config list                 List all configuration values

Examples:
  switchboard config set upstream.timeout 90s
  switchboard config set router.recoverable invalid_credentials,model_not_found
  switchboard config get events.publisher
  switchboard config list`

const configShortDesc string = "Manage persistent switchboard configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
