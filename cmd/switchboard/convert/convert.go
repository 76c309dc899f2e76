// Package convertcmder provides the convert command, which translates a chat
// request body from one dialect to another.
package convertcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/pkg/llm/provider"
)

const convertLongDesc string = `Translate a chat request body between dialects.

The request is parsed into the canonical request with the source dialect
(detected from the body when --from is not given) and encoded with the
target dialect. Content the target cannot express is dropped: Ollama keeps
only base64 images, Gemini and Anthropic accept both inline and remote images.

Examples:
  switchboard convert request.json --to anthropic
  switchboard convert --from ollama --to openai < request.json
  switchboard convert request.json --to gemini --model gemini-2.5-flash`

const convertShortDesc string = "Translate a request between dialects"

type convertCommander struct {
	from    string
	to      string
	model   string
	compact bool
}

func NewConvertCmd() *cobra.Command {
	cmder := &convertCommander{}

	cmd := &cobra.Command{
		Use:   "convert [file|-]",
		Short: convertShortDesc,
		Long:  convertLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}

			var (
				data []byte
				err  error
			)
			if name == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(name)
			}
			if err != nil {
				return fmt.Errorf("reading request: %w", err)
			}

			return cmder.run(cmd.OutOrStdout(), cmd.ErrOrStderr(), data)
		},
	}

	dialects := strings.Join(provider.SupportedProviders(), ", ")
	cmd.Flags().StringVar(&cmder.from, "from", "", "Source dialect, detected when empty ("+dialects+")")
	cmd.Flags().StringVar(&cmder.to, "to", "", "Target dialect ("+dialects+")")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Replace the model of the request")
	cmd.Flags().BoolVar(&cmder.compact, "compact", false, "Write the body on one line")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (c *convertCommander) run(w, info io.Writer, data []byte) error {
	reg := provider.NewRegistry()

	target, err := reg.Get(c.to)
	if err != nil {
		return err
	}

	var source provider.Provider
	if c.from == "" {
		source = provider.NewDetector().Detect(data)
		fmt.Fprintf(info, "detected dialect: %s\n", source.Name())
	} else {
		source, err = reg.Get(c.from)
		if err != nil {
			return err
		}
	}

	req, err := source.ParseRequest(data)
	if err != nil {
		return fmt.Errorf("parsing %s request: %w", source.Name(), err)
	}
	if c.model != "" {
		req.Model = c.model
	}

	body, err := target.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", target.Name(), err)
	}

	if !c.compact {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}

	_, err = fmt.Fprintf(w, "%s\n", body)
	return err
}
