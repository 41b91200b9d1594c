package askcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/connector"
	"github.com/YourPureAI/ai-api-connector/pkg/settings"
)

const askLongDesc string = `Ask a single question and print the answer.

Runs one chat turn in a fresh session. The provider and model come
from the configured settings unless --provider or --model is given;
credentials always come from the settings.

Examples:
  connector ask "What is the weather in Prague?"
  connector ask --provider local --model llama3 "List my open invoices"
  connector ask --json "Who is on call today?" | jq .apiCall`

const askShortDesc string = "Ask a single question"

// ErrTurnFailed is returned when the turn ended in an error message.
var ErrTurnFailed = errors.New("turn failed")

type askCommander struct {
	opts     *connector.Options
	provider string
	model    string
	asJSON   bool
}

func NewAskCmd(opts *connector.Options) *cobra.Command {
	cmder := &askCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", "", "Override the configured provider (openai, anthropic, google, local)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Override the configured model")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the full turn outcome as JSON")

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, question string) error {
	// Logs share stdout with the answer, so they are only written on request.
	logger := zap.NewNop()
	if c.opts.Debug {
		debugLogger, err := c.opts.Logger()
		if err != nil {
			return err
		}
		defer debugLogger.Sync()
		logger = debugLogger
	}

	runtime, err := connector.New(c.opts.Config, logger)
	if err != nil {
		return fmt.Errorf("could not build runtime: %w", err)
	}
	defer runtime.Close()

	if c.provider != "" || c.model != "" {
		runtime.Settings = settings.OverrideSource{
			Base:     runtime.Settings,
			Provider: c.provider,
			Model:    c.model,
		}
	}

	outcome, turnErr := runtime.NewSession(ctx).Send(ctx, question)
	if turnErr != nil && outcome.Message.Content == "" {
		return turnErr
	}

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		printOutcome(out, outcome)
	}

	if outcome.IsError {
		return ErrTurnFailed
	}
	return nil
}

func printOutcome(out io.Writer, outcome chat.TurnOutcome) {
	fmt.Fprintln(out, outcome.Message.Content)
	call := outcome.APICall
	if call == nil {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "query:     %s\n", call.Query)
	if call.Matched != nil {
		fmt.Fprintf(out, "connector: %s\n", call.Matched.Connector)
		fmt.Fprintf(out, "operation: %s (%s %s)\n", call.Matched.Operation, call.Matched.Method, call.Matched.Path)
	}
	if call.Error != "" {
		fmt.Fprintf(out, "error:     %s\n", call.Error)
	}
}
