package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/YourPureAI/ai-api-connector/cmd/connector/ask"
	chatcmder "github.com/YourPureAI/ai-api-connector/cmd/connector/chat"
	servecmder "github.com/YourPureAI/ai-api-connector/cmd/connector/serve"
	"github.com/YourPureAI/ai-api-connector/pkg/connector"
)

const rootLongDesc string = `connector is a chat assistant that answers questions using data
fetched through configured API connectors.

The assistant talks to the LLM provider selected in the configuration
service (or a local settings file). When the model asks for external
data, the question is sent to the query service, and the model restates
the returned data in plain language.`

func newRootCmd() *cobra.Command {
	opts := &connector.Options{}

	cmd := &cobra.Command{
		Use:           "connector",
		Short:         "Chat with your API connectors",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		servecmder.NewServeCmd(opts),
		chatcmder.NewChatCmd(opts),
		askcmder.NewAskCmd(opts),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
