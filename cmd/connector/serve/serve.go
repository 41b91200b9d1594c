package servecmder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YourPureAI/ai-api-connector/pkg/connector"
	"github.com/YourPureAI/ai-api-connector/server"
)

const serveLongDesc string = `Serve chat sessions over HTTP.

Routes:
  POST   /chat/sessions                 start a session
  GET    /chat/sessions/:id             session history
  POST   /chat/sessions/:id/messages    send a message {"content": "..."}
  POST   /chat/sessions/:id/cancel      abandon the active turn
  POST   /chat/sessions/:id/reset       clear the history
  DELETE /chat/sessions/:id             end a session
  GET    /transcripts/...               stored conversations
  *      /mcp                           MCP endpoint with the ask_connectors tool

Examples:
  connector serve
  connector serve --listen :9090 --db ~/.connector/transcripts.db
  connector serve --settings ./settings.toml --local-url http://gpu:11434`

const serveShortDesc string = "Serve chat sessions over HTTP"

type serveCommander struct {
	opts       *connector.Options
	listenAddr string
	grace      time.Duration
	sessionTTL time.Duration
}

func NewServeCmd(opts *connector.Options) *cobra.Command {
	cmder := &serveCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", ":8080", "Address to listen on")
	cmd.Flags().DurationVar(&cmder.grace, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
	cmd.Flags().DurationVar(&cmder.sessionTTL, "session-ttl", 30*time.Minute, "Delete chat sessions idle for this long (0 keeps them until deleted)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	logger, err := c.opts.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("connector server starting",
		zap.String("listen", c.listenAddr),
		zap.String("query_url", c.opts.Config.QueryURL),
		zap.Bool("debug", c.opts.Debug),
	)

	runtime, err := connector.New(c.opts.Config, logger)
	if err != nil {
		return fmt.Errorf("could not build runtime: %w", err)
	}
	defer runtime.Close()

	manager := runtime.NewManager()
	srv := server.New(server.Config{ListenAddr: c.listenAddr}, manager, runtime.Recorder, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		return runtime.Watch(gctx)
	})
	g.Go(func() error {
		return manager.ExpireIdle(gctx, c.sessionTTL/4, c.sessionTTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), c.grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
