package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/connector"
	"github.com/YourPureAI/ai-api-connector/pkg/logger"
	"github.com/YourPureAI/ai-api-connector/pkg/tui"
)

const chatLongDesc string = `Start an interactive chat session.

On a terminal the chat runs full screen. Type /clear to start over and
press esc to abandon a reply that is taking too long. When stdin is not
a terminal, each input line is sent as one message and replies are
printed as plain text.

Examples:
  connector chat
  connector chat --settings ./settings.yaml --log-file /tmp/connector.log
  printf 'How many open tickets are there?\n' | connector chat`

const chatShortDesc string = "Chat interactively"

type chatCommander struct {
	opts    *connector.Options
	logFile string
	plain   bool
}

func NewChatCmd(opts *connector.Options) *cobra.Command {
	cmder := &chatCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file (logs are discarded otherwise)")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Use line mode even on a terminal")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	log := zap.NewNop()
	if c.logFile != "" {
		fileLogger, closeLog, err := logger.NewFileLogger(c.logFile, c.opts.Debug)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		defer closeLog()
		log = fileLogger
	}

	runtime, err := connector.New(c.opts.Config, log)
	if err != nil {
		return fmt.Errorf("could not build runtime: %w", err)
	}
	defer runtime.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := runtime.Watch(watchCtx); err != nil {
			log.Warn("settings watcher stopped", zap.Error(err))
		}
	}()

	session := runtime.NewSession(ctx)

	if !c.plain && isTerminal(cmd.InOrStdin()) {
		source := c.opts.Config.SettingsFile
		if source == "" {
			source = c.opts.Config.ConfigURL
		}
		program := tea.NewProgram(
			tui.NewModel(session, source),
			tea.WithAltScreen(),
			tea.WithContext(ctx),
		)
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	}

	return lineMode(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// lineMode sends each non-empty input line as a message and prints the reply.
func lineMode(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) error {
	for _, m := range session.Visible() {
		fmt.Fprintf(out, "%s\n\n", m.Content)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/clear", "/reset":
			if err := session.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n\n", session.Visible()[0].Content)
			continue
		}

		outcome, err := session.Send(ctx, input)
		if err != nil && outcome.Message.Content == "" {
			return err
		}
		fmt.Fprintf(out, "%s\n", outcome.Message.Content)
		if call := outcome.APICall; call != nil && call.Matched != nil {
			fmt.Fprintf(out, "  via %s %s (%s %s)\n", call.Matched.Connector, call.Matched.Operation, call.Matched.Method, call.Matched.Path)
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
