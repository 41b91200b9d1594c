package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
)

// markdownStyle picks the glamour style matching the terminal background.
func markdownStyle() string {
	if termenv.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown falls back to the raw text when rendering fails.
func renderMarkdown(r *glamour.TermRenderer, text string) string {
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// provenance describes where an assistant message's data came from, on one
// line no wider than width.
func provenance(call *chat.APICall, width int) string {
	if call == nil {
		return ""
	}

	var line string
	switch {
	case call.Error != "":
		line = fmt.Sprintf("query %q failed: %s", call.Query, call.Error)
	case call.Matched != nil:
		line = fmt.Sprintf("via %s.%s (%s %s) for %q",
			call.Matched.Connector, call.Matched.Operation,
			call.Matched.Method, call.Matched.Path, call.Query)
	default:
		line = fmt.Sprintf("via query %q", call.Query)
	}

	if width > 0 {
		line = ansi.Truncate(line, width, "…")
	}
	return line
}

func roleLabel(m llm.Message, isError bool) string {
	switch {
	case isError:
		return errorLabelStyle.Render("Error")
	case m.Role == llm.RoleUser:
		return userLabelStyle.Render("You")
	default:
		return assistantLabelStyle.Render("Assistant")
	}
}
