package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
)

// Session is the part of chat.Session the TUI drives.
type Session interface {
	Send(ctx context.Context, input string) (chat.TurnOutcome, error)
	Cancel() bool
	Reset() error
	Visible() []llm.Message
}

type turnMsg struct {
	outcome chat.TurnOutcome
	err     error
}

type entry struct {
	message llm.Message
	apiCall *chat.APICall
	isError bool
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	session Session
	title   string
	style   string

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries []entry
	loading bool
	ready   bool
	err     error

	width  int
	height int
}

// NewModel creates a chat screen for session. title is shown in the header.
func NewModel(session Session, title string) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your connected APIs..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	m := Model{
		session:  session,
		title:    title,
		style:    markdownStyle(),
		textarea: ta,
		spinner:  s,
	}
	m.syncEntries()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		inputHeight := 4
		statusHeight := 1
		vpHeight := m.height - headerHeight - inputHeight - statusHeight
		if vpHeight < 5 {
			vpHeight = 5
		}
		contentWidth := m.width - 2
		if contentWidth < 20 {
			contentWidth = 20
		}

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.renderer = newRenderer(m.style, contentWidth-2)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.loading {
				m.session.Cancel()
				return m, nil
			}
			return m, tea.Quit

		case "enter":
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			switch input {
			case "/exit", "/quit", "exit", "quit":
				return m, tea.Quit
			case "/clear", "/reset":
				m.err = m.session.Reset()
				m.syncEntries()
				m.refresh()
				return m, nil
			}

			m.entries = append(m.entries, entry{message: llm.NewMessage(llm.RoleUser, input)})
			m.loading = true
			m.err = nil
			m.refresh()
			return m, tea.Batch(m.send(input), m.spinner.Tick)
		}

	case turnMsg:
		m.loading = false
		if errors.Is(msg.err, chat.ErrTurnInProgress) || errors.Is(msg.err, chat.ErrEmptyInput) {
			m.err = msg.err
			m.syncEntries()
			m.refresh()
			return m, nil
		}
		m.syncEntries()
		if n := len(m.entries); n > 0 {
			m.entries[n-1].apiCall = msg.outcome.APICall
			m.entries[n-1].isError = msg.outcome.IsError
		}
		m.err = msg.err
		m.refresh()

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) send(input string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		outcome, err := session.Send(context.Background(), input)
		return turnMsg{outcome: outcome, err: err}
	}
}

// syncEntries rebuilds the transcript from the session, keeping provenance
// already attached to earlier messages.
func (m *Model) syncEntries() {
	visible := m.session.Visible()
	entries := make([]entry, len(visible))
	for i, msg := range visible {
		entries[i] = entry{message: msg}
		if i < len(m.entries) && m.entries[i].message.Content == msg.Content && m.entries[i].message.Role == msg.Role {
			entries[i].apiCall = m.entries[i].apiCall
			entries[i].isError = m.entries[i].isError
		}
	}
	m.entries = entries
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m Model) renderEntries() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(roleLabel(e.message, e.isError))
		b.WriteString(hintStyle.Render("  " + e.message.Timestamp.Format("15:04")))
		b.WriteString("\n")
		if e.message.Role == llm.RoleUser {
			b.WriteString(e.message.Content)
		} else {
			b.WriteString(renderMarkdown(m.renderer, e.message.Content))
		}
		if line := provenance(e.apiCall, m.viewport.Width-2); line != "" {
			b.WriteString("\n")
			b.WriteString(provenanceStyle.Render(line))
		}
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	width := m.viewport.Width
	header := headerStyle.Width(width).Render(
		titleStyle.Render("AI API Connector") + hintStyle.Render("  •  "+m.title),
	)

	var input string
	if m.loading {
		input = m.spinner.View() + loadingStyle.Render(" Thinking... (esc to cancel)")
	} else {
		input = m.textarea.View()
	}

	status := hintStyle.Render("enter send • /clear reset • esc quit")
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputPanelStyle.Width(width).Render(input),
		status,
	)
}
