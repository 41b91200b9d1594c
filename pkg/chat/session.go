// Package chat runs the conversation loop: it sends user input to the
// configured provider, watches the reply for a data directive, fetches the
// requested data from the query service, and asks the provider to restate it.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/directive"
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
	"github.com/YourPureAI/ai-api-connector/pkg/query"
	"github.com/YourPureAI/ai-api-connector/pkg/settings"
)

var (
	// ErrTurnInProgress is returned when input arrives while a turn is active.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrEmptyInput is returned for blank user input.
	ErrEmptyInput = errors.New("message is empty")

	// ErrNoProvider is returned when the configured provider has no adapter.
	ErrNoProvider = errors.New("no adapter registered for provider")
)

// APICall records which external query produced an assistant message.
type APICall struct {
	Query   string                 `json:"query"`
	Matched *query.MatchedFunction `json:"matched,omitempty"`
	Data    json.RawMessage        `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// TurnOutcome is the assistant message a turn appended, with provenance.
type TurnOutcome struct {
	Message  llm.Message   `json:"message"`
	APICall  *APICall      `json:"apiCall,omitempty"`
	IsError  bool          `json:"isError,omitempty"`
	Provider provider.Name `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
}

// Recorder persists a conversation after each turn.
type Recorder interface {
	Record(ctx context.Context, name provider.Name, model string, messages []llm.Message) (string, error)
}

// Config wires a Session to its collaborators.
type Config struct {
	Providers  *provider.Registry
	Dispatcher query.Dispatcher
	Settings   settings.Source

	// DispatchKey is passed to the Dispatcher on every query.
	DispatchKey string

	// SystemPrompt and Greeting default to the package constants when empty.
	SystemPrompt string
	Greeting     string

	Recorder Recorder
	Logger   *zap.Logger
}

// Session is one conversation and its turn loop. At most one turn runs at a
// time; Send returns ErrTurnInProgress instead of queueing.
type Session struct {
	providers    *provider.Registry
	dispatcher   query.Dispatcher
	settings     settings.Source
	dispatchKey  string
	systemPrompt string
	recorder     Recorder
	logger       *zap.Logger

	mu           sync.Mutex
	conversation *Conversation
	state        TurnState
	cancel       context.CancelFunc
	last         settings.ProviderConfig
	lastActive   time.Time
}

// NewSession creates a session whose history holds the system prompt and
// the greeting.
func NewSession(cfg Config) *Session {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	greeting := cfg.Greeting
	if greeting == "" {
		greeting = Greeting
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		providers:    cfg.Providers,
		dispatcher:   cfg.Dispatcher,
		settings:     cfg.Settings,
		dispatchKey:  cfg.DispatchKey,
		systemPrompt: systemPrompt,
		recorder:     cfg.Recorder,
		logger:       logger,
		conversation: NewConversation(systemPrompt, greeting),
		lastActive:   time.Now(),
	}
}

// State returns the current turn state.
func (s *Session) State() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// idleSince reports when the session last finished a turn, was reset or was
// created. ok is false while a turn is active.
func (s *Session) idleSince() (t time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.state == Idle
}

// Messages returns a copy of the history, system prompt included.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Messages()
}

// Visible returns a copy of the history without the system prompt.
func (s *Session) Visible() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Visible()
}

// Reset clears the history back to the system prompt and ResetGreeting.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrTurnInProgress
	}
	s.conversation.reset(s.systemPrompt, ResetGreeting)
	s.lastActive = time.Now()
	s.logger.Debug("session reset")
	return nil
}

// Cancel aborts the active turn, if any. The turn still ends with an
// error-flagged assistant message. It reports whether a turn was active.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Send runs one turn for input. Every accepted input appends exactly two
// messages: the user message and one assistant message. The returned outcome
// is valid whenever input was accepted; a non-nil error alongside it means the
// turn ended in an error-flagged message. ErrEmptyInput and ErrTurnInProgress
// are returned with a zero outcome and leave the history untouched.
func (s *Session) Send(ctx context.Context, input string) (TurnOutcome, error) {
	if strings.TrimSpace(input) == "" {
		return TurnOutcome{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return TurnOutcome{}, ErrTurnInProgress
	}
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.state = AwaitingFirstReply
	s.conversation.Append(llm.NewMessage(llm.RoleUser, input))
	history := s.conversation.Messages()
	s.mu.Unlock()

	startTime := time.Now()
	outcome, err := s.run(turnCtx, history)

	s.mu.Lock()
	s.conversation.Append(outcome.Message)
	s.state = Idle
	s.cancel = nil
	s.lastActive = time.Now()
	messages := s.conversation.Messages()
	s.mu.Unlock()

	s.logger.Info("turn completed",
		zap.String("provider", string(outcome.Provider)),
		zap.String("model", outcome.Model),
		zap.Bool("is_error", outcome.IsError),
		zap.Bool("api_call", outcome.APICall != nil),
		zap.Int("message_count", len(messages)),
		zap.Duration("duration", time.Since(startTime)),
	)

	if s.recorder != nil && outcome.Provider != "" {
		if _, rerr := s.recorder.Record(context.WithoutCancel(ctx), outcome.Provider, outcome.Model, messages); rerr != nil {
			s.logger.Warn("failed to record transcript", zap.Error(rerr))
		}
	}

	return outcome, err
}

func (s *Session) run(ctx context.Context, history []llm.Message) (TurnOutcome, error) {
	cfg, p, err := s.resolve(ctx)
	if err != nil {
		return s.failed(cfg, err), err
	}

	reply, err := p.Send(ctx, history, cfg.Model, cfg.Credential)
	if err != nil {
		s.logger.Warn("provider call failed",
			zap.String("provider", string(cfg.Provider)),
			zap.String("model", cfg.Model),
			zap.Error(err),
		)
		return s.failed(cfg, err), err
	}
	s.logger.Debug("received reply",
		zap.String("provider", string(cfg.Provider)),
		zap.String("content_preview", truncate(reply, 100)),
	)

	s.setState(ExtractingDirective)
	d, ok := directive.Extract(reply)
	if !ok {
		return s.reply(cfg, reply, nil), nil
	}

	s.setState(AwaitingDispatch)
	s.logger.Info("dispatching data request", zap.String("query", d.Query))
	result := s.dispatcher.Dispatch(ctx, d.Query, s.dispatchKey)
	if !result.Success {
		call := &APICall{
			Query:   d.Query,
			Matched: result.MatchedFunction,
			Error:   result.Error,
		}
		return s.reply(cfg, dispatchFailure+result.Error, call), nil
	}

	call := &APICall{
		Query:   d.Query,
		Matched: result.MatchedFunction,
		Data:    result.Data,
	}
	data := indentJSON(result.Data)

	s.setState(AwaitingFormattedReply)
	followUp := append(history, llm.NewMessage(llm.RoleUser, fmt.Sprintf(formatInstruction, data)))
	formatted, err := p.Send(ctx, followUp, cfg.Model, cfg.Credential)
	if err != nil {
		s.logger.Warn("formatting call failed, returning raw data",
			zap.String("provider", string(cfg.Provider)),
			zap.Error(err),
		)
		return s.reply(cfg, fallbackPrefix+data, call), nil
	}
	return s.reply(cfg, formatted, call), nil
}

// resolve loads settings and picks the adapter for this turn. Errors are
// returned before any provider call is made.
func (s *Session) resolve(ctx context.Context) (settings.ProviderConfig, provider.Provider, error) {
	if s.settings == nil {
		return settings.ProviderConfig{}, nil, settings.NotLoaded(nil)
	}
	loaded, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load settings", zap.Error(err))
		return settings.ProviderConfig{}, nil, settings.NotLoaded(err)
	}
	cfg, err := loaded.Resolve()
	if err != nil {
		return cfg, nil, err
	}

	var p provider.Provider
	ok := false
	if s.providers != nil {
		p, ok = s.providers.Get(cfg.Provider)
	}
	if !ok {
		return cfg, nil, fmt.Errorf("%w: %s", ErrNoProvider, cfg.Provider)
	}

	s.mu.Lock()
	if s.last.Provider != "" && (s.last.Provider != cfg.Provider || s.last.Model != cfg.Model) {
		s.logger.Info("provider changed mid-session",
			zap.String("from", s.last.String()),
			zap.String("to", cfg.String()),
		)
	}
	s.last = cfg
	s.mu.Unlock()

	return cfg, p, nil
}

func (s *Session) setState(state TurnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) reply(cfg settings.ProviderConfig, content string, call *APICall) TurnOutcome {
	return TurnOutcome{
		Message:  llm.NewMessage(llm.RoleAssistant, content),
		APICall:  call,
		Provider: cfg.Provider,
		Model:    cfg.Model,
	}
}

func (s *Session) failed(cfg settings.ProviderConfig, err error) TurnOutcome {
	out := s.reply(cfg, errorPrefix+err.Error(), nil)
	out.IsError = true
	return out
}

// indentJSON renders raw with two-space indentation. Absent data renders as
// null.
func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
