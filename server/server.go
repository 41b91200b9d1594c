// Package server exposes chat sessions, stored transcripts and an MCP tool
// over HTTP.
package server

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/merkle"
	"github.com/YourPureAI/ai-api-connector/pkg/transcript"
)

// Server is the HTTP front end for chat sessions.
type Server struct {
	config   Config
	manager  *chat.Manager
	recorder *transcript.Recorder
	logger   *zap.Logger
	app      *fiber.App
}

// New creates a Server and registers its routes.
func New(config Config, manager *chat.Manager, recorder *transcript.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Turns can take two provider calls and a dispatch
		ReadTimeout: 5 * time.Minute,
	})

	s := &Server{
		config:   config,
		manager:  manager,
		recorder: recorder,
		logger:   logger,
		app:      app,
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	// Chat sessions
	app.Post("/chat/sessions", s.handleCreateSession)
	app.Get("/chat/sessions/:id", s.handleGetSession)
	app.Delete("/chat/sessions/:id", s.handleDeleteSession)
	app.Post("/chat/sessions/:id/messages", s.handleSendMessage)
	app.Post("/chat/sessions/:id/cancel", s.handleCancel)
	app.Post("/chat/sessions/:id/reset", s.handleReset)

	// Transcript inspection endpoints
	app.Get("/transcripts/stats", s.handleTranscriptStats)
	app.Get("/transcripts/node/:hash", s.handleGetNode)
	app.Get("/transcripts/history", s.handleListHistories)
	app.Get("/transcripts/history/:hash", s.handleGetHistory)

	// MCP
	app.All("/mcp", adaptor.HTTPHandler(s.mcpHandler()))

	return s
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the server on the configured listening address
func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SessionResponse describes a session and its visible history.
type SessionResponse struct {
	ID       string         `json:"id"`
	State    chat.TurnState `json:"state"`
	Messages []llm.Message  `json:"messages"`
}

// SendRequest is the body of POST /chat/sessions/:id/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// SendResponse carries the assistant message a turn produced. Error is set
// when the turn ended in an error-flagged message.
type SendResponse struct {
	Message chat.TurnOutcome `json:"message"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	id, session := s.manager.Create(c.UserContext())
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(id, session))
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	session, err := s.manager.Get(id)
	if err != nil {
		return notFound(c, "session not found")
	}
	return c.JSON(sessionResponse(id, session))
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.manager.Delete(c.Params("id")); err != nil {
		return notFound(c, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSendMessage runs one turn. Every accepted message yields an
// assistant message in the response, including failed turns.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	session, err := s.manager.Get(c.Params("id"))
	if err != nil {
		return notFound(c, "session not found")
	}

	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	s.logger.Debug("received chat message",
		zap.String("session_id", c.Params("id")),
		zap.String("content_preview", truncate(req.Content, 100)),
	)

	outcome, err := session.Send(c.UserContext(), req.Content)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrTurnInProgress):
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	resp := SendResponse{Message: outcome}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	session, err := s.manager.Get(c.Params("id"))
	if err != nil {
		return notFound(c, "session not found")
	}
	return c.JSON(map[string]bool{"cancelled": session.Cancel()})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	id := c.Params("id")
	session, err := s.manager.Get(id)
	if err != nil {
		return notFound(c, "session not found")
	}
	if err := session.Reset(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(sessionResponse(id, session))
}

// handleTranscriptStats returns statistics about the transcript store.
func (s *Server) handleTranscriptStats(c *fiber.Ctx) error {
	stats, err := s.recorder.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to compute stats"})
	}
	return c.JSON(stats)
}

// handleGetNode returns a single node by its hash.
func (s *Server) handleGetNode(c *fiber.Ctx) error {
	node, err := s.recorder.Node(c.UserContext(), c.Params("hash"))
	if errors.Is(err, transcript.ErrCorruptNode) {
		s.logger.Error("corrupt transcript node", zap.String("hash", c.Params("hash")))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return notFound(c, "node not found")
	}
	return c.JSON(node)
}

// HistoryResponse contains the conversation history for a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage represents a message in the conversation history.
type HistoryMessage struct {
	Hash       string  `json:"hash"`
	ParentHash *string `json:"parent_hash,omitempty"`
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Provider   string  `json:"provider,omitempty"`
	Model      string  `json:"model,omitempty"`
}

// handleListHistories returns every stored conversation (one per leaf node).
func (s *Server) handleListHistories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	leaves, err := s.recorder.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := s.buildHistory(ctx, leaf.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the full conversation leading up to a given node,
// oldest first.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	history, err := s.buildHistory(c.UserContext(), c.Params("hash"))
	if err != nil {
		return notFound(c, "node not found")
	}
	return c.JSON(history)
}

func (s *Server) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	nodes, err := s.recorder.History(ctx, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, len(nodes))
	for i, node := range nodes {
		messages[i] = historyMessage(node)
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}

func historyMessage(node *merkle.Node) HistoryMessage {
	return HistoryMessage{
		Hash:       node.Hash,
		ParentHash: node.ParentHash,
		Role:       node.Bucket.Role,
		Content:    node.Bucket.Content,
		Provider:   node.Bucket.Provider,
		Model:      node.Bucket.Model,
	}
}

func sessionResponse(id string, session *chat.Session) SessionResponse {
	return SessionResponse{
		ID:       id,
		State:    session.State(),
		Messages: session.Visible(),
	}
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: msg})
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
