package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	mcpServerName = "ai-api-connector"
	mcpVersion    = "0.1.0"
	askToolName   = "ask_connectors"
)

type askInput struct {
	Question string `json:"question" jsonschema:"the question to answer, using connector data when needed"`
}

type askOutput struct {
	Answer    string `json:"answer"`
	Query     string `json:"query,omitempty"`
	Connector string `json:"connector,omitempty"`
	Operation string `json:"operation,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) mcpHandler() http.Handler {
	srv := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: mcpVersion}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        askToolName,
		Description: "Ask the assistant a question. It fetches data through the configured API connectors when the question needs it.",
	}, s.handleAsk)

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, &mcp.StreamableHTTPOptions{
		Stateless:    true,
		JSONResponse: true,
	})
}

// handleAsk runs a single turn in a throwaway session.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in askInput) (*mcp.CallToolResult, askOutput, error) {
	id, session := s.manager.Create(ctx)
	defer func() {
		_ = s.manager.Delete(id)
	}()

	s.logger.Debug("mcp ask", zap.String("question", truncate(in.Question, 100)))

	outcome, err := session.Send(ctx, in.Question)
	out := askOutput{Answer: outcome.Message.Content}
	if err != nil {
		out.Error = err.Error()
		if out.Answer == "" {
			out.Answer = err.Error()
		}
	}
	if call := outcome.APICall; call != nil {
		out.Query = call.Query
		if call.Error != "" {
			out.Error = call.Error
		}
		if call.Matched != nil {
			out.Connector = call.Matched.Connector
			out.Operation = call.Matched.Operation
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Answer}},
		IsError: err != nil,
	}, out, nil
}
