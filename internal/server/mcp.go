package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ciphergenix/internal/chat"
)

const mcpVersion = "1.0.0"

type AskParams struct {
	Prompt string `json:"prompt" mcp:"security question to send to CipherGenix"`
}

type mcpTools struct {
	chat *chat.Service
}

func newMCPServer(svc *chat.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ciphergenix",
		Version: mcpVersion,
	}, nil)

	tools := &mcpTools{chat: svc}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_ciphergenix",
		Description: "Asks the CipherGenix security engineer a question. The exchange is recorded in the chat log.",
	}, tools.Ask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat_history",
		Description: "Returns every recorded CipherGenix exchange, oldest first, as JSON.",
	}, tools.History)
	return server
}

func newMCPHandler(svc *chat.Service) http.Handler {
	server := newMCPServer(svc)
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return server })
}

func (t *mcpTools) Ask(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AskParams]) (*mcp.CallToolResultFor[any], error) {
	res := t.chat.Generate(ctx, params.Arguments.Prompt)
	if res.Failed() {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%s (%s: %s)", res.Reply, res.ErrorKind, res.ErrorDetail)},
			},
		}, nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Reply}},
	}, nil
}

func (t *mcpTools) History(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[map[string]interface{}]) (*mcp.CallToolResultFor[any], error) {
	entries, err := t.chat.History()
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		Meta:    map[string]interface{}{"entries": len(entries)},
	}, nil
}
