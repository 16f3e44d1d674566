package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/token"
	"github.com/go-authgate/agentgate/internal/version"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const mcpServerName = "agentgate"

// WhoAmI is the structured result of the whoami tool.
type WhoAmI struct {
	Subject          string    `json:"subject"`
	ClientID         string    `json:"client_id"`
	Scope            string    `json:"scope"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}

// NewMCPHandler returns the streamable HTTP MCP endpoint. It must sit behind
// middleware.BearerAuth, which puts the verified claims and the impersonated
// session into the request context.
func NewMCPHandler() http.Handler {
	mcpServer := server.NewMCPServer(
		mcpServerName,
		version.Get(),
		server.WithToolCapabilities(false),
	)

	mcpServer.AddTool(mcp.NewTool("whoami",
		mcp.WithDescription("Return the user and client this access token acts for"),
	), whoAmITool)

	return server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if claims, ok := token.ClaimsFromContext(r.Context()); ok {
				ctx = token.WithClaims(ctx, claims)
			}
			if session, ok := identity.SessionFromContext(r.Context()); ok {
				ctx = identity.WithSession(ctx, session)
			}
			return ctx
		}),
	)
}

func whoAmITool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	claims, ok := token.ClaimsFromContext(ctx)
	if !ok {
		return nil, errors.New("request is not authenticated")
	}
	session, ok := identity.SessionFromContext(ctx)
	if !ok {
		return nil, errors.New("no identity session for request")
	}

	return mcp.NewToolResultStructuredOnly(WhoAmI{
		Subject:          session.Subject,
		ClientID:         claims.ClientID,
		Scope:            claims.Scope,
		SessionExpiresAt: session.ExpiresAt,
	}), nil
}
