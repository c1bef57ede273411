package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	toolNameKey
)

func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

func getToolName(ctx context.Context) string {
	v, _ := ctx.Value(toolNameKey).(string)
	return v
}

// callLogger tags logger with the session and tool of the current call.
func callLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if sid := getSessionID(ctx); sid != "" {
		logger = logger.With("session_id", sid)
	}
	if tool := getToolName(ctx); tool != "" {
		logger = logger.With("tool", tool)
	}
	return logger
}

// callContextMiddleware records the session ID (Mcp-Session-Id header over
// HTTP, session metadata over stdio) and, for tools/call, the tool name.
func callContextMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			sessionID := headerSessionID(req)
			if sessionID == "" {
				sessionID = safeSessionID(req)
			}
			if sessionID != "" {
				ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			}
			if method == "tools/call" {
				if params, ok := safeParams(req).(*sdkmcp.CallToolParamsRaw); ok && params != nil {
					ctx = context.WithValue(ctx, toolNameKey, params.Name)
				}
			}
			return next(ctx, method, req)
		}
	}
}

func headerSessionID(req sdkmcp.Request) string {
	if req == nil {
		return ""
	}
	extra := req.GetExtra()
	if extra == nil || extra.Header == nil {
		return ""
	}
	return extra.Header.Get("Mcp-Session-Id")
}
