package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallLogger_TagsSessionAndTool(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	callLogger(context.Background(), base).Info("bare")
	require.NotContains(t, buf.String(), "session_id")

	buf.Reset()
	ctx := context.WithValue(context.Background(), sessionIDKey, "s-1")
	ctx = context.WithValue(ctx, toolNameKey, "apply_status_change")
	callLogger(ctx, base).Info("tagged")
	require.Contains(t, buf.String(), "session_id=s-1")
	require.Contains(t, buf.String(), "tool=apply_status_change")
}
