// Package testserver runs a complete engine over a temporary project tree
// and an in-memory database, connected to an MCP client in process.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ganot/feeflow/internal/app"
	"github.com/ganot/feeflow/internal/config"
	"github.com/ganot/feeflow/internal/sqlite"
	"github.com/ganot/feeflow/internal/templates"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// TemplateFolders are created inside the award template source.
var TemplateFolders = []string{"03 Contract", "04 Deliverables/Drawings", "99 Temp"}

type TestServer struct {
	App     *app.App
	Base    string
	Session *sdkmcp.ClientSession
}

// New builds the engine over a fresh base path holding every canonical root
// and the award template folders. mutate may adjust the configuration first.
func New(t *testing.T, mutate ...func(*config.Config)) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.BasePath = t.TempDir()
	cfg.Scan.Interval = 0
	for _, fn := range mutate {
		fn(&cfg)
	}

	folders, err := cfg.FolderMap()
	require.NoError(t, err)
	for _, root := range folders.Roots() {
		require.NoError(t, os.MkdirAll(filepath.Join(cfg.BasePath, string(root)), 0o755))
	}
	for _, name := range TemplateFolders {
		dir := filepath.Join(cfg.TemplateSource(), filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte(name), 0o644))
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine, err := app.New(cfg, db, app.Options{Version: "test", Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := engine.Server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Close()
		cancel()
		_ = db.Close()
	})

	return &TestServer{App: engine, Base: cfg.BasePath, Session: session}
}

// MakeFolder creates a project folder below root and returns its path.
func (ts *TestServer) MakeFolder(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(ts.Base, root, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	return path
}

// TemplateSource returns the award template directory in use.
func (ts *TestServer) TemplateSource() string {
	return filepath.Join(ts.Base, ts.App.Config.Roots.Current, templates.DefaultDirName)
}

// Call invokes a tool and fails the test on transport errors. Tool errors
// come back as results with IsError set.
func (ts *TestServer) Call(t *testing.T, name string, args any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := ts.Session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

// CallInto invokes a tool that must succeed and decodes its structured output.
func CallInto[T any](t *testing.T, ts *TestServer, name string, args any) T {
	t.Helper()
	res := ts.Call(t, name, args)
	require.False(t, res.IsError, "tool %s failed: %s", name, Text(res))
	return Decode[T](t, res.StructuredContent)
}

// Decode converts structured tool content into T.
func Decode[T any](t *testing.T, value any) T {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// Text joins the text content of a result.
func Text(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
