package integration_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ganot/feeflow/internal/app"
	"github.com/ganot/feeflow/internal/config"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	base string
	app  *app.App
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
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
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.TemplateSource(), "03 Contract"), 0o755))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	a, err := app.New(cfg, db, app.Options{})
	require.NoError(t, err)
	return &testEnv{base: cfg.BasePath, app: a}
}

func (e *testEnv) change(t *testing.T, ref status.Ref, to status.Status) *lifecycle.Outcome {
	t.Helper()
	ctx := context.Background()
	op, err := e.app.Coordinator.Preview(ctx, ref, to)
	require.NoError(t, err)
	_, err = e.app.Coordinator.ConfirmDefaults(ctx, op.ID)
	require.NoError(t, err)
	out, err := e.app.Coordinator.Apply(ctx, op.ID)
	require.NoError(t, err)
	return out
}

func TestIntegration_ApplyThenScanIsClean(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.app.Projects.Create(ctx, project.CreateRequest{Year: 25, Country: 971, Name: "Marina Tower"})
	require.NoError(t, err)
	p, err := env.app.Proposals.Create(ctx, proposal.CreateRequest{ProjectNumber: created.Project.Number, Title: "Design", Status: status.Sent})
	require.NoError(t, err)

	report, err := env.app.Schedule.RunNow(ctx)
	require.NoError(t, err)
	require.True(t, report.Clean())

	out := env.change(t, created.Project.Ref(), status.Active)
	require.Equal(t, lifecycle.ResultApplied, out.Result)
	require.NotNil(t, out.Move)
	require.Equal(t, []string{"03 Contract"}, out.Move.Provisioned)

	require.DirExists(t, filepath.Join(env.base, "11 Current", "25-97101 Marina Tower", "03 Contract"))

	got, err := env.app.Proposals.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, status.Awarded, got.Status)

	entries, err := env.app.History.List(ctx, history.ListOptions{Ref: &status.Ref{Kind: status.KindProposal, ID: p.ID}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, history.OriginCascade, entries[0].Origin)
	require.Equal(t, status.Sent, entries[0].Old)

	report, err = env.app.Schedule.RunNow(ctx)
	require.NoError(t, err)
	require.True(t, report.Clean(), "findings: %+v", report.Findings())
	require.Equal(t, 1, report.Counts.Projects)
	require.Equal(t, 1, report.Counts.Proposals)
}

func TestIntegration_ProposalLossMovesProjectFolder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.app.Projects.Create(ctx, project.CreateRequest{Year: 25, Country: 971, Seq: 2, Name: "Harbour"})
	require.NoError(t, err)
	a, err := env.app.Proposals.Create(ctx, proposal.CreateRequest{ProjectNumber: created.Project.Number, Title: "A", Status: status.Sent})
	require.NoError(t, err)
	_, err = env.app.Proposals.Create(ctx, proposal.CreateRequest{ProjectNumber: created.Project.Number, Title: "B", Status: status.Lost})
	require.NoError(t, err)

	out := env.change(t, a.Ref(), status.Lost)
	require.Equal(t, lifecycle.ResultApplied, out.Result)

	proj, err := env.app.Projects.Get(ctx, created.Project.Number)
	require.NoError(t, err)
	require.Equal(t, status.Lost, proj.Status)
	require.DirExists(t, filepath.Join(env.base, "00 Inactive", "25-97102 Harbour"))
	require.NoDirExists(t, created.Folder.Path)

	report, err := env.app.Schedule.RunNow(ctx)
	require.NoError(t, err)
	require.True(t, report.Clean(), "findings: %+v", report.Findings())
}

func TestIntegration_HandMovedFolderIsReported(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.app.Projects.Create(ctx, project.CreateRequest{Year: 25, Country: 971, Seq: 3, Name: "Pier", Status: status.Active})
	require.NoError(t, err)
	require.NoError(t, os.Rename(created.Folder.Path, filepath.Join(env.base, "99 Completed", "25-97103 Pier")))

	report, err := env.app.Schedule.RunNow(ctx)
	require.NoError(t, err)
	require.Len(t, report.StatusMismatch, 1)
	f := report.StatusMismatch[0]
	require.Equal(t, "25-97103", f.Number)
	require.Equal(t, status.Active, f.RecordStatus)
	require.Equal(t, status.Root("11 Current"), f.ExpectedRoot)
	require.Equal(t, []status.Status{status.Completed}, f.Candidates)

	last, err := env.app.Schedule.Last()
	require.NoError(t, err)
	require.Equal(t, report.ScannedAt, last.ScannedAt)
}

func TestIntegration_WatcherTriggersScan(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Scan.Watch = true
		cfg.Scan.Debounce = 50 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.app.RunBackground(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the roots.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Mkdir(filepath.Join(env.base, "01 RFPs", "25-97140 Stray"), 0o755))

	require.Eventually(t, func() bool {
		report, err := env.app.Schedule.Last()
		if err != nil {
			return false
		}
		return report.Trigger == reconcile.TriggerWatch && len(report.MissingInStore) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
