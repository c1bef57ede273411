package functional_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ganot/feeflow/internal/config"
	"github.com/ganot/feeflow/internal/mcp"
	"github.com/ganot/feeflow/internal/testserver"
	"github.com/stretchr/testify/require"
)

func TestFunctional_AwardWorkflow(t *testing.T) {
	ts := testserver.New(t)

	created := testserver.CallInto[mcp.CreateProjectOutput](t, ts, "create_project", map[string]any{
		"year": 25, "country": 971, "name": "Marina Tower",
	})
	require.Equal(t, "25-97101", created.Project.Number)
	require.Equal(t, "RFP", created.Project.Status)
	require.Equal(t, "01 RFPs", created.Folder.Root)
	require.DirExists(t, created.Folder.Path)

	next := testserver.CallInto[mcp.SequenceOutput](t, ts, "next_project_sequence", map[string]any{"year": 25, "country": 971})
	require.Equal(t, 2, next.Seq)
	require.Equal(t, "25-97102", next.Number)

	sent := testserver.CallInto[mcp.ProposalOutput](t, ts, "create_proposal", map[string]any{
		"project_number": "25-97101", "title": "Structural design", "status": "Sent",
	})
	require.Equal(t, 1, sent.Revision)
	awarded := testserver.CallInto[mcp.ProposalOutput](t, ts, "create_proposal", map[string]any{
		"project_number": "25-97101", "title": "Site supervision", "status": "Awarded",
	})
	require.Equal(t, 2, awarded.Revision)

	op := testserver.CallInto[mcp.OperationOutput](t, ts, "preview_status_change", map[string]any{
		"kind": "project", "id": "25-97101", "status": "Active",
	})
	require.Equal(t, "analyzed", op.Phase)
	require.NotNil(t, op.Analysis)
	require.True(t, op.Analysis.FolderChangeRequired)
	require.Equal(t, "01 RFPs", op.Analysis.OldFolder)
	require.Equal(t, "11 Current", op.Analysis.NewFolder)
	require.Len(t, op.Analysis.Suggestions, 1)
	require.Equal(t, sent.ID, op.Analysis.Suggestions[0].ID)
	require.Equal(t, "Awarded", op.Analysis.Suggestions[0].To)

	op = testserver.CallInto[mcp.OperationOutput](t, ts, "confirm_status_change", map[string]any{
		"operation_id": op.ID, "use_defaults": true,
	})
	require.Equal(t, "confirmed", op.Phase)
	require.Len(t, op.Confirmed, 1)

	op = testserver.CallInto[mcp.OperationOutput](t, ts, "apply_status_change", map[string]any{"operation_id": op.ID})
	require.Equal(t, "applied", op.Phase)
	require.NotNil(t, op.Outcome)
	require.Equal(t, "applied", op.Outcome.Result)
	require.NotNil(t, op.Outcome.Move)
	require.True(t, op.Outcome.Move.Moved)

	moved := filepath.Join(ts.Base, "11 Current", "25-97101 Marina Tower")
	require.DirExists(t, moved)
	require.NoDirExists(t, created.Folder.Path)
	require.DirExists(t, filepath.Join(moved, "03 Contract"))
	require.FileExists(t, filepath.Join(moved, "04 Deliverables", "Drawings", "README.txt"))

	detail := testserver.CallInto[mcp.ProjectDetailOutput](t, ts, "get_project", map[string]any{"number": "25-97101"})
	require.Equal(t, "Active", detail.Project.Status)
	require.NotNil(t, detail.Folder)
	require.Equal(t, moved, detail.Folder.Path)
	statuses := map[string]string{}
	for _, p := range detail.Proposals {
		statuses[p.ID] = p.Status
	}
	require.Equal(t, map[string]string{sent.ID: "Awarded", awarded.ID: "Awarded"}, statuses)

	hist := testserver.CallInto[mcp.HistoryOutput](t, ts, "list_status_history", map[string]any{"operation_id": op.ID})
	require.Len(t, hist.Entries, 2)
	origins := map[string]string{}
	for _, e := range hist.Entries {
		origins[e.EntityID] = e.Origin
	}
	require.Equal(t, "direct", origins["25-97101"])
	require.Equal(t, "cascade", origins[sent.ID])

	report := testserver.CallInto[mcp.ReportOutput](t, ts, "run_reconciliation", map[string]any{})
	require.True(t, report.Clean, "unexpected findings: %+v", report.Findings)
	require.Equal(t, 1, report.Projects)
	require.Equal(t, 2, report.Proposals)
}

func TestFunctional_ErrorsCarryCodes(t *testing.T) {
	ts := testserver.New(t)

	testserver.CallInto[mcp.CreateProjectOutput](t, ts, "create_project", map[string]any{
		"year": 25, "country": 971, "seq": 5, "name": "Harbour Walk",
	})

	tests := []struct {
		name string
		tool string
		args map[string]any
		code string
	}{
		{"no change", "preview_status_change", map[string]any{"kind": "project", "id": "25-97105", "status": "RFP"}, "NO_CHANGE"},
		{"unknown project", "locate_project", map[string]any{"number": "25-97106"}, "NOT_FOUND"},
		{"malformed number", "locate_project", map[string]any{"number": "25-9"}, "INVALID_INPUT"},
		{"duplicate number", "create_project", map[string]any{"year": 25, "country": 971, "seq": 5, "name": "Again"}, "ALREADY_EXISTS"},
		{"orphan proposal", "create_proposal", map[string]any{"project_number": "25-97199", "title": "Nobody"}, "PARENT_NOT_FOUND"},
		{"unknown operation", "apply_status_change", map[string]any{"operation_id": "missing"}, "OPERATION_NOT_FOUND"},
		{"report before scan", "get_reconciliation_report", map[string]any{}, "NO_REPORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.Call(t, tt.tool, tt.args)
			require.True(t, res.IsError, "expected %s to fail", tt.tool)
			require.Contains(t, testserver.Text(res), tt.code)
		})
	}
}

func TestFunctional_DuplicateFolderFailsApply(t *testing.T) {
	ts := testserver.New(t)

	testserver.CallInto[mcp.CreateProjectOutput](t, ts, "create_project", map[string]any{
		"year": 25, "country": 971, "name": "Marina Tower",
	})
	op := testserver.CallInto[mcp.OperationOutput](t, ts, "preview_status_change", map[string]any{
		"kind": "project", "id": "25-97101", "status": "On Hold",
	})
	testserver.CallInto[mcp.OperationOutput](t, ts, "confirm_status_change", map[string]any{"operation_id": op.ID, "use_defaults": true})

	ts.MakeFolder(t, "99 Completed", "25-97101 Marina Tower (copy)")

	op = testserver.CallInto[mcp.OperationOutput](t, ts, "apply_status_change", map[string]any{"operation_id": op.ID})
	require.Equal(t, "failed", op.Phase)
	require.NotNil(t, op.Outcome)
	require.Contains(t, op.Outcome.Error, "ambiguous")
	require.DirExists(t, filepath.Join(ts.Base, "01 RFPs", "25-97101 Marina Tower"))

	detail := testserver.CallInto[mcp.ProjectDetailOutput](t, ts, "get_project", map[string]any{"number": "25-97101"})
	require.Equal(t, "RFP", detail.Project.Status)
	require.Nil(t, detail.Folder)
	require.NotEmpty(t, detail.FolderError)

	report := testserver.CallInto[mcp.ReportOutput](t, ts, "run_reconciliation", map[string]any{})
	require.False(t, report.Clean)
	require.Equal(t, 1, report.FindingCounts["ambiguous_duplicate"])
}

func TestFunctional_ReconciliationFindsDrift(t *testing.T) {
	ts := testserver.New(t, func(cfg *config.Config) {
		cfg.Scan.Ignore = []string{"**/*Archive*"}
	})

	testserver.CallInto[mcp.CreateProjectOutput](t, ts, "create_project", map[string]any{
		"year": 24, "country": 971, "seq": 3, "name": "Bridge", "status": "Active",
	})
	testserver.CallInto[mcp.CreateProjectOutput](t, ts, "create_project", map[string]any{
		"year": 24, "country": 971, "seq": 4, "name": "Depot",
	})

	// Active project dragged back into the RFP root by hand.
	require.NoError(t, os.Rename(
		filepath.Join(ts.Base, "11 Current", "24-97103 Bridge"),
		filepath.Join(ts.Base, "01 RFPs", "24-97103 Bridge"),
	))
	// Record without a folder.
	require.NoError(t, os.Remove(filepath.Join(ts.Base, "01 RFPs", "24-97104 Depot")))
	// Folder without a record, and one the ignore list hides.
	ts.MakeFolder(t, "00 Inactive", "23-97120 Old Tender")
	ts.MakeFolder(t, "00 Inactive", "23-97121 Archive")

	report := testserver.CallInto[mcp.ReportOutput](t, ts, "run_reconciliation", map[string]any{})
	require.False(t, report.Clean)
	require.Equal(t, 1, report.FindingCounts["status_mismatch"])
	require.Equal(t, 1, report.FindingCounts["missing_on_disk"])
	require.Equal(t, 1, report.FindingCounts["missing_in_store"])
	require.GreaterOrEqual(t, report.Ignored, 1)

	byClass := map[string]mcp.FindingOutput{}
	for _, f := range report.Findings {
		byClass[f.Class] = f
	}
	mismatch := byClass["status_mismatch"]
	require.Equal(t, "24-97103", mismatch.Number)
	require.Equal(t, "11 Current", mismatch.ExpectedRoot)
	require.NotEmpty(t, mismatch.Fixes)
	require.Equal(t, "move_folder", mismatch.Fixes[0].Action)
	require.Equal(t, "24-97104", byClass["missing_on_disk"].Number)
	require.Equal(t, "23-97120", byClass["missing_in_store"].Number)

	// The scan reports and never repairs.
	require.DirExists(t, filepath.Join(ts.Base, "01 RFPs", "24-97103 Bridge"))

	last := testserver.CallInto[mcp.ReportOutput](t, ts, "get_reconciliation_report", map[string]any{})
	require.Equal(t, report.ScannedAt, last.ScannedAt)
	require.Equal(t, report.FindingCounts, last.FindingCounts)
}
