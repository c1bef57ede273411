package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `feeflow keeps project statuses and project folders in step.

Core concepts:
- Project: identified by its canonical number YY-CCCNN (year, dial code, sequence). Its folder lives under exactly one canonical root.
- Canonical roots: status folders directly below the base path. Every project status maps to one root; several statuses can share a root.
- Proposal: a fee proposal belonging to one project. Proposal statuses never move folders.
- Cascade: a suggested follow-up change to related records (e.g. awarding a proposal suggests activating its project).

Changing a status (never write statuses any other way):
1) preview_status_change(kind, id, status): returns an operation with the folder change and cascade suggestions. Nothing is written.
2) confirm_status_change(operation_id, use_defaults | choices): pick which suggestions to apply. Required suggestions are always included; blocked changes cannot be confirmed.
3) apply_status_change(operation_id): moves the folder first, then writes statuses. The result lists every mutation individually.
   - applied_with_warnings means some mutations committed and others did not. Nothing is rolled back; run_reconciliation shows the drift.
4) cancel_status_change is possible until apply starts.

Drift:
- run_reconciliation compares folders with records and reports findings. It never fixes anything.
- Fixes are performed by starting a normal status change (set_status) or by moving the folder through a status change (move_folder).

Docs:
- feeflow://docs/index
- feeflow://docs/statuses
- feeflow://docs/reconciliation
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "feeflow://docs/index",
		Name:        "docs_index",
		Title:       "feeflow docs index",
		Description: "Entry point: what the tools do and which doc to read when.",
		Content: `# feeflow docs

## Read when
- Changing a status: feeflow://docs/statuses
- Investigating a reconciliation finding: feeflow://docs/reconciliation

## Tool groups
- Folders: validate_base_path, locate_project, list_folder
- Records: create_project, next_project_sequence, list_projects, get_project, create_proposal
- Status changes: preview_status_change, analyze_status_change, confirm_status_change, apply_status_change, cancel_status_change, get_status_change
- Audit: run_reconciliation, get_reconciliation_report, list_status_history

## Known limitations
- A folder move and the status write that follows it are not atomic. If the write fails the folder has already moved and the result says so.
- Operations are kept in memory for one hour after their last change.
`,
	},
	{
		URI:         "feeflow://docs/statuses",
		Name:        "docs_statuses",
		Title:       "Statuses and folders",
		Description: "Project and proposal statuses, the default root mapping and the default cascade rules.",
		Content: `# Statuses and folders

## Project statuses and roots
| Status | Root |
|---|---|
| Draft, RFP | 01 RFPs |
| Active | 11 Current |
| Completed | 99 Completed |
| Cancelled, Lost, On Hold | 00 Inactive |

Roots are searched in the order 00 Inactive, 01 RFPs, 11 Current, 99 Completed.
A folder name starts with the project number; the text after the first space is free.

## Proposal statuses
Draft, Prepared, Active, Sent, Under Review, Clarification, Negotiation, Awarded, Lost, Cancelled.

## Default cascade rules
- Project becomes Active: each proposal becomes Awarded (suggested).
- Project becomes Cancelled or Lost: each proposal follows (suggested).
- Project becomes Completed without any awarded proposal: blocked.
- A proposal is Awarded: the project becomes Active (suggested).
- All proposals Lost or Cancelled: the project becomes Lost (suggested).
- All proposals Cancelled: the project becomes Cancelled (suggested).

When more than one rule matches, nothing is pre-selected and the operator chooses.
Moving a project into the active root copies the award template folders into it.
`,
	},
	{
		URI:         "feeflow://docs/reconciliation",
		Name:        "docs_reconciliation",
		Title:       "Reconciliation findings",
		Description: "What each finding class means and how to resolve it.",
		Content: `# Reconciliation findings

- missing_in_store: a project folder has no record. Fix: create_project with the number from the folder name.
- missing_on_disk: a record has no folder under any root. Fix: restore the folder, or change the status.
- status_mismatch: the folder is under a different root than the stored status maps to. Fix: a status change to one of the candidates (set_status) or to the stored status from another status (move_folder).
- ambiguous_duplicate: the number exists under more than one root. The first root in search order is listed as found. Resolve by hand; status changes for this project fail until then.
- orphaned_child: a proposal refers to a project without a record.
- malformed: a folder name starts like a number but is not a canonical number.

Missing canonical roots are listed separately and do not abort the scan.
`,
	},
}

// reportResourceURI serves the latest reconciliation report as JSON.
const reportResourceURI = "feeflow://reconcile/latest"

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

func registerReportResource(server *sdkmcp.Server, scans Reconciler) {
	server.AddResource(&sdkmcp.Resource{
		URI:         reportResourceURI,
		Name:        "reconcile_latest",
		Title:       "Latest reconciliation report",
		Description: "The most recent reconciliation report. Read-only; run_reconciliation refreshes it.",
		MIMEType:    "application/json",
	}, func(_ context.Context, _ *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		report, err := scans.Last()
		if err != nil {
			return nil, toolError(err)
		}
		data, err := json.MarshalIndent(reportOutput(report), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{
				URI:      reportResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	})
}
