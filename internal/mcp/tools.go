package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type tools struct {
	svc    Services
	logger *slog.Logger
}

func registerTools(server *sdkmcp.Server, t *tools) {
	// Folders
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "validate_base_path",
		Description: "Check that the project base path exists and is readable, and list missing canonical roots",
	}, t.validateBasePath)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "locate_project",
		Description: "Find the folder of a project by its canonical number across all canonical roots",
	}, t.locateProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_folder",
		Description: "List the project folders directly below one canonical root",
	}, t.listFolder)

	// Status changes
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "preview_status_change",
		Description: "Propose a status change and analyze its folder move and cascades. Writes nothing",
	}, t.previewStatusChange)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "analyze_status_change",
		Description: "Re-read current statuses and re-analyze an unconfirmed operation",
	}, t.analyzeStatusChange)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "confirm_status_change",
		Description: "Confirm an analyzed operation with the default or chosen cascade suggestions",
	}, t.confirmStatusChange)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "apply_status_change",
		Description: "Apply a confirmed operation: move the folder, then write statuses and history. Reports every mutation",
	}, t.applyStatusChange)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cancel_status_change",
		Description: "Cancel an operation that has not started applying",
	}, t.cancelStatusChange)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_status_change",
		Description: "Get the current phase and result of an operation",
	}, t.getStatusChange)

	// Audit
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_reconciliation",
		Description: "Compare project folders with project records and report drift. Never fixes anything",
	}, t.runReconciliation)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_reconciliation_report",
		Description: "Get the most recent reconciliation report without scanning",
	}, t.getReconciliationReport)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_status_history",
		Description: "List status history entries, newest first",
	}, t.listStatusHistory)

	// Records
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create a project record and its folder under the root of its initial status",
	}, t.createProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "next_project_sequence",
		Description: "Return the next free sequence for a year and country",
	}, t.nextProjectSequence)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List project records, optionally filtered by status and year",
	}, t.listProjects)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get a project record with its proposals and current folder",
	}, t.getProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_proposal",
		Description: "Create a fee proposal under an existing project",
	}, t.createProposal)
}

func (t *tools) validateBasePath(_ context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, BasePathOutput, error) {
	base := t.svc.Folders.Base()
	out := BasePathOutput{BasePath: base, Valid: true, MissingRoots: []string{}}
	if err := folder.ValidateBase(base); err != nil {
		out.Valid = false
		out.Error = err.Error()
		return nil, out, nil
	}
	for _, root := range folder.MissingRoots(base, t.svc.Folders.Folders()) {
		out.MissingRoots = append(out.MissingRoots, string(root))
	}
	return nil, out, nil
}

func (t *tools) locateProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in NumberInput) (*sdkmcp.CallToolResult, LocateOutput, error) {
	loc, err := t.svc.Folders.Locate(ctx, in.Number)
	if err != nil {
		return nil, LocateOutput{}, toolError(err)
	}
	return nil, LocateOutput{Location: locationOutput(loc)}, nil
}

func (t *tools) listFolder(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListFolderInput) (*sdkmcp.CallToolResult, ListFolderOutput, error) {
	locs, err := t.svc.Folders.List(ctx, status.Root(in.Root))
	if err != nil {
		return nil, ListFolderOutput{}, toolError(err)
	}
	out := ListFolderOutput{Root: in.Root, Projects: make([]LocationOutput, 0, len(locs))}
	for _, loc := range locs {
		out.Projects = append(out.Projects, locationOutput(loc))
	}
	return nil, out, nil
}

func (t *tools) previewStatusChange(ctx context.Context, _ *sdkmcp.CallToolRequest, in PreviewInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	ref, err := parseRef(in.Kind, in.ID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	to, err := status.Parse(ref.Kind, in.Status)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	op, err := t.svc.Lifecycle.Preview(ctx, ref, to)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	return nil, operationOutput(op), nil
}

func (t *tools) analyzeStatusChange(ctx context.Context, _ *sdkmcp.CallToolRequest, in OperationInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	op, err := t.svc.Lifecycle.Analyze(ctx, in.OperationID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	return nil, operationOutput(op), nil
}

func (t *tools) confirmStatusChange(ctx context.Context, _ *sdkmcp.CallToolRequest, in ConfirmInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	var (
		op  *lifecycle.Operation
		err error
	)
	if in.UseDefaults {
		if len(in.Choices) > 0 {
			return nil, OperationOutput{}, toolError(fmt.Errorf("%w: use_defaults and choices are exclusive", lifecycle.ErrInvalidSelection))
		}
		op, err = t.svc.Lifecycle.ConfirmDefaults(ctx, in.OperationID)
	} else {
		choices := make([]lifecycle.Choice, 0, len(in.Choices))
		for _, c := range in.Choices {
			ref, err := parseRef(c.Kind, c.ID)
			if err != nil {
				return nil, OperationOutput{}, toolError(err)
			}
			to, err := status.Parse(ref.Kind, c.Status)
			if err != nil {
				return nil, OperationOutput{}, toolError(err)
			}
			choices = append(choices, lifecycle.Choice{Target: ref, To: to})
		}
		op, err = t.svc.Lifecycle.Confirm(ctx, in.OperationID, choices)
	}
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	return nil, operationOutput(op), nil
}

func (t *tools) applyStatusChange(ctx context.Context, req *sdkmcp.CallToolRequest, in OperationInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	job, err := t.svc.Lifecycle.Start(ctx, in.OperationID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}

	token := progressToken(req)
	n := 0
	for ev := range job.Events() {
		n++
		if token == nil {
			continue
		}
		msg := string(ev.Step)
		if ev.Ref.ID != "" {
			msg = fmt.Sprintf("%s %s %s", ev.Step, ev.Ref, ev.State)
		}
		if err := req.Session.NotifyProgress(ctx, &sdkmcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(n),
			Message:       msg,
		}); err != nil {
			callLogger(ctx, t.logger).Debug("progress notification failed", "operation", in.OperationID, "error", err)
		}
	}

	outcome, applyErr := job.Wait()
	if outcome == nil {
		return nil, OperationOutput{}, toolError(applyErr)
	}
	op, err := t.svc.Lifecycle.Get(in.OperationID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	if applyErr != nil && !errors.Is(applyErr, lifecycle.ErrStaleStatus) {
		callLogger(ctx, t.logger).Warn("status change applied with problems", "operation", in.OperationID, "result", outcome.Result, "error", applyErr)
	}
	return nil, operationOutput(op), nil
}

func progressToken(req *sdkmcp.CallToolRequest) any {
	if req == nil || req.Session == nil || req.Params == nil {
		return nil
	}
	meta := req.Params.GetMeta()
	if meta == nil {
		return nil
	}
	return meta["progressToken"]
}

func (t *tools) cancelStatusChange(ctx context.Context, _ *sdkmcp.CallToolRequest, in OperationInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	op, err := t.svc.Lifecycle.Cancel(ctx, in.OperationID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	return nil, operationOutput(op), nil
}

func (t *tools) getStatusChange(_ context.Context, _ *sdkmcp.CallToolRequest, in OperationInput) (*sdkmcp.CallToolResult, OperationOutput, error) {
	op, err := t.svc.Lifecycle.Get(in.OperationID)
	if err != nil {
		return nil, OperationOutput{}, toolError(err)
	}
	return nil, operationOutput(op), nil
}

func (t *tools) runReconciliation(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ReportOutput, error) {
	report, err := t.svc.Scans.RunNow(ctx)
	if err != nil {
		return nil, ReportOutput{}, toolError(err)
	}
	return nil, reportOutput(report), nil
}

func (t *tools) getReconciliationReport(_ context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ReportOutput, error) {
	report, err := t.svc.Scans.Last()
	if err != nil {
		return nil, ReportOutput{}, toolError(err)
	}
	return nil, reportOutput(report), nil
}

func (t *tools) listStatusHistory(ctx context.Context, _ *sdkmcp.CallToolRequest, in HistoryInput) (*sdkmcp.CallToolResult, HistoryOutput, error) {
	opts := history.ListOptions{OperationID: in.OperationID, Limit: in.Limit, Offset: in.Offset}
	if in.Kind != "" || in.ID != "" {
		ref, err := parseRef(in.Kind, in.ID)
		if err != nil {
			return nil, HistoryOutput{}, toolError(err)
		}
		opts.Ref = &ref
	}
	entries, err := t.svc.History.List(ctx, opts)
	if err != nil {
		return nil, HistoryOutput{}, toolError(err)
	}
	out := HistoryOutput{Entries: make([]HistoryEntryOutput, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, historyEntryOutput(e))
	}
	return nil, out, nil
}

func (t *tools) createProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateProjectInput) (*sdkmcp.CallToolResult, CreateProjectOutput, error) {
	req := project.CreateRequest{
		Year:      in.Year,
		Country:   in.Country,
		Seq:       in.Seq,
		Name:      in.Name,
		ShortName: in.ShortName,
	}
	if in.Status != "" {
		st, err := status.Parse(status.KindProject, in.Status)
		if err != nil {
			return nil, CreateProjectOutput{}, toolError(err)
		}
		req.Status = st
	}
	res, err := t.svc.Projects.Create(ctx, req)
	if err != nil {
		return nil, CreateProjectOutput{}, toolError(err)
	}
	return nil, CreateProjectOutput{Project: projectOutput(res.Project), Folder: locationOutput(res.Folder)}, nil
}

func (t *tools) nextProjectSequence(ctx context.Context, _ *sdkmcp.CallToolRequest, in SequenceInput) (*sdkmcp.CallToolResult, SequenceOutput, error) {
	seq, err := t.svc.Projects.NextSequence(ctx, in.Year, in.Country)
	if err != nil {
		return nil, SequenceOutput{}, toolError(err)
	}
	n, err := folder.NewNumber(in.Year, in.Country, seq)
	if err != nil {
		return nil, SequenceOutput{}, toolError(err)
	}
	return nil, SequenceOutput{Year: in.Year, Country: in.Country, Seq: seq, Number: n.String()}, nil
}

func (t *tools) listProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListProjectsInput) (*sdkmcp.CallToolResult, ListProjectsOutput, error) {
	opts := project.ListOptions{Limit: in.Limit, Offset: in.Offset}
	for _, raw := range in.Statuses {
		st, err := status.Parse(status.KindProject, raw)
		if err != nil {
			return nil, ListProjectsOutput{}, toolError(err)
		}
		opts.Statuses = append(opts.Statuses, st)
	}
	if in.Year > 0 {
		year := in.Year
		opts.Year = &year
	}
	projects, err := t.svc.Projects.List(ctx, opts)
	if err != nil {
		return nil, ListProjectsOutput{}, toolError(err)
	}
	out := ListProjectsOutput{Projects: make([]ProjectOutput, 0, len(projects))}
	for i := range projects {
		out.Projects = append(out.Projects, projectOutput(&projects[i]))
	}
	return nil, out, nil
}

func (t *tools) getProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in NumberInput) (*sdkmcp.CallToolResult, ProjectDetailOutput, error) {
	p, err := t.svc.Projects.Get(ctx, in.Number)
	if err != nil {
		return nil, ProjectDetailOutput{}, toolError(err)
	}
	proposals, err := t.svc.Proposals.ListByProject(ctx, in.Number)
	if err != nil {
		return nil, ProjectDetailOutput{}, toolError(err)
	}

	out := ProjectDetailOutput{Project: projectOutput(p), Proposals: make([]ProposalOutput, 0, len(proposals))}
	for i := range proposals {
		out.Proposals = append(out.Proposals, proposalOutput(&proposals[i]))
	}
	loc, err := t.svc.Folders.Locate(ctx, in.Number)
	if err != nil {
		out.FolderError = err.Error()
	} else {
		l := locationOutput(loc)
		out.Folder = &l
	}
	return nil, out, nil
}

func (t *tools) createProposal(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateProposalInput) (*sdkmcp.CallToolResult, ProposalOutput, error) {
	req := proposal.CreateRequest{ProjectNumber: in.ProjectNumber, Title: in.Title}
	if in.Status != "" {
		st, err := status.Parse(status.KindProposal, in.Status)
		if err != nil {
			return nil, ProposalOutput{}, toolError(err)
		}
		req.Status = st
	}
	p, err := t.svc.Proposals.Create(ctx, req)
	if err != nil {
		return nil, ProposalOutput{}, toolError(err)
	}
	return nil, proposalOutput(p), nil
}
