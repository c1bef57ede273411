package mcp

import (
	"time"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/domain/status"
)

// Tool inputs. Optional fields carry omitempty so the inferred schema does
// not require them.

type EmptyInput struct{}

type NumberInput struct {
	Number string `json:"number" jsonschema:"canonical project number, e.g. 25-97101"`
}

type ListFolderInput struct {
	Root string `json:"root" jsonschema:"canonical root name, e.g. 01 RFPs"`
}

type PreviewInput struct {
	Kind   string `json:"kind" jsonschema:"project or proposal"`
	ID     string `json:"id" jsonschema:"project number or proposal id"`
	Status string `json:"status" jsonschema:"requested status"`
}

type OperationInput struct {
	OperationID string `json:"operation_id" jsonschema:"operation id returned by preview_status_change"`
}

type ChoiceInput struct {
	Kind   string `json:"kind" jsonschema:"project or proposal"`
	ID     string `json:"id" jsonschema:"target number or id"`
	Status string `json:"status" jsonschema:"suggested status to accept"`
}

type ConfirmInput struct {
	OperationID string        `json:"operation_id" jsonschema:"operation id"`
	UseDefaults bool          `json:"use_defaults,omitempty" jsonschema:"accept the pre-selected suggestions"`
	Choices     []ChoiceInput `json:"choices,omitempty" jsonschema:"suggestions to accept when use_defaults is false"`
}

type HistoryInput struct {
	Kind        string `json:"kind,omitempty" jsonschema:"filter by kind (requires id)"`
	ID          string `json:"id,omitempty" jsonschema:"filter by project number or proposal id"`
	OperationID string `json:"operation_id,omitempty" jsonschema:"filter by operation"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of entries"`
	Offset      int    `json:"offset,omitempty" jsonschema:"entries to skip"`
}

type CreateProjectInput struct {
	Year      int    `json:"year" jsonschema:"two-digit year"`
	Country   int    `json:"country" jsonschema:"international dial code"`
	Seq       int    `json:"seq,omitempty" jsonschema:"sequence; omit to allocate the next free one"`
	Name      string `json:"name" jsonschema:"project name"`
	ShortName string `json:"short_name,omitempty" jsonschema:"folder suffix after the number"`
	Status    string `json:"status,omitempty" jsonschema:"initial status (default RFP)"`
}

type SequenceInput struct {
	Year    int `json:"year" jsonschema:"two-digit year"`
	Country int `json:"country" jsonschema:"international dial code"`
}

type ListProjectsInput struct {
	Statuses []string `json:"statuses,omitempty" jsonschema:"filter by status"`
	Year     int      `json:"year,omitempty" jsonschema:"filter by two-digit year"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of projects"`
	Offset   int      `json:"offset,omitempty" jsonschema:"projects to skip"`
}

type CreateProposalInput struct {
	ProjectNumber string `json:"project_number" jsonschema:"parent project number"`
	Title         string `json:"title" jsonschema:"proposal title"`
	Status        string `json:"status,omitempty" jsonschema:"initial status (default Draft)"`
}

// Tool outputs. Timestamps are RFC 3339 strings.

type BasePathOutput struct {
	BasePath     string   `json:"base_path"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	MissingRoots []string `json:"missing_roots"`
}

type LocationOutput struct {
	Number string `json:"number,omitempty"`
	Root   string `json:"root"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

type LocateOutput struct {
	Location LocationOutput `json:"location"`
}

type ListFolderOutput struct {
	Root     string           `json:"root"`
	Projects []LocationOutput `json:"projects"`
}

type SuggestionOutput struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Selected bool   `json:"selected"`
	Required bool   `json:"required"`
	RuleID   string `json:"rule_id"`
	Reason   string `json:"reason,omitempty"`
}

type BlockOutput struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

type AnalysisOutput struct {
	FolderChangeRequired bool               `json:"folder_change_required"`
	OldFolder            string             `json:"old_folder,omitempty"`
	NewFolder            string             `json:"new_folder,omitempty"`
	Suggestions          []SuggestionOutput `json:"suggestions"`
	Blocks               []BlockOutput      `json:"blocks"`
	MatchedRules         []string           `json:"matched_rules"`
}

type MutationOutput struct {
	Step  string `json:"step"`
	Kind  string `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Path  string `json:"path,omitempty"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type MoveOutput struct {
	OldPath        string   `json:"old_path"`
	NewPath        string   `json:"new_path"`
	To             string   `json:"to"`
	Moved          bool     `json:"moved"`
	Provisioned    []string `json:"provisioned"`
	ProvisionError string   `json:"provision_error,omitempty"`
}

type OutcomeOutput struct {
	Result     string           `json:"result"`
	Mutations  []MutationOutput `json:"mutations"`
	Move       *MoveOutput      `json:"move,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at"`
}

type OperationOutput struct {
	ID            string             `json:"id"`
	Kind          string             `json:"kind"`
	EntityID      string             `json:"entity_id"`
	ProjectNumber string             `json:"project_number,omitempty"`
	From          string             `json:"from,omitempty"`
	To            string             `json:"to"`
	Phase         string             `json:"phase"`
	Analysis      *AnalysisOutput    `json:"analysis,omitempty"`
	Confirmed     []SuggestionOutput `json:"confirmed"`
	Outcome       *OutcomeOutput     `json:"outcome,omitempty"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

type FixOutput struct {
	Action string `json:"action"`
	Root   string `json:"root,omitempty"`
	Status string `json:"status,omitempty"`
}

type FindingOutput struct {
	Class        string           `json:"class"`
	Number       string           `json:"number,omitempty"`
	ProposalID   string           `json:"proposal_id,omitempty"`
	Found        *LocationOutput  `json:"found,omitempty"`
	Duplicates   []LocationOutput `json:"duplicates"`
	RecordStatus string           `json:"record_status,omitempty"`
	ExpectedRoot string           `json:"expected_root,omitempty"`
	Candidates   []string         `json:"candidates"`
	Fixes        []FixOutput      `json:"fixes"`
	Detail       string           `json:"detail"`
}

type ReportOutput struct {
	ScannedAt     string          `json:"scanned_at"`
	DurationMS    int64           `json:"duration_ms"`
	Trigger       string          `json:"trigger"`
	Clean         bool            `json:"clean"`
	Folders       int             `json:"folders"`
	Projects      int             `json:"projects"`
	Proposals     int             `json:"proposals"`
	Ignored       int             `json:"ignored"`
	FindingCounts map[string]int  `json:"finding_counts"`
	MissingRoots  []string        `json:"missing_roots"`
	Findings      []FindingOutput `json:"findings"`
}

type HistoryEntryOutput struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	EntityID      string `json:"entity_id"`
	Old           string `json:"old"`
	New           string `json:"new"`
	Origin        string `json:"origin"`
	TriggeredKind string `json:"triggered_kind,omitempty"`
	TriggeredID   string `json:"triggered_id,omitempty"`
	OperationID   string `json:"operation_id"`
	CreatedAt     string `json:"created_at"`
}

type HistoryOutput struct {
	Entries []HistoryEntryOutput `json:"entries"`
}

type ProjectOutput struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProposalOutput struct {
	ID            string `json:"id"`
	ProjectNumber string `json:"project_number"`
	Title         string `json:"title"`
	Revision      int    `json:"revision"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type CreateProjectOutput struct {
	Project ProjectOutput  `json:"project"`
	Folder  LocationOutput `json:"folder"`
}

type SequenceOutput struct {
	Year    int    `json:"year"`
	Country int    `json:"country"`
	Seq     int    `json:"seq"`
	Number  string `json:"number"`
}

type ListProjectsOutput struct {
	Projects []ProjectOutput `json:"projects"`
}

type ProjectDetailOutput struct {
	Project   ProjectOutput    `json:"project"`
	Proposals []ProposalOutput `json:"proposals"`
	Folder    *LocationOutput  `json:"folder,omitempty"`
	// FolderError explains why Folder is missing.
	FolderError string `json:"folder_error,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func locationOutput(loc folder.Location) LocationOutput {
	return LocationOutput{Number: loc.Number, Root: string(loc.Root), Name: loc.Name, Path: loc.Path}
}

func suggestionOutputs(in []impact.Suggestion) []SuggestionOutput {
	out := make([]SuggestionOutput, 0, len(in))
	for _, s := range in {
		out = append(out, SuggestionOutput{
			Kind:     string(s.Target.Kind),
			ID:       s.Target.ID,
			From:     string(s.From),
			To:       string(s.To),
			Selected: s.Selected,
			Required: s.Required,
			RuleID:   s.RuleID,
			Reason:   s.Reason,
		})
	}
	return out
}

func analysisOutput(res *impact.Result) *AnalysisOutput {
	if res == nil {
		return nil
	}
	out := &AnalysisOutput{
		FolderChangeRequired: res.FolderChangeRequired,
		OldFolder:            string(res.OldFolder),
		NewFolder:            string(res.NewFolder),
		Suggestions:          suggestionOutputs(res.Suggestions),
		Blocks:               make([]BlockOutput, 0, len(res.Blocks)),
		MatchedRules:         append([]string{}, res.MatchedRules...),
	}
	for _, b := range res.Blocks {
		out.Blocks = append(out.Blocks, BlockOutput{RuleID: b.RuleID, Reason: b.Reason})
	}
	return out
}

func outcomeOutput(o *lifecycle.Outcome) *OutcomeOutput {
	if o == nil {
		return nil
	}
	out := &OutcomeOutput{
		Result:     string(o.Result),
		Mutations:  make([]MutationOutput, 0, len(o.Mutations)),
		Error:      o.Error,
		StartedAt:  formatTime(o.StartedAt),
		FinishedAt: formatTime(o.FinishedAt),
	}
	for _, m := range o.Mutations {
		out.Mutations = append(out.Mutations, MutationOutput{
			Step:  string(m.Step),
			Kind:  string(m.Ref.Kind),
			ID:    m.Ref.ID,
			From:  string(m.From),
			To:    string(m.To),
			Path:  m.Path,
			State: string(m.State),
			Error: m.Error,
		})
	}
	if o.Move != nil {
		out.Move = &MoveOutput{
			OldPath:        o.Move.OldPath,
			NewPath:        o.Move.NewPath,
			To:             string(o.Move.To),
			Moved:          o.Move.Moved,
			Provisioned:    append([]string{}, o.Move.Provisioned...),
			ProvisionError: o.Move.ProvisionErr,
		}
	}
	return out
}

func operationOutput(op *lifecycle.Operation) OperationOutput {
	return OperationOutput{
		ID:            op.ID,
		Kind:          string(op.Primary.Kind),
		EntityID:      op.Primary.ID,
		ProjectNumber: op.ProjectNumber,
		From:          string(op.From),
		To:            string(op.To),
		Phase:         string(op.Phase),
		Analysis:      analysisOutput(op.Analysis),
		Confirmed:     suggestionOutputs(op.Confirmed),
		Outcome:       outcomeOutput(op.Outcome),
		CreatedAt:     formatTime(op.CreatedAt),
		UpdatedAt:     formatTime(op.UpdatedAt),
	}
}

func reportLocation(loc reconcile.Location) LocationOutput {
	return LocationOutput{Root: string(loc.Root), Name: loc.Name, Path: loc.Path}
}

func reportOutput(r reconcile.Report) ReportOutput {
	out := ReportOutput{
		ScannedAt:     formatTime(r.ScannedAt),
		DurationMS:    r.Duration.Milliseconds(),
		Trigger:       string(r.Trigger),
		Clean:         r.Clean(),
		Folders:       r.Counts.Folders,
		Projects:      r.Counts.Projects,
		Proposals:     r.Counts.Proposals,
		Ignored:       r.Counts.Ignored,
		FindingCounts: make(map[string]int, len(reconcile.Classes())),
		MissingRoots:  make([]string, 0, len(r.MissingRoots)),
		Findings:      []FindingOutput{},
	}
	for _, c := range reconcile.Classes() {
		out.FindingCounts[string(c)] = r.Counts.Findings[c]
	}
	for _, root := range r.MissingRoots {
		out.MissingRoots = append(out.MissingRoots, string(root))
	}
	for _, f := range r.Findings() {
		fo := FindingOutput{
			Class:        string(f.Class),
			Number:       f.Number,
			ProposalID:   f.ProposalID,
			Duplicates:   make([]LocationOutput, 0, len(f.Duplicates)),
			RecordStatus: string(f.RecordStatus),
			ExpectedRoot: string(f.ExpectedRoot),
			Candidates:   make([]string, 0, len(f.Candidates)),
			Fixes:        make([]FixOutput, 0, len(f.Fixes)),
			Detail:       f.Detail,
		}
		if f.Found != nil {
			loc := reportLocation(*f.Found)
			fo.Found = &loc
		}
		for _, d := range f.Duplicates {
			fo.Duplicates = append(fo.Duplicates, reportLocation(d))
		}
		for _, c := range f.Candidates {
			fo.Candidates = append(fo.Candidates, string(c))
		}
		for _, fix := range f.Fixes {
			fo.Fixes = append(fo.Fixes, FixOutput{Action: string(fix.Action), Root: string(fix.Root), Status: string(fix.Status)})
		}
		out.Findings = append(out.Findings, fo)
	}
	return out
}

func historyEntryOutput(e history.Entry) HistoryEntryOutput {
	out := HistoryEntryOutput{
		ID:          e.ID,
		Kind:        string(e.Ref.Kind),
		EntityID:    e.Ref.ID,
		Old:         string(e.Old),
		New:         string(e.New),
		Origin:      string(e.Origin),
		OperationID: e.OperationID,
		CreatedAt:   formatTime(e.CreatedAt),
	}
	if e.TriggeredBy != nil {
		out.TriggeredKind = string(e.TriggeredBy.Kind)
		out.TriggeredID = e.TriggeredBy.ID
	}
	return out
}

func projectOutput(p *project.Project) ProjectOutput {
	return ProjectOutput{
		Number:    p.Number,
		Name:      p.Name,
		ShortName: p.ShortName,
		Status:    string(p.Status),
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

func proposalOutput(p *proposal.Proposal) ProposalOutput {
	return ProposalOutput{
		ID:            p.ID,
		ProjectNumber: p.ProjectNumber,
		Title:         p.Title,
		Revision:      p.Revision,
		Status:        string(p.Status),
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func parseRef(kind, id string) (status.Ref, error) {
	k, err := status.ParseKind(kind)
	if err != nil {
		return status.Ref{}, err
	}
	return status.Ref{Kind: k, ID: id}, nil
}
