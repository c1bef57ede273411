package lifecycle

import (
	"context"
	"time"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/status"
)

// Phase is the protocol state of an operation.
type Phase string

const (
	PhaseProposed  Phase = "proposed"
	PhaseAnalyzed  Phase = "analyzed"
	PhaseConfirmed Phase = "confirmed"
	PhaseApplying  Phase = "applying"
	PhaseApplied   Phase = "applied"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseApplied || p == PhaseFailed || p == PhaseCancelled
}

// Step names a unit of work while applying.
type Step string

const (
	StepLock      Step = "lock"
	StepVerify    Step = "verify"
	StepLocate    Step = "locate"
	StepMove      Step = "move"
	StepProvision Step = "provision"
	StepPrimary   Step = "primary"
	StepCascade   Step = "cascade"
	StepHistory   Step = "history"
	StepFinished  Step = "finished"
)

// MutationState is the outcome of one planned mutation.
type MutationState string

const (
	MutationSucceeded MutationState = "succeeded"
	MutationFailed    MutationState = "failed"
	MutationSkipped   MutationState = "skipped"
)

// Result summarises an applied operation.
type Result string

const (
	ResultApplied             Result = "applied"
	ResultAppliedWithWarnings Result = "applied_with_warnings"
	ResultFailed              Result = "failed"
)

// Mutation is one planned change and what happened to it.
type Mutation struct {
	Step   Step          `json:"step"`
	Ref    status.Ref    `json:"ref"`
	From   status.Status `json:"from,omitempty"`
	To     status.Status `json:"to,omitempty"`
	Path   string        `json:"path,omitempty"`
	State  MutationState `json:"state"`
	Error  string        `json:"error,omitempty"`
	err    error
}

// Err returns the failure cause, if any.
func (m Mutation) Err() error { return m.err }

// Outcome lists every mutation of an applied operation individually.
type Outcome struct {
	OperationID string             `json:"operation_id"`
	Result      Result             `json:"result"`
	Mutations   []Mutation         `json:"mutations"`
	Move        *folder.MoveResult `json:"move,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// Committed reports whether any mutation took effect.
func (o *Outcome) Committed() bool {
	for _, m := range o.Mutations {
		if m.State == MutationSucceeded {
			return true
		}
	}
	return false
}

// Choice accepts one cascade suggestion.
type Choice struct {
	Target status.Ref    `json:"target"`
	To     status.Status `json:"to"`
}

// Operation is a snapshot of one status change moving through the protocol.
type Operation struct {
	ID            string              `json:"id"`
	Primary       status.Ref          `json:"primary"`
	ProjectNumber string              `json:"project_number,omitempty"`
	From          status.Status       `json:"from,omitempty"`
	To            status.Status       `json:"to"`
	Phase         Phase               `json:"phase"`
	Analysis      *impact.Result      `json:"analysis,omitempty"`
	Confirmed     []impact.Suggestion `json:"confirmed,omitempty"`
	Outcome       *Outcome            `json:"outcome,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (o *Operation) clone() *Operation {
	c := *o
	if o.Analysis != nil {
		a := *o.Analysis
		a.Suggestions = append([]impact.Suggestion(nil), o.Analysis.Suggestions...)
		a.Blocks = append([]impact.Block(nil), o.Analysis.Blocks...)
		a.MatchedRules = append([]string(nil), o.Analysis.MatchedRules...)
		c.Analysis = &a
	}
	c.Confirmed = append([]impact.Suggestion(nil), o.Confirmed...)
	if o.Outcome != nil {
		out := *o.Outcome
		out.Mutations = append([]Mutation(nil), o.Outcome.Mutations...)
		c.Outcome = &out
	}
	return &c
}

// Event reports progress while an operation applies.
type Event struct {
	OperationID string        `json:"operation_id"`
	Step        Step          `json:"step"`
	Ref         status.Ref    `json:"ref,omitempty"`
	State       MutationState `json:"state,omitempty"`
	Message     string        `json:"message,omitempty"`
	At          time.Time     `json:"at"`
}

// Store reads and writes single status values. Each call is atomic on its
// own; no transaction spans calls.
type Store interface {
	ReadStatus(ctx context.Context, ref status.Ref) (status.Status, error)
	WriteStatus(ctx context.Context, ref status.Ref, s status.Status) error
	ReadSiblingProposals(ctx context.Context, projectNumber string) ([]impact.Entity, error)
	ReadParent(ctx context.Context, proposalID string) (string, error)
}

// Locator finds the current folder of a project.
type Locator interface {
	Locate(ctx context.Context, number string) (folder.Location, error)
}

// Mover relocates a project folder into a canonical root.
type Mover interface {
	Move(ctx context.Context, currentPath string, target status.Root) (*folder.MoveResult, error)
}

// Recorder appends status history.
type Recorder interface {
	Record(ctx context.Context, entry *history.Entry) error
}
