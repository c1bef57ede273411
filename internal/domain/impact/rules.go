package impact

import (
	"fmt"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Quantifier aggregates a predicate over related entities.
type Quantifier string

const (
	All  Quantifier = "all"
	Any  Quantifier = "any"
	None Quantifier = "none"
)

// Action is what a matching rule does to the transition.
type Action string

const (
	// Suggest proposes a cascade the operator may accept or not.
	Suggest Action = "suggest"
	// Require proposes a cascade that is always applied with the change.
	Require Action = "require"
	// Prevent blocks the transition while the condition holds over at least
	// one related entity.
	Prevent Action = "prevent"
)

// Condition is a quantified membership test over the statuses of related
// proposals. An empty Statuses set always holds.
type Condition struct {
	Quantifier Quantifier      `json:"quantifier,omitempty"`
	Statuses   []status.Status `json:"statuses,omitempty"`
}

// Holds evaluates the condition over statuses.
func (c Condition) Holds(statuses []status.Status) bool {
	if len(c.Statuses) == 0 {
		return true
	}
	in := func(s status.Status) bool {
		for _, want := range c.Statuses {
			if s == want {
				return true
			}
		}
		return false
	}

	switch c.Quantifier {
	case Any:
		for _, s := range statuses {
			if in(s) {
				return true
			}
		}
		return false
	case None:
		for _, s := range statuses {
			if in(s) {
				return false
			}
		}
		return true
	default:
		for _, s := range statuses {
			if !in(s) {
				return false
			}
		}
		return true
	}
}

// Rule maps a (kind, new status) pair to a cascade or a block.
type Rule struct {
	ID       string        `json:"id"`
	Source   status.Kind   `json:"source"`
	On       status.Status `json:"on"`
	Target   status.Kind   `json:"target,omitempty"`
	Suggests status.Status `json:"suggests,omitempty"`
	When     Condition     `json:"when"`
	Action   Action        `json:"action"`
	Reason   string        `json:"reason,omitempty"`
}

func (r Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule without id", ErrInvalidRule)
	}
	if !status.Valid(r.Source, r.On) {
		return fmt.Errorf("%w: %s: %q is not a %s status", ErrInvalidRule, r.ID, r.On, r.Source)
	}
	switch r.When.Quantifier {
	case "", All, Any, None:
	default:
		return fmt.Errorf("%w: %s: quantifier %q", ErrInvalidRule, r.ID, r.When.Quantifier)
	}
	switch r.Action {
	case Prevent:
		return nil
	case Suggest, Require:
	default:
		return fmt.Errorf("%w: %s: action %q", ErrInvalidRule, r.ID, r.Action)
	}
	if r.Target == r.Source {
		return fmt.Errorf("%w: %s: cascade must target the other entity kind", ErrInvalidRule, r.ID)
	}
	if !status.Valid(r.Target, r.Suggests) {
		return fmt.Errorf("%w: %s: %q is not a %s status", ErrInvalidRule, r.ID, r.Suggests, r.Target)
	}
	return nil
}

// DefaultRules is the cascade table used by the fee proposal workflow.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID: "project-active-awards-proposals", Source: status.KindProject, On: status.Active,
			Target: status.KindProposal, Suggests: status.Awarded, Action: Suggest,
			Reason: "an active project has been awarded",
		},
		{
			ID: "project-cancelled-cancels-proposals", Source: status.KindProject, On: status.Cancelled,
			Target: status.KindProposal, Suggests: status.Cancelled, Action: Suggest,
			Reason: "proposals of a cancelled project are void",
		},
		{
			ID: "project-lost-loses-proposals", Source: status.KindProject, On: status.Lost,
			Target: status.KindProposal, Suggests: status.Lost, Action: Suggest,
			Reason: "proposals of a lost project are lost",
		},
		{
			ID: "project-completed-needs-award", Source: status.KindProject, On: status.Completed,
			When:   Condition{Quantifier: None, Statuses: []status.Status{status.Awarded}},
			Action: Prevent, Reason: "a project cannot complete without an awarded proposal",
		},
		{
			ID: "proposal-awarded-activates-project", Source: status.KindProposal, On: status.Awarded,
			Target: status.KindProject, Suggests: status.Active,
			When:   Condition{Quantifier: Any, Statuses: []status.Status{status.Awarded}},
			Action: Suggest, Reason: "an awarded proposal makes the project current",
		},
		{
			ID: "proposals-lost-loses-project", Source: status.KindProposal, On: status.Lost,
			Target: status.KindProject, Suggests: status.Lost,
			When:   Condition{Quantifier: All, Statuses: []status.Status{status.Lost, status.Cancelled}},
			Action: Suggest, Reason: "every proposal of the project is lost or cancelled",
		},
		{
			ID: "proposals-cancelled-cancels-project", Source: status.KindProposal, On: status.Cancelled,
			Target: status.KindProject, Suggests: status.Cancelled,
			When:   Condition{Quantifier: All, Statuses: []status.Status{status.Cancelled}},
			Action: Suggest, Reason: "every proposal of the project is cancelled",
		},
	}
}
