// Package impact computes what a proposed status change implies: whether the
// project folder has to move and which related entities should follow.
// Analysis is pure; results can be discarded without side effects.
package impact

import (
	"fmt"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Entity is a related record and its current status.
type Entity struct {
	Ref    status.Ref    `json:"ref"`
	Status status.Status `json:"status"`
}

// Input describes a proposed change of Primary from From to To.
type Input struct {
	Primary status.Ref
	From    status.Status
	To      status.Status
	// Project is the parent project when Primary is a proposal.
	Project *Entity
	// Proposals are the project's proposals when Primary is a project, or the
	// siblings of Primary (excluding it) when Primary is a proposal.
	Proposals []Entity
}

// Suggestion is a cascade the operator confirms before it is applied.
type Suggestion struct {
	Target   status.Ref    `json:"target"`
	From     status.Status `json:"from"`
	To       status.Status `json:"to"`
	Selected bool          `json:"selected"`
	Required bool          `json:"required"`
	RuleID   string        `json:"rule_id"`
	Reason   string        `json:"reason,omitempty"`
}

// Block is a prevent rule that holds for the change.
type Block struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of an analysis. Slices are owned by the result.
type Result struct {
	Primary              status.Ref    `json:"primary"`
	From                 status.Status `json:"from"`
	To                   status.Status `json:"to"`
	FolderChangeRequired bool          `json:"folder_change_required"`
	OldFolder            status.Root   `json:"old_folder,omitempty"`
	NewFolder            status.Root   `json:"new_folder,omitempty"`
	Suggestions          []Suggestion  `json:"suggestions"`
	Blocks               []Block       `json:"blocks,omitempty"`
	MatchedRules         []string      `json:"matched_rules,omitempty"`
}

// Blocked reports whether a prevent rule forbids the change.
func (r Result) Blocked() bool { return len(r.Blocks) > 0 }

// Analyzer evaluates transition rules against a folder map.
type Analyzer struct {
	folders *status.FolderMap
	rules   []Rule
}

// NewAnalyzer validates rules and creates an analyzer.
func NewAnalyzer(folders *status.FolderMap, rules []Rule) (*Analyzer, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true
	}
	return &Analyzer{folders: folders, rules: append([]Rule(nil), rules...)}, nil
}

// Folders returns the folder map the analyzer resolves roots with.
func (a *Analyzer) Folders() *status.FolderMap { return a.folders }

// Rules returns a copy of the configured rules.
func (a *Analyzer) Rules() []Rule { return append([]Rule(nil), a.rules...) }

// Analyze computes the impact of in. Identical inputs yield identical results.
// When more than one cascade rule matches, every suggestion is left
// unselected so the operator has to choose.
func (a *Analyzer) Analyze(in Input) (Result, error) {
	if err := a.validate(in); err != nil {
		return Result{}, err
	}

	res := Result{
		Primary:     in.Primary,
		From:        in.From,
		To:          in.To,
		Suggestions: []Suggestion{},
	}

	if in.Primary.Kind == status.KindProject {
		oldFolder, err := a.folders.ResolveFolder(in.From)
		if err != nil {
			return Result{}, err
		}
		newFolder, err := a.folders.ResolveFolder(in.To)
		if err != nil {
			return Result{}, err
		}
		res.OldFolder = oldFolder
		res.NewFolder = newFolder
		res.FolderChangeRequired = oldFolder != newFolder
	}

	population := a.population(in)

	var cascades []Rule
	for _, rule := range a.rules {
		if rule.Source != in.Primary.Kind || rule.On != in.To || !rule.When.Holds(population) {
			continue
		}
		// A block needs related records to object; nothing related never blocks.
		if rule.Action == Prevent && len(population) == 0 {
			continue
		}
		res.MatchedRules = append(res.MatchedRules, rule.ID)
		if rule.Action == Prevent {
			res.Blocks = append(res.Blocks, Block{RuleID: rule.ID, Reason: rule.Reason})
			continue
		}
		cascades = append(cascades, rule)
	}

	unambiguous := len(cascades) == 1
	for _, rule := range cascades {
		required := rule.Action == Require
		for _, target := range a.targets(in, rule) {
			if target.Status == rule.Suggests {
				continue
			}
			res.Suggestions = append(res.Suggestions, Suggestion{
				Target:   target.Ref,
				From:     target.Status,
				To:       rule.Suggests,
				Selected: unambiguous || required,
				Required: required,
				RuleID:   rule.ID,
				Reason:   rule.Reason,
			})
		}
	}

	return res, nil
}

// population is the status set a rule condition is evaluated over. For a
// proposal change it covers every sibling plus the proposal's new status.
func (a *Analyzer) population(in Input) []status.Status {
	out := make([]status.Status, 0, len(in.Proposals)+1)
	for _, p := range in.Proposals {
		out = append(out, p.Status)
	}
	if in.Primary.Kind == status.KindProposal {
		out = append(out, in.To)
	}
	return out
}

func (a *Analyzer) targets(in Input, rule Rule) []Entity {
	switch rule.Target {
	case status.KindProposal:
		return in.Proposals
	case status.KindProject:
		if in.Project == nil {
			return nil
		}
		return []Entity{*in.Project}
	default:
		return nil
	}
}

func (a *Analyzer) validate(in Input) error {
	kind := in.Primary.Kind
	if kind != status.KindProject && kind != status.KindProposal {
		return fmt.Errorf("%w: %q", status.ErrUnknownKind, kind)
	}
	if in.Primary.ID == "" {
		return fmt.Errorf("%w: primary has no id", ErrInvalidInput)
	}
	if !status.Valid(kind, in.From) {
		return fmt.Errorf("%w: %s status %q", status.ErrUnknownStatus, kind, in.From)
	}
	if !status.Valid(kind, in.To) {
		return fmt.Errorf("%w: %s status %q", status.ErrUnknownStatus, kind, in.To)
	}
	if in.From == in.To {
		return fmt.Errorf("%w: %s is already %s", ErrNoChange, in.Primary, in.To)
	}
	if kind == status.KindProposal {
		if in.Project == nil {
			return fmt.Errorf("%w: proposal %s has no parent project", ErrInvalidInput, in.Primary.ID)
		}
		if !status.Valid(status.KindProject, in.Project.Status) {
			return fmt.Errorf("%w: project status %q", status.ErrUnknownStatus, in.Project.Status)
		}
	}
	for _, p := range in.Proposals {
		if p.Ref.Kind != status.KindProposal || !status.Valid(status.KindProposal, p.Status) {
			return fmt.Errorf("%w: proposal %s status %q", status.ErrUnknownStatus, p.Ref.ID, p.Status)
		}
		if kind == status.KindProposal && p.Ref == in.Primary {
			return fmt.Errorf("%w: primary listed among its siblings", ErrInvalidInput)
		}
	}
	return nil
}
