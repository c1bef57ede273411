package status

import (
	"fmt"
	"strings"
)

// Kind identifies the entity a status belongs to.
type Kind string

const (
	KindProject  Kind = "project"
	KindProposal Kind = "proposal"
)

// Status is a lifecycle status of a project or proposal.
type Status string

const (
	Draft         Status = "Draft"
	RFP           Status = "RFP"
	Prepared      Status = "Prepared"
	Active        Status = "Active"
	Sent          Status = "Sent"
	UnderReview   Status = "Under Review"
	Clarification Status = "Clarification"
	Negotiation   Status = "Negotiation"
	Awarded       Status = "Awarded"
	OnHold        Status = "On Hold"
	Completed     Status = "Completed"
	Lost          Status = "Lost"
	Cancelled     Status = "Cancelled"
)

var (
	projectStatuses = []Status{Draft, RFP, Active, OnHold, Completed, Cancelled, Lost}

	proposalStatuses = []Status{
		Draft, Prepared, Active, Sent, UnderReview, Clarification,
		Negotiation, Awarded, Lost, Cancelled,
	}

	terminal = map[Kind]map[Status]bool{
		KindProject:  {Completed: true, Cancelled: true, Lost: true},
		KindProposal: {Awarded: true, Lost: true, Cancelled: true},
	}
)

// Ref points at a project (by canonical number) or a proposal (by ID).
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// ProjectRef returns a reference to the project with the given canonical number.
func ProjectRef(number string) Ref { return Ref{Kind: KindProject, ID: number} }

// ProposalRef returns a reference to the proposal with the given ID.
func ProposalRef(id string) Ref { return Ref{Kind: KindProposal, ID: id} }

func (r Ref) String() string { return string(r.Kind) + ":" + r.ID }

// Statuses returns the closed status set for kind in display order.
func Statuses(kind Kind) []Status {
	switch kind {
	case KindProject:
		return append([]Status(nil), projectStatuses...)
	case KindProposal:
		return append([]Status(nil), proposalStatuses...)
	default:
		return nil
	}
}

// Valid reports whether s belongs to the status set of kind.
func Valid(kind Kind, s Status) bool {
	for _, candidate := range Statuses(kind) {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends the active lifecycle of a kind entity.
func IsTerminal(kind Kind, s Status) bool {
	return terminal[kind][s]
}

// Parse converts a free-form status string into a member of kind's status set.
// Matching ignores case and surrounding whitespace.
func Parse(kind Kind, raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, candidate := range Statuses(kind) {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s status %q", ErrUnknownStatus, kind, raw)
}

// ParseKind converts a free-form kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindProject:
		return KindProject, nil
	case KindProposal:
		return KindProposal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}
