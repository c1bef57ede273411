package reconcile

import (
	"slices"
	"time"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Class is the kind of drift a finding describes.
type Class string

const (
	ClassMissingInStore     Class = "missing_in_store"
	ClassMissingOnDisk      Class = "missing_on_disk"
	ClassStatusMismatch     Class = "status_mismatch"
	ClassAmbiguousDuplicate Class = "ambiguous_duplicate"
	ClassOrphanedChild      Class = "orphaned_child"
	ClassMalformed          Class = "malformed"
)

// Classes lists every finding class in report order.
func Classes() []Class {
	return []Class{
		ClassMissingInStore,
		ClassMissingOnDisk,
		ClassStatusMismatch,
		ClassAmbiguousDuplicate,
		ClassOrphanedChild,
		ClassMalformed,
	}
}

// FixAction names a manual operation that would resolve a finding.
type FixAction string

const (
	// FixMoveFolder moves the folder to the root of the stored status.
	FixMoveFolder FixAction = "move_folder"
	// FixSetStatus changes the stored status to one the found root represents.
	FixSetStatus FixAction = "set_status"
	// FixCreateRecord creates a project record for an unmatched folder.
	FixCreateRecord FixAction = "create_record"
)

// Fix is a suggested manual operation. The scanner never performs it.
type Fix struct {
	Action FixAction     `json:"action"`
	Root   status.Root   `json:"root,omitempty"`
	Status status.Status `json:"status,omitempty"`
}

// Location is one place a project folder was found.
type Location struct {
	Root status.Root `json:"root"`
	Name string      `json:"name"`
	Path string      `json:"path"`
}

// Finding is a single discrepancy between the folder tree and the store.
type Finding struct {
	Class  Class  `json:"class"`
	Number string `json:"number,omitempty"`
	// ProposalID is set for orphaned children.
	ProposalID string `json:"proposal_id,omitempty"`
	// Found is where the folder was found. For a duplicate it is the
	// occurrence in the highest-priority root.
	Found *Location `json:"found,omitempty"`
	// Duplicates are the remaining occurrences of a duplicated number.
	Duplicates   []Location      `json:"duplicates,omitempty"`
	RecordStatus status.Status   `json:"record_status,omitempty"`
	ExpectedRoot status.Root     `json:"expected_root,omitempty"`
	Candidates   []status.Status `json:"candidates,omitempty"`
	Fixes        []Fix           `json:"fixes,omitempty"`
	Detail       string          `json:"detail"`
}

// Counts summarizes what a scan looked at.
type Counts struct {
	Folders   int           `json:"folders"`
	Projects  int           `json:"projects"`
	Proposals int           `json:"proposals"`
	Ignored   int           `json:"ignored"`
	Findings  map[Class]int `json:"findings"`
}

// Report is the result of one scan. Schedule hands out copies, so callers
// may modify what they receive.
type Report struct {
	ScannedAt          time.Time     `json:"scanned_at"`
	Duration           time.Duration `json:"duration"`
	Trigger            Trigger       `json:"trigger"`
	Counts             Counts        `json:"counts"`
	MissingRoots       []status.Root `json:"missing_roots,omitempty"`
	MissingInStore     []Finding     `json:"missing_in_store"`
	MissingOnDisk      []Finding     `json:"missing_on_disk"`
	StatusMismatch     []Finding     `json:"status_mismatch"`
	AmbiguousDuplicate []Finding     `json:"ambiguous_duplicate"`
	OrphanedChild      []Finding     `json:"orphaned_child"`
	Malformed          []Finding     `json:"malformed"`
}

// Clone returns a deep copy that shares no maps or slices with r.
func (r Report) Clone() Report {
	out := r
	out.Counts.Findings = make(map[Class]int, len(r.Counts.Findings))
	for c, n := range r.Counts.Findings {
		out.Counts.Findings[c] = n
	}
	out.MissingRoots = slices.Clone(r.MissingRoots)
	out.MissingInStore = cloneFindings(r.MissingInStore)
	out.MissingOnDisk = cloneFindings(r.MissingOnDisk)
	out.StatusMismatch = cloneFindings(r.StatusMismatch)
	out.AmbiguousDuplicate = cloneFindings(r.AmbiguousDuplicate)
	out.OrphanedChild = cloneFindings(r.OrphanedChild)
	out.Malformed = cloneFindings(r.Malformed)
	return out
}

func cloneFindings(in []Finding) []Finding {
	if in == nil {
		return nil
	}
	out := make([]Finding, len(in))
	for i, f := range in {
		if f.Found != nil {
			loc := *f.Found
			f.Found = &loc
		}
		f.Duplicates = slices.Clone(f.Duplicates)
		f.Candidates = slices.Clone(f.Candidates)
		f.Fixes = slices.Clone(f.Fixes)
		out[i] = f
	}
	return out
}

// Clean reports whether the scan found no drift at all.
func (r Report) Clean() bool {
	return len(r.MissingRoots) == 0 && len(r.Findings()) == 0
}

// Findings returns every finding in class order.
func (r Report) Findings() []Finding {
	var out []Finding
	for _, c := range Classes() {
		out = append(out, r.ByClass(c)...)
	}
	return out
}

// ByClass returns the findings of one class.
func (r Report) ByClass(c Class) []Finding {
	switch c {
	case ClassMissingInStore:
		return r.MissingInStore
	case ClassMissingOnDisk:
		return r.MissingOnDisk
	case ClassStatusMismatch:
		return r.StatusMismatch
	case ClassAmbiguousDuplicate:
		return r.AmbiguousDuplicate
	case ClassOrphanedChild:
		return r.OrphanedChild
	case ClassMalformed:
		return r.Malformed
	default:
		return nil
	}
}

func (r *Report) add(f Finding) {
	switch f.Class {
	case ClassMissingInStore:
		r.MissingInStore = append(r.MissingInStore, f)
	case ClassMissingOnDisk:
		r.MissingOnDisk = append(r.MissingOnDisk, f)
	case ClassStatusMismatch:
		r.StatusMismatch = append(r.StatusMismatch, f)
	case ClassAmbiguousDuplicate:
		r.AmbiguousDuplicate = append(r.AmbiguousDuplicate, f)
	case ClassOrphanedChild:
		r.OrphanedChild = append(r.OrphanedChild, f)
	case ClassMalformed:
		r.Malformed = append(r.Malformed, f)
	}
	r.Counts.Findings[f.Class]++
}

// findingCounts converts the per-class counts for metric labels.
func (r Report) findingCounts() map[string]int {
	out := make(map[string]int, len(Classes()))
	for _, c := range Classes() {
		out[string(c)] = r.Counts.Findings[c]
	}
	return out
}
