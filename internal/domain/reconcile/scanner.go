// Package reconcile audits the folder tree against the record store and
// reports drift. It never writes to either side.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ganot/feeflow/internal/advisory"
	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
	"github.com/ganot/feeflow/internal/metrics"
	"github.com/ganot/feeflow/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Records lists every persisted project and proposal.
type Records interface {
	ListProjects(ctx context.Context) ([]project.Project, error)
	ListProposals(ctx context.Context) ([]proposal.Proposal, error)
}

// StatusReader reads the current stored status of one record.
type StatusReader interface {
	ReadStatus(ctx context.Context, ref status.Ref) (status.Status, error)
}

// Options configure a Scanner. Status and Locks are optional; without them
// findings are not re-verified.
type Options struct {
	Records Records
	Status  StatusReader
	Locks   *advisory.Locker
	// Ignore holds doublestar patterns matched against "<root>/<leaf>".
	Ignore  []string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Scanner compares project folders below a base path with project records.
type Scanner struct {
	resolver *folder.Resolver
	records  Records
	status   StatusReader
	locks    *advisory.Locker
	ignore   []string
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewScanner creates a scanner over the roots the resolver searches.
func NewScanner(resolver *folder.Resolver, opts Options) (*Scanner, error) {
	if resolver == nil || opts.Records == nil {
		return nil, errors.New("reconcile: resolver and records are required")
	}
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scanner{
		resolver: resolver,
		records:  opts.Records,
		status:   opts.Status,
		locks:    opts.Locks,
		ignore:   append([]string(nil), opts.Ignore...),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		tracer:   telemetry.Tracer(),
		now:      time.Now,
	}, nil
}

// Scan runs one on-demand pass.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	return s.scan(ctx, TriggerOnDemand)
}

// snapshot is the indexed state of both sources at one point in time.
type snapshot struct {
	folders   map[string][]Location
	projects  map[string]project.Project
	proposals []proposal.Proposal
}

func (s *Scanner) scan(ctx context.Context, trigger Trigger) (Report, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "reconcile.scan", trace.WithAttributes(
		attribute.String("feeflow.scan.trigger", string(trigger)),
	))
	defer span.End()

	report, err := s.run(ctx, trigger, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveScan(string(trigger), "error", elapsed.Seconds(), nil, 0)
		s.logger.Error("reconciliation scan aborted", "trigger", trigger, "step", "scan", "error", err)
		return Report{}, err
	}

	report.Duration = elapsed
	s.metrics.ObserveScan(string(trigger), "ok", elapsed.Seconds(), report.findingCounts(), float64(s.now().Unix()))
	span.SetAttributes(attribute.Int("feeflow.scan.findings", len(report.Findings())))
	s.logger.Info("reconciliation scan finished",
		"trigger", trigger,
		"folders", report.Counts.Folders,
		"projects", report.Counts.Projects,
		"findings", len(report.Findings()),
		"duration", elapsed)
	return report, nil
}

func (s *Scanner) run(ctx context.Context, trigger Trigger, start time.Time) (Report, error) {
	base := s.resolver.Base()
	if err := folder.ValidateBase(base); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrScanAborted, err)
	}

	report := Report{
		ScannedAt:    start.UTC(),
		Trigger:      trigger,
		Counts:       Counts{Findings: make(map[Class]int)},
		MissingRoots: folder.MissingRoots(base, s.resolver.Folders()),
	}

	snap, err := s.read(ctx, &report)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrScanAborted, err)
	}

	numbers := make(map[string]bool, len(snap.folders)+len(snap.projects))
	for n := range snap.folders {
		numbers[n] = true
	}
	for n := range snap.projects {
		numbers[n] = true
	}
	ordered := make([]string, 0, len(numbers))
	for n := range numbers {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	for _, number := range ordered {
		var rec *project.Project
		if p, ok := snap.projects[number]; ok {
			rec = &p
		}
		// Folder names are checked in read; a record number can still be off.
		if rec != nil && !canonical(number) {
			report.add(Finding{
				Class:        ClassMalformed,
				Number:       number,
				RecordStatus: rec.Status,
				Detail:       fmt.Sprintf("%v: project record %q is not a canonical number", faults.ErrAmbiguousState, number),
			})
			continue
		}
		f, ok := s.classify(number, snap.folders[number], rec)
		if !ok {
			continue
		}
		f, ok, err = s.verify(ctx, f)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %w", ErrScanAborted, err)
		}
		if ok {
			report.add(f)
		}
	}

	for _, p := range snap.proposals {
		if _, ok := snap.projects[p.ProjectNumber]; ok {
			continue
		}
		report.add(Finding{
			Class:      ClassOrphanedChild,
			Number:     p.ProjectNumber,
			ProposalID: p.ID,
			Detail:     fmt.Sprintf("proposal %s refers to project %s, which has no record", p.ID, p.ProjectNumber),
		})
	}

	return report, nil
}

// read indexes the folder tree and the store. Malformed entries are added to
// the report directly.
func (s *Scanner) read(ctx context.Context, report *Report) (*snapshot, error) {
	snap := &snapshot{
		folders:  make(map[string][]Location),
		projects: make(map[string]project.Project),
	}

	for _, root := range s.resolver.Folders().Roots() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(s.resolver.RootPath(root))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil, &faults.Error{Kind: faults.ErrPermission, Step: "read root", Path: s.resolver.RootPath(root), Err: err}
			}
			return nil, fmt.Errorf("read root %q: %w", root, err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if !entry.IsDir() || !folder.LooksLikeProject(name) || s.ignored(root, name) {
				report.Counts.Ignored++
				continue
			}
			loc := Location{Root: root, Name: name, Path: filepath.Join(s.resolver.RootPath(root), name)}
			prefix := folder.LeafPrefix(name)
			n, err := folder.ParseNumber(prefix)
			if err != nil || n.String() != prefix {
				report.add(Finding{
					Class:  ClassMalformed,
					Found:  &loc,
					Detail: fmt.Sprintf("%v: %q starts like a project number but is not canonical", faults.ErrAmbiguousState, name),
				})
				continue
			}
			snap.folders[prefix] = append(snap.folders[prefix], loc)
			report.Counts.Folders++
		}
	}

	projects, err := s.records.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		snap.projects[p.Number] = p
	}
	report.Counts.Projects = len(projects)

	snap.proposals, err = s.records.ListProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	report.Counts.Proposals = len(snap.proposals)
	return snap, nil
}

// classify compares the folders found for one number with its record. The
// second result is false when both sides agree.
func (s *Scanner) classify(number string, locs []Location, rec *project.Project) (Finding, bool) {
	folders := s.resolver.Folders()

	if len(locs) > 1 {
		f := Finding{
			Class:      ClassAmbiguousDuplicate,
			Number:     number,
			Found:      &locs[0],
			Duplicates: append([]Location(nil), locs[1:]...),
			Detail:     fmt.Sprintf("%v: %s found in %d locations", faults.ErrAmbiguousState, number, len(locs)),
		}
		if rec != nil {
			f.RecordStatus = rec.Status
			f.ExpectedRoot, _ = folders.ResolveFolder(rec.Status)
		}
		return f, true
	}

	switch {
	case len(locs) == 1 && rec == nil:
		loc := locs[0]
		f := Finding{
			Class:  ClassMissingInStore,
			Number: number,
			Found:  &loc,
			Detail: fmt.Sprintf("folder %s has no project record", loc.Name),
		}
		if res, err := folders.ResolveStatus(string(loc.Root)); err == nil {
			f.Candidates = res.Candidates
			f.Fixes = []Fix{{Action: FixCreateRecord, Status: res.Representative}}
		}
		return f, true

	case len(locs) == 0 && rec != nil:
		expected, _ := folders.ResolveFolder(rec.Status)
		return Finding{
			Class:        ClassMissingOnDisk,
			Number:       number,
			RecordStatus: rec.Status,
			ExpectedRoot: expected,
			Detail:       fmt.Sprintf("project %s (%s) has no folder under any root", number, rec.Status),
		}, true

	case len(locs) == 1 && rec != nil:
		loc := locs[0]
		expected, err := folders.ResolveFolder(rec.Status)
		if err == nil && expected == loc.Root {
			return Finding{}, false
		}
		f := Finding{
			Class:        ClassStatusMismatch,
			Number:       number,
			Found:        &loc,
			RecordStatus: rec.Status,
			ExpectedRoot: expected,
			Detail:       fmt.Sprintf("project %s is %s but its folder is in %s", number, rec.Status, loc.Root),
		}
		if expected != "" {
			f.Fixes = append(f.Fixes, Fix{Action: FixMoveFolder, Root: expected})
		}
		if res, err := folders.ResolveStatus(string(loc.Root)); err == nil {
			f.Candidates = res.Candidates
			for _, c := range res.Candidates {
				f.Fixes = append(f.Fixes, Fix{Action: FixSetStatus, Status: c})
			}
		}
		return f, true
	}
	return Finding{}, false
}

// verify re-checks a finding for one project under its advisory lock, so
// drift caused by an operation that was applying during the bulk read is not
// reported. The second result is false when the drift is gone.
func (s *Scanner) verify(ctx context.Context, f Finding) (Finding, bool, error) {
	if s.locks == nil || s.status == nil || f.Number == "" {
		return f, true, nil
	}

	release, err := s.locks.Lock(ctx, f.Number)
	if err != nil {
		return Finding{}, false, err
	}
	defer release()

	locs, err := s.locate(ctx, f.Number)
	if err != nil {
		return Finding{}, false, err
	}

	var rec *project.Project
	st, err := s.status.ReadStatus(ctx, status.ProjectRef(f.Number))
	switch {
	case errors.Is(err, faults.ErrNotFound):
	case err != nil:
		return Finding{}, false, fmt.Errorf("read status of %s: %w", f.Number, err)
	default:
		rec = &project.Project{Number: f.Number, Status: st}
	}

	fresh, ok := s.classify(f.Number, locs, rec)
	if !ok {
		s.logger.Debug("finding resolved during scan", "number", f.Number, "class", f.Class)
	}
	return fresh, ok, nil
}

// locate finds every non-ignored folder for number.
func (s *Scanner) locate(ctx context.Context, number string) ([]Location, error) {
	loc, err := s.resolver.Locate(ctx, number)
	var ambiguous *folder.AmbiguousMatchError
	var matches []folder.Location
	switch {
	case err == nil:
		matches = []folder.Location{loc}
	case errors.As(err, &ambiguous):
		matches = ambiguous.Matches
	case errors.Is(err, folder.ErrNotFound), errors.Is(err, folder.ErrInvalidNumber):
	default:
		return nil, err
	}

	out := make([]Location, 0, len(matches))
	for _, m := range matches {
		if s.ignored(m.Root, m.Name) {
			continue
		}
		out = append(out, Location{Root: m.Root, Name: m.Name, Path: m.Path})
	}
	return out, nil
}

func canonical(number string) bool {
	n, err := folder.ParseNumber(number)
	return err == nil && n.String() == number
}

func (s *Scanner) ignored(root status.Root, name string) bool {
	rel := path.Join(string(root), name)
	for _, p := range s.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
