package reconcile_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/ganot/feeflow/internal/advisory"
	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
	"github.com/ganot/feeflow/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeRecords struct {
	projects  []project.Project
	proposals []proposal.Proposal
	err       error
}

func (f *fakeRecords) ListProjects(context.Context) ([]project.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]project.Project(nil), f.projects...), nil
}

func (f *fakeRecords) ListProposals(context.Context) ([]proposal.Proposal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]proposal.Proposal(nil), f.proposals...), nil
}

type fakeStatus map[string]status.Status

func (f fakeStatus) ReadStatus(_ context.Context, ref status.Ref) (status.Status, error) {
	st, ok := f[ref.ID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return st, nil
}

func newTree(t *testing.T, folders map[status.Root][]string) string {
	t.Helper()
	base := t.TempDir()
	for _, root := range status.DefaultFolderMap().Roots() {
		require.NoError(t, os.MkdirAll(filepath.Join(base, string(root)), 0o755))
	}
	for root, names := range folders {
		for _, name := range names {
			require.NoError(t, os.MkdirAll(filepath.Join(base, string(root), name), 0o755))
		}
	}
	return base
}

// listTree returns every path below base, relative and sorted.
func listTree(t *testing.T, base string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(base, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base, path)
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func newScanner(t *testing.T, base string, opts reconcile.Options) *reconcile.Scanner {
	t.Helper()
	s, err := reconcile.NewScanner(folder.NewResolver(base, status.DefaultFolderMap()), opts)
	require.NoError(t, err)
	return s
}

func rec(number string, st status.Status) project.Project {
	return project.Project{Number: number, Status: st}
}

func TestScan_UnmatchedFolderAndRecordWithoutFolder(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"01 RFPs": {"25-97101 Hotel XYZ"},
	})
	records := &fakeRecords{projects: []project.Project{rec("25-97102", status.RFP)}}
	before := listTree(t, base)

	report, err := newScanner(t, base, reconcile.Options{Records: records}).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, report.MissingInStore, 1)
	require.Equal(t, "25-97101", report.MissingInStore[0].Number)
	require.Equal(t, status.Root("01 RFPs"), report.MissingInStore[0].Found.Root)
	require.Len(t, report.MissingOnDisk, 1)
	require.Equal(t, "25-97102", report.MissingOnDisk[0].Number)
	require.Equal(t, status.Root("01 RFPs"), report.MissingOnDisk[0].ExpectedRoot)
	require.Empty(t, report.StatusMismatch)
	require.Empty(t, report.AmbiguousDuplicate)
	require.Empty(t, report.OrphanedChild)
	require.Len(t, report.Findings(), 2)
	require.Equal(t, 1, report.Counts.Findings[reconcile.ClassMissingInStore])
	require.Equal(t, 1, report.Counts.Findings[reconcile.ClassMissingOnDisk])

	require.Equal(t, before, listTree(t, base))
	require.Equal(t, []project.Project{rec("25-97102", status.RFP)}, records.projects)
}

func TestScan_ConsistentTreeIsClean(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"01 RFPs":     {"25-97101 Hotel XYZ"},
		"11 Current":  {"25-97102 Villa"},
		"00 Inactive": {"24-4401 Lost Tower"},
	})
	records := &fakeRecords{
		projects: []project.Project{
			rec("25-97101", status.Draft),
			rec("25-97102", status.Active),
			rec("24-4401", status.OnHold),
		},
		proposals: []proposal.Proposal{{ID: "p1", ProjectNumber: "25-97102", Status: status.Awarded}},
	}

	report, err := newScanner(t, base, reconcile.Options{Records: records}).Scan(context.Background())
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, 3, report.Counts.Folders)
	require.Equal(t, 3, report.Counts.Projects)
	require.Equal(t, 1, report.Counts.Proposals)
	require.Equal(t, reconcile.TriggerOnDemand, report.Trigger)
}

func TestScan_StatusMismatchSuggestsBothFixes(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"11 Current": {"25-97101 Hotel XYZ"},
	})
	records := &fakeRecords{projects: []project.Project{rec("25-97101", status.RFP)}}

	report, err := newScanner(t, base, reconcile.Options{Records: records}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, report.StatusMismatch, 1)

	f := report.StatusMismatch[0]
	require.Equal(t, status.RFP, f.RecordStatus)
	require.Equal(t, status.Root("01 RFPs"), f.ExpectedRoot)
	require.Equal(t, status.Root("11 Current"), f.Found.Root)
	require.Equal(t, []status.Status{status.Active}, f.Candidates)
	require.Equal(t, []reconcile.Fix{
		{Action: reconcile.FixMoveFolder, Root: "01 RFPs"},
		{Action: reconcile.FixSetStatus, Status: status.Active},
	}, f.Fixes)
}

func TestScan_DuplicateUsesRootPriority(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"11 Current":  {"25-97101 Hotel XYZ"},
		"00 Inactive": {"25-97101 Hotel XYZ old"},
	})
	records := &fakeRecords{projects: []project.Project{rec("25-97101", status.Active)}}

	report, err := newScanner(t, base, reconcile.Options{Records: records}).Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.StatusMismatch)
	require.Len(t, report.AmbiguousDuplicate, 1)

	f := report.AmbiguousDuplicate[0]
	require.Equal(t, status.Root("00 Inactive"), f.Found.Root)
	require.Len(t, f.Duplicates, 1)
	require.Equal(t, status.Root("11 Current"), f.Duplicates[0].Root)
	require.Equal(t, status.Root("11 Current"), f.ExpectedRoot)
}

func TestScan_OrphanedProposal(t *testing.T) {
	base := newTree(t, map[status.Root][]string{"01 RFPs": {"25-97101 Hotel"}})
	records := &fakeRecords{
		projects: []project.Project{rec("25-97101", status.RFP)},
		proposals: []proposal.Proposal{
			{ID: "p1", ProjectNumber: "25-97101", Status: status.Sent},
			{ID: "p2", ProjectNumber: "25-97199", Status: status.Draft},
		},
	}

	report, err := newScanner(t, base, reconcile.Options{Records: records}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, report.OrphanedChild, 1)
	require.Equal(t, "p2", report.OrphanedChild[0].ProposalID)
	require.Equal(t, "25-97199", report.OrphanedChild[0].Number)
}

func TestScan_MalformedAndIgnoredEntries(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"11 Current": {"00 Additional Folders", "_25-97101 Old Copy", "25-9x7 broken", "25-97105 Archive"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(base, "11 Current", "notes.txt"), []byte("x"), 0o644))

	report, err := newScanner(t, base, reconcile.Options{
		Records: &fakeRecords{},
		Ignore:  []string{"**/*Archive*"},
	}).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Malformed, 1)
	require.Equal(t, "25-9x7 broken", report.Malformed[0].Found.Name)
	require.Contains(t, report.Malformed[0].Detail, faults.ErrAmbiguousState.Error())
	require.Equal(t, 4, report.Counts.Ignored)
	require.Equal(t, 0, report.Counts.Folders)
	require.Empty(t, report.MissingInStore)
}

func TestScan_NonCanonicalRecordNumberIsAFinding(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"01 RFPs": {"25-97102 Pier"},
	})
	records := &fakeRecords{projects: []project.Project{
		rec("2025-97101", status.RFP),
		rec("25-97102", status.RFP),
		rec("25-97103", status.Active),
	}}

	report, err := newScanner(t, base, reconcile.Options{
		Records: records,
		Status:  fakeStatus{"2025-97101": status.RFP, "25-97102": status.RFP, "25-97103": status.Active},
		Locks:   advisory.NewLocker(),
	}).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Malformed, 1)
	bad := report.Malformed[0]
	require.Equal(t, "2025-97101", bad.Number)
	require.Equal(t, status.RFP, bad.RecordStatus)
	require.Nil(t, bad.Found)
	require.Contains(t, bad.Detail, faults.ErrAmbiguousState.Error())

	// The rest of the audit still runs.
	require.Len(t, report.MissingOnDisk, 1)
	require.Equal(t, "25-97103", report.MissingOnDisk[0].Number)
	require.Empty(t, report.StatusMismatch)
}

func TestScan_MissingRootIsReportedNotFatal(t *testing.T) {
	base := newTree(t, nil)
	require.NoError(t, os.Remove(filepath.Join(base, "99 Completed")))

	report, err := newScanner(t, base, reconcile.Options{Records: &fakeRecords{}}).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []status.Root{"99 Completed"}, report.MissingRoots)
	require.False(t, report.Clean())
}

func TestScan_AbortsOnBadBaseOrStoreFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := newScanner(t, missing, reconcile.Options{Records: &fakeRecords{}}).Scan(context.Background())
	require.ErrorIs(t, err, reconcile.ErrScanAborted)
	require.ErrorIs(t, err, faults.ErrConfiguration)

	base := newTree(t, nil)
	storeErr := errors.New("database is locked")
	_, err = newScanner(t, base, reconcile.Options{Records: &fakeRecords{err: storeErr}}).Scan(context.Background())
	require.ErrorIs(t, err, reconcile.ErrScanAborted)
	require.ErrorIs(t, err, storeErr)
}

func TestNewScanner_RejectsBadPattern(t *testing.T) {
	_, err := reconcile.NewScanner(folder.NewResolver(t.TempDir(), status.DefaultFolderMap()), reconcile.Options{
		Records: &fakeRecords{},
		Ignore:  []string{"[unclosed"},
	})
	require.ErrorIs(t, err, reconcile.ErrInvalidPattern)
	require.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestScan_VerificationDropsDriftResolvedMeanwhile(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"11 Current": {"25-97101 Hotel XYZ"},
	})
	records := &fakeRecords{projects: []project.Project{rec("25-97101", status.RFP)}}

	report, err := newScanner(t, base, reconcile.Options{
		Records: records,
		Status:  fakeStatus{"25-97101": status.Active},
		Locks:   advisory.NewLocker(),
	}).Scan(context.Background())
	require.NoError(t, err)
	require.True(t, report.Clean())
}

func TestScan_WaitsForProjectLock(t *testing.T) {
	base := newTree(t, map[status.Root][]string{
		"11 Current": {"25-97101 Hotel XYZ"},
	})
	locks := advisory.NewLocker()
	release, err := locks.Lock(context.Background(), "25-97101")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = newScanner(t, base, reconcile.Options{
		Records: &fakeRecords{projects: []project.Project{rec("25-97101", status.RFP)}},
		Status:  fakeStatus{"25-97101": status.RFP},
		Locks:   locks,
	}).Scan(ctx)
	require.ErrorIs(t, err, reconcile.ErrScanAborted)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
