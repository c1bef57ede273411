package impact_test

import (
	"testing"

	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, rules []impact.Rule) *impact.Analyzer {
	t.Helper()
	a, err := impact.NewAnalyzer(status.DefaultFolderMap(), rules)
	require.NoError(t, err)
	return a
}

func proposal(id string, s status.Status) impact.Entity {
	return impact.Entity{Ref: status.ProposalRef(id), Status: s}
}

func TestAnalyze_ProjectActivationCascadesToOpenProposal(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.RFP,
		To:        status.Active,
		Proposals: []impact.Entity{proposal("p1", status.Awarded), proposal("p2", status.Sent)},
	})
	require.NoError(t, err)
	require.True(t, res.FolderChangeRequired)
	require.Equal(t, status.Root("01 RFPs"), res.OldFolder)
	require.Equal(t, status.Root("11 Current"), res.NewFolder)
	require.Len(t, res.Suggestions, 1)

	s := res.Suggestions[0]
	require.Equal(t, status.ProposalRef("p2"), s.Target)
	require.Equal(t, status.Sent, s.From)
	require.Equal(t, status.Awarded, s.To)
	require.True(t, s.Selected)
	require.False(t, s.Required)
	require.False(t, res.Blocked())
}

func TestAnalyze_NoFolderChangeWithinSameRoot(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	res, err := a.Analyze(impact.Input{
		Primary: status.ProjectRef("25-97101"),
		From:    status.Draft,
		To:      status.RFP,
	})
	require.NoError(t, err)
	require.False(t, res.FolderChangeRequired)
	require.Empty(t, res.Suggestions)
}

func TestAnalyze_AllSiblingsLostSuggestsProjectLost(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())
	project := &impact.Entity{Ref: status.ProjectRef("25-97101"), Status: status.RFP}

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProposalRef("p1"),
		From:      status.Sent,
		To:        status.Lost,
		Project:   project,
		Proposals: []impact.Entity{proposal("p2", status.Lost)},
	})
	require.NoError(t, err)
	require.False(t, res.FolderChangeRequired)
	require.Len(t, res.Suggestions, 1)
	require.Equal(t, status.ProjectRef("25-97101"), res.Suggestions[0].Target)
	require.Equal(t, status.Lost, res.Suggestions[0].To)
	require.True(t, res.Suggestions[0].Selected)
}

func TestAnalyze_PartialSiblingProgressProducesNoSuggestion(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProposalRef("p1"),
		From:      status.Sent,
		To:        status.Lost,
		Project:   &impact.Entity{Ref: status.ProjectRef("25-97101"), Status: status.RFP},
		Proposals: []impact.Entity{proposal("p2", status.Sent)},
	})
	require.NoError(t, err)
	require.Empty(t, res.Suggestions)
	require.Empty(t, res.MatchedRules)
}

func TestAnalyze_AwardActivatesProjectUnlessAlreadyActive(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())
	in := impact.Input{
		Primary: status.ProposalRef("p1"),
		From:    status.Negotiation,
		To:      status.Awarded,
		Project: &impact.Entity{Ref: status.ProjectRef("25-97101"), Status: status.RFP},
	}

	res, err := a.Analyze(in)
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 1)
	require.Equal(t, status.Active, res.Suggestions[0].To)

	in.Project = &impact.Entity{Ref: status.ProjectRef("25-97101"), Status: status.Active}
	res, err = a.Analyze(in)
	require.NoError(t, err)
	require.Empty(t, res.Suggestions)
}

func TestAnalyze_MultipleMatchingRulesLeaveEverythingUnselected(t *testing.T) {
	rules := append(impact.DefaultRules(), impact.Rule{
		ID: "project-active-negotiates", Source: status.KindProject, On: status.Active,
		Target: status.KindProposal, Suggests: status.Negotiation, Action: impact.Suggest,
	})
	a := newAnalyzer(t, rules)

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.RFP,
		To:        status.Active,
		Proposals: []impact.Entity{proposal("p1", status.Sent)},
	})
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 2)
	for _, s := range res.Suggestions {
		require.False(t, s.Selected, "rule %s", s.RuleID)
	}
}

func TestAnalyze_RequireRuleIsAlwaysSelected(t *testing.T) {
	a := newAnalyzer(t, []impact.Rule{
		{ID: "a", Source: status.KindProject, On: status.Cancelled, Target: status.KindProposal, Suggests: status.Cancelled, Action: impact.Require},
		{ID: "b", Source: status.KindProject, On: status.Cancelled, Target: status.KindProposal, Suggests: status.Lost, Action: impact.Suggest},
	})

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.RFP,
		To:        status.Cancelled,
		Proposals: []impact.Entity{proposal("p1", status.Sent)},
	})
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 2)
	require.True(t, res.Suggestions[0].Selected)
	require.True(t, res.Suggestions[0].Required)
	require.False(t, res.Suggestions[1].Selected)
}

func TestAnalyze_PreventRuleBlocks(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	res, err := a.Analyze(impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.Active,
		To:        status.Completed,
		Proposals: []impact.Entity{proposal("p1", status.Lost)},
	})
	require.NoError(t, err)
	require.True(t, res.Blocked())
	require.Equal(t, "project-completed-needs-award", res.Blocks[0].RuleID)

	res, err = a.Analyze(impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.Active,
		To:        status.Completed,
		Proposals: []impact.Entity{proposal("p1", status.Awarded)},
	})
	require.NoError(t, err)
	require.False(t, res.Blocked())
}

func TestAnalyze_PreventRuleNeedsRelatedRecords(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	res, err := a.Analyze(impact.Input{
		Primary: status.ProjectRef("25-97101"),
		From:    status.Active,
		To:      status.Completed,
	})
	require.NoError(t, err)
	require.False(t, res.Blocked())
	require.Empty(t, res.Blocks)
	require.NotContains(t, res.MatchedRules, "project-completed-needs-award")
	require.True(t, res.FolderChangeRequired)
}

func TestAnalyze_IsIdempotentAndDoesNotMutateInput(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())
	proposals := []impact.Entity{proposal("p1", status.Awarded), proposal("p2", status.Sent)}
	in := impact.Input{
		Primary:   status.ProjectRef("25-97101"),
		From:      status.RFP,
		To:        status.Active,
		Proposals: proposals,
	}
	snapshot := append([]impact.Entity(nil), proposals...)

	first, err := a.Analyze(in)
	require.NoError(t, err)
	second, err := a.Analyze(in)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, snapshot, in.Proposals)
}

func TestAnalyze_RejectsInvalidInput(t *testing.T) {
	a := newAnalyzer(t, impact.DefaultRules())

	_, err := a.Analyze(impact.Input{Primary: status.ProjectRef("25-97101"), From: status.RFP, To: status.Sent})
	require.ErrorIs(t, err, status.ErrUnknownStatus)

	_, err = a.Analyze(impact.Input{Primary: status.ProjectRef("25-97101"), From: status.RFP, To: status.RFP})
	require.ErrorIs(t, err, impact.ErrNoChange)

	_, err = a.Analyze(impact.Input{Primary: status.ProposalRef("p1"), From: status.Sent, To: status.Lost})
	require.ErrorIs(t, err, impact.ErrInvalidInput)

	_, err = a.Analyze(impact.Input{Primary: status.Ref{Kind: "company", ID: "c1"}, From: status.Draft, To: status.Active})
	require.ErrorIs(t, err, status.ErrUnknownKind)
}

func TestNewAnalyzer_RejectsInvalidRules(t *testing.T) {
	_, err := impact.NewAnalyzer(status.DefaultFolderMap(), []impact.Rule{
		{ID: "x", Source: status.KindProject, On: status.Sent, Target: status.KindProposal, Suggests: status.Lost, Action: impact.Suggest},
	})
	require.ErrorIs(t, err, impact.ErrInvalidRule)

	_, err = impact.NewAnalyzer(status.DefaultFolderMap(), []impact.Rule{
		{ID: "x", Source: status.KindProject, On: status.Active, Target: status.KindProject, Suggests: status.Active, Action: impact.Suggest},
	})
	require.ErrorIs(t, err, impact.ErrInvalidRule)
}

func TestCondition_Holds(t *testing.T) {
	terminal := []status.Status{status.Lost, status.Cancelled}

	require.True(t, impact.Condition{}.Holds(nil))
	require.True(t, impact.Condition{Quantifier: impact.All, Statuses: terminal}.Holds([]status.Status{status.Lost, status.Cancelled}))
	require.False(t, impact.Condition{Quantifier: impact.All, Statuses: terminal}.Holds([]status.Status{status.Lost, status.Sent}))
	require.True(t, impact.Condition{Quantifier: impact.Any, Statuses: terminal}.Holds([]status.Status{status.Lost, status.Sent}))
	require.True(t, impact.Condition{Quantifier: impact.None, Statuses: terminal}.Holds([]status.Status{status.Sent}))
}
