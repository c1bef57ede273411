// Package lifecycle runs the propose, confirm and apply protocol for status
// changes. Analysis and confirmation are side-effect free; applying moves the
// project folder first and writes statuses only after the move succeeded.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ganot/feeflow/internal/advisory"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/metrics"
	"github.com/ganot/feeflow/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRetention is how long an idle or finished operation stays queryable.
const DefaultRetention = time.Hour

// Deps are the collaborators of a Coordinator. Locks and Metrics are optional.
type Deps struct {
	Store    Store
	Analyzer *impact.Analyzer
	Locator  Locator
	Mover    Mover
	History  Recorder
	Locks    *advisory.Locker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Coordinator tracks in-flight operations and applies confirmed ones.
type Coordinator struct {
	store     Store
	analyzer  *impact.Analyzer
	locator   Locator
	mover     Mover
	history   Recorder
	locks     *advisory.Locker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	retention time.Duration

	mu  sync.Mutex
	ops map[string]*Operation
}

// NewCoordinator creates a coordinator.
func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Store == nil || deps.Analyzer == nil || deps.Locator == nil || deps.Mover == nil || deps.History == nil {
		return nil, errors.New("lifecycle: store, analyzer, locator, mover and history are required")
	}
	if deps.Locks == nil {
		deps.Locks = advisory.NewLocker()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Coordinator{
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		locator:   deps.Locator,
		mover:     deps.Mover,
		history:   deps.History,
		locks:     deps.Locks,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		tracer:    telemetry.Tracer(),
		now:       time.Now,
		retention: DefaultRetention,
		ops:       make(map[string]*Operation),
	}, nil
}

// Propose registers a requested change. Nothing is read or written yet.
func (c *Coordinator) Propose(ctx context.Context, primary status.Ref, to status.Status) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := status.ParseKind(string(primary.Kind)); err != nil {
		return nil, err
	}
	if primary.ID == "" {
		return nil, fmt.Errorf("%w: empty %s id", impact.ErrInvalidInput, primary.Kind)
	}
	if !status.Valid(primary.Kind, to) {
		return nil, fmt.Errorf("%w: %s status %q", status.ErrUnknownStatus, primary.Kind, to)
	}

	now := c.now().UTC()
	op := &Operation{
		ID:        uuid.NewString(),
		Primary:   primary,
		To:        to,
		Phase:     PhaseProposed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if primary.Kind == status.KindProject {
		op.ProjectNumber = primary.ID
	}

	c.mu.Lock()
	c.pruneLocked(now)
	c.ops[op.ID] = op
	snapshot := op.clone()
	c.mu.Unlock()

	c.logger.Debug("status change proposed", "operation", op.ID, "ref", primary.String(), "to", to)
	return snapshot, nil
}

// Analyze reads the current statuses and computes the impact of the change.
// It may be repeated until the operation is confirmed.
func (c *Coordinator) Analyze(ctx context.Context, id string) (*Operation, error) {
	op, err := c.snapshot(id, PhaseProposed, PhaseAnalyzed)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "lifecycle.analyze")
	defer span.End()

	in, projectNumber, err := c.buildInput(ctx, op.Primary, op.To)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res, err := c.analyzer.Analyze(in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return c.update(id, func(o *Operation) error {
		if o.Phase != PhaseProposed && o.Phase != PhaseAnalyzed {
			return fmt.Errorf("%w: %s", ErrInvalidPhase, o.Phase)
		}
		o.From = in.From
		o.ProjectNumber = projectNumber
		o.Analysis = &res
		o.Phase = PhaseAnalyzed
		return nil
	})
}

// Preview proposes and analyzes in one call.
func (c *Coordinator) Preview(ctx context.Context, primary status.Ref, to status.Status) (*Operation, error) {
	op, err := c.Propose(ctx, primary, to)
	if err != nil {
		return nil, err
	}
	analyzed, err := c.Analyze(ctx, op.ID)
	if err != nil {
		c.drop(op.ID)
		return nil, err
	}
	return analyzed, nil
}

// ConfirmDefaults confirms the pre-selected suggestions.
func (c *Coordinator) ConfirmDefaults(ctx context.Context, id string) (*Operation, error) {
	return c.confirm(ctx, id, nil, true)
}

// Confirm confirms exactly the chosen suggestions plus every required one.
// At most one suggestion may be chosen per target.
func (c *Coordinator) Confirm(ctx context.Context, id string, choices []Choice) (*Operation, error) {
	return c.confirm(ctx, id, choices, false)
}

func (c *Coordinator) confirm(ctx context.Context, id string, choices []Choice, defaults bool) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.update(id, func(o *Operation) error {
		if o.Phase != PhaseAnalyzed {
			return fmt.Errorf("%w: %s", ErrInvalidPhase, o.Phase)
		}
		if o.Analysis.Blocked() {
			return fmt.Errorf("%w: %s", ErrBlocked, o.Analysis.Blocks[0].Reason)
		}

		chosen := make(map[Choice]bool, len(choices))
		for _, ch := range choices {
			chosen[ch] = true
		}

		var selected []impact.Suggestion
		perTarget := make(map[status.Ref]status.Status)
		for _, s := range o.Analysis.Suggestions {
			key := Choice{Target: s.Target, To: s.To}
			take := s.Required || (defaults && s.Selected) || chosen[key]
			delete(chosen, key)
			if !take {
				continue
			}
			if prev, dup := perTarget[s.Target]; dup && prev != s.To {
				return fmt.Errorf("%w: %s chosen for both %s and %s", ErrInvalidSelection, s.Target, prev, s.To)
			}
			if _, dup := perTarget[s.Target]; dup {
				continue
			}
			perTarget[s.Target] = s.To
			s.Selected = true
			selected = append(selected, s)
		}
		if len(chosen) > 0 {
			unknown := make([]string, 0, len(chosen))
			for ch := range chosen {
				unknown = append(unknown, fmt.Sprintf("%s -> %s", ch.Target, ch.To))
			}
			sort.Strings(unknown)
			return fmt.Errorf("%w: no suggestion %s", ErrInvalidSelection, strings.Join(unknown, ", "))
		}

		o.Confirmed = selected
		o.Phase = PhaseConfirmed
		return nil
	})
}

// Cancel abandons an operation that has not started applying.
func (c *Coordinator) Cancel(ctx context.Context, id string) (*Operation, error) {
	op, err := c.update(id, func(o *Operation) error {
		switch o.Phase {
		case PhaseProposed, PhaseAnalyzed, PhaseConfirmed:
			o.Phase = PhaseCancelled
			return nil
		case PhaseApplying:
			return ErrNotCancellable
		default:
			return fmt.Errorf("%w: %s", ErrInvalidPhase, o.Phase)
		}
	})
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveOperation(string(op.Primary.Kind), string(PhaseCancelled), 0)
	c.logger.Info("status change cancelled", "operation", id, "ref", op.Primary.String())
	return op, nil
}

// Get returns a snapshot of an operation.
func (c *Coordinator) Get(id string) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return op.clone(), nil
}

// Locks returns the advisory locker shared with the scanner.
func (c *Coordinator) Locks() *advisory.Locker { return c.locks }

func (c *Coordinator) buildInput(ctx context.Context, primary status.Ref, to status.Status) (impact.Input, string, error) {
	from, err := c.store.ReadStatus(ctx, primary)
	if err != nil {
		return impact.Input{}, "", fmt.Errorf("reading %s: %w", primary, err)
	}
	in := impact.Input{Primary: primary, From: from, To: to}

	if primary.Kind == status.KindProject {
		proposals, err := c.store.ReadSiblingProposals(ctx, primary.ID)
		if err != nil {
			return impact.Input{}, "", fmt.Errorf("reading proposals of %s: %w", primary.ID, err)
		}
		in.Proposals = proposals
		return in, primary.ID, nil
	}

	number, err := c.store.ReadParent(ctx, primary.ID)
	if err != nil {
		return impact.Input{}, "", fmt.Errorf("reading parent of %s: %w", primary, err)
	}
	projectRef := status.ProjectRef(number)
	projectStatus, err := c.store.ReadStatus(ctx, projectRef)
	if err != nil {
		return impact.Input{}, "", fmt.Errorf("reading %s: %w", projectRef, err)
	}
	in.Project = &impact.Entity{Ref: projectRef, Status: projectStatus}

	siblings, err := c.store.ReadSiblingProposals(ctx, number)
	if err != nil {
		return impact.Input{}, "", fmt.Errorf("reading proposals of %s: %w", number, err)
	}
	for _, s := range siblings {
		if s.Ref != primary {
			in.Proposals = append(in.Proposals, s)
		}
	}
	return in, number, nil
}

func (c *Coordinator) snapshot(id string, phases ...Phase) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	for _, p := range phases {
		if op.Phase == p {
			return op.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidPhase, op.Phase)
}

func (c *Coordinator) update(id string, fn func(*Operation) error) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err := fn(op); err != nil {
		return nil, err
	}
	op.UpdatedAt = c.now().UTC()
	return op.clone(), nil
}

func (c *Coordinator) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ops, id)
}

// pruneLocked forgets operations untouched for longer than the retention
// window. Applying operations are always kept.
func (c *Coordinator) pruneLocked(now time.Time) {
	for id, op := range c.ops {
		if op.Phase != PhaseApplying && now.Sub(op.UpdatedAt) > c.retention {
			delete(c.ops, id)
		}
	}
}
