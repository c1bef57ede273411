package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Job is a confirmed operation applying in the background.
type Job struct {
	OperationID string

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	outcome *Outcome
	err     error
}

// Events streams progress. The channel is closed when the job finishes.
func (j *Job) Events() <-chan Event { return j.events }

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its outcome.
func (j *Job) Wait() (*Outcome, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome, j.err
}

// emit never blocks: the buffer holds every event the run can produce, so
// Apply works without anyone reading Events.
func (j *Job) emit(ev Event) {
	j.events <- ev
}

// eventCapacity bounds the events one run emits: lock, verify, locate, move,
// provision, primary, its history and finished, then per cascade the write
// and its history, plus a move and a provision for a cascade onto the project.
func eventCapacity(op *Operation) int {
	n := 8
	for _, s := range op.Confirmed {
		n += 2
		if s.Target.Kind == status.KindProject {
			n += 2
		}
	}
	return n
}

// Apply applies a confirmed operation and waits for the outcome.
func (c *Coordinator) Apply(ctx context.Context, id string) (*Outcome, error) {
	job, err := c.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.Wait()
}

// Start moves a confirmed operation into the applying phase and runs it in
// the background. Once started the operation cannot be cancelled; ctx only
// carries values, its cancellation is ignored.
func (c *Coordinator) Start(ctx context.Context, id string) (*Job, error) {
	op, err := c.update(id, func(o *Operation) error {
		if o.Phase != PhaseConfirmed {
			return fmt.Errorf("%w: %s", ErrInvalidPhase, o.Phase)
		}
		o.Phase = PhaseApplying
		return nil
	})
	if err != nil {
		return nil, err
	}

	job := &Job{
		OperationID: id,
		events:      make(chan Event, eventCapacity(op)),
		done:        make(chan struct{}),
	}

	go func() {
		outcome, err := c.apply(context.WithoutCancel(ctx), op, job)
		c.finish(id, outcome)
		job.mu.Lock()
		job.outcome, job.err = outcome, err
		job.mu.Unlock()
		close(job.events)
		close(job.done)
	}()
	return job, nil
}

func (c *Coordinator) finish(id string, outcome *Outcome) {
	_, _ = c.update(id, func(o *Operation) error {
		o.Outcome = outcome
		if outcome.Result == ResultFailed {
			o.Phase = PhaseFailed
		} else {
			o.Phase = PhaseApplied
		}
		return nil
	})
}

type applyRun struct {
	c       *Coordinator
	op      *Operation
	job     *Job
	span    trace.Span
	outcome *Outcome
}

func (r *applyRun) event(step Step, ref status.Ref, state MutationState, msg string) {
	r.job.emit(Event{OperationID: r.op.ID, Step: step, Ref: ref, State: state, Message: msg, At: r.c.now().UTC()})
}

func (r *applyRun) record(m Mutation) {
	if m.err != nil {
		m.Error = m.err.Error()
	}
	r.outcome.Mutations = append(r.outcome.Mutations, m)
	r.c.metrics.ObserveMutation(string(m.Step), string(m.State))
	r.event(m.Step, m.Ref, m.State, m.Error)
	if m.State == MutationFailed {
		r.c.logger.Warn("status change step failed",
			"operation", r.op.ID, "number", r.op.ProjectNumber, "step", m.Step, "ref", m.Ref.String(), "error", m.err)
	}
}

// fail ends the run before anything was committed.
func (r *applyRun) fail(step Step, kind error, err error) (*Outcome, error) {
	ferr := &faults.Error{Kind: kind, Number: r.op.ProjectNumber, Step: string(step), Err: err}
	r.outcome.Result = ResultFailed
	r.outcome.Error = ferr.Error()
	r.span.RecordError(ferr)
	r.span.SetStatus(codes.Error, ferr.Error())
	r.c.logger.Error("status change failed",
		"operation", r.op.ID, "number", r.op.ProjectNumber, "step", step, "error", err)
	return r.outcome, ferr
}

func (c *Coordinator) apply(ctx context.Context, op *Operation, job *Job) (*Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "lifecycle.apply", trace.WithAttributes(
		attribute.String("feeflow.operation", op.ID),
		attribute.String("feeflow.ref", op.Primary.String()),
		attribute.String("feeflow.to", string(op.To)),
	))
	defer span.End()

	started := c.now()
	r := &applyRun{
		c:       c,
		op:      op,
		job:     job,
		span:    span,
		outcome: &Outcome{OperationID: op.ID, Mutations: []Mutation{}, StartedAt: started.UTC()},
	}
	defer func() {
		r.outcome.FinishedAt = c.now().UTC()
		c.metrics.ObserveOperation(string(op.Primary.Kind), string(r.outcome.Result), c.now().Sub(started).Seconds())
		r.event(StepFinished, op.Primary, "", string(r.outcome.Result))
	}()

	release, err := c.locks.Lock(ctx, op.ProjectNumber)
	if err != nil {
		return r.fail(StepLock, faults.ErrConflict, err)
	}
	defer release()
	r.event(StepLock, op.Primary, MutationSucceeded, op.ProjectNumber)

	current, err := c.store.ReadStatus(ctx, op.Primary)
	if err != nil {
		return r.fail(StepVerify, faults.Classify(err), err)
	}
	if current != op.From {
		return r.fail(StepVerify, faults.ErrConflict,
			fmt.Errorf("%w: %s is %s, analysed as %s", ErrStaleStatus, op.Primary, current, op.From))
	}
	r.event(StepVerify, op.Primary, MutationSucceeded, "")

	if op.Analysis.FolderChangeRequired {
		loc, err := c.locator.Locate(ctx, op.ProjectNumber)
		if err != nil {
			return r.fail(StepLocate, faults.Classify(err), err)
		}
		r.event(StepLocate, op.Primary, MutationSucceeded, loc.Path)

		moved, err := c.mover.Move(ctx, loc.Path, op.Analysis.NewFolder)
		if err != nil {
			c.metrics.ObserveMove(string(op.Analysis.NewFolder), "failed")
			return r.fail(StepMove, faults.Classify(err), err)
		}
		c.metrics.ObserveMove(string(op.Analysis.NewFolder), moveOutcome(moved.Moved))
		r.outcome.Move = moved
		r.record(Mutation{Step: StepMove, Ref: op.Primary, Path: moved.NewPath, State: MutationSucceeded})
		if moved.ProvisionErr != "" {
			r.record(Mutation{
				Step: StepProvision, Ref: op.Primary, Path: moved.NewPath, State: MutationFailed,
				err: &faults.Error{Kind: faults.ErrPartialApplication, Number: op.ProjectNumber, Step: string(StepProvision),
					Err: errors.New(moved.ProvisionErr)},
			})
		} else if len(moved.Provisioned) > 0 {
			r.record(Mutation{Step: StepProvision, Ref: op.Primary, Path: moved.NewPath, State: MutationSucceeded})
		}
	}

	primary := Mutation{Step: StepPrimary, Ref: op.Primary, From: op.From, To: op.To}
	if err := c.store.WriteStatus(ctx, op.Primary, op.To); err != nil {
		primary.State = MutationFailed
		primary.err = &faults.Error{Kind: faults.Classify(err), Number: op.ProjectNumber, Step: string(StepPrimary), Err: err}
		r.record(primary)
		for _, s := range op.Confirmed {
			r.record(Mutation{Step: StepCascade, Ref: s.Target, From: s.From, To: s.To, State: MutationSkipped})
		}
		return r.conclude()
	}
	primary.State = MutationSucceeded
	r.record(primary)

	written := []Mutation{primary}
	for _, s := range op.Confirmed {
		m := Mutation{Step: StepCascade, Ref: s.Target, From: s.From, To: s.To}
		m.err = c.writeCascade(ctx, r, s.Target, s.From, s.To)
		if m.err != nil {
			m.State = MutationFailed
		} else {
			m.State = MutationSucceeded
			written = append(written, m)
		}
		r.record(m)
	}

	trigger := op.Primary
	for _, m := range written {
		entry := &history.Entry{
			Ref:         m.Ref,
			Old:         m.From,
			New:         m.To,
			Origin:      history.OriginDirect,
			OperationID: op.ID,
		}
		if m.Step == StepCascade {
			entry.Origin = history.OriginCascade
			entry.TriggeredBy = &trigger
		}
		h := Mutation{Step: StepHistory, Ref: m.Ref, From: m.From, To: m.To, State: MutationSucceeded}
		if err := c.history.Record(ctx, entry); err != nil {
			h.State = MutationFailed
			h.err = &faults.Error{Kind: faults.ErrPartialApplication, Number: op.ProjectNumber, Step: string(StepHistory), Err: err}
		}
		r.record(h)
	}

	return r.conclude()
}

// writeCascade re-reads a secondary entity and writes it only if it still
// holds the status the suggestion was computed from. A cascade onto the
// project moves its folder first, like a direct change.
func (c *Coordinator) writeCascade(ctx context.Context, r *applyRun, ref status.Ref, from, to status.Status) error {
	number := r.op.ProjectNumber
	current, err := c.store.ReadStatus(ctx, ref)
	if err != nil {
		return &faults.Error{Kind: faults.Classify(err), Number: number, Step: string(StepCascade), Err: err}
	}
	if current != from {
		return &faults.Error{Kind: faults.ErrConflict, Number: number, Step: string(StepCascade),
			Err: fmt.Errorf("%w: %s is %s, analysed as %s", ErrStaleStatus, ref, current, from)}
	}

	if ref.Kind == status.KindProject {
		if err := c.moveForCascade(ctx, r, ref, from, to); err != nil {
			return err
		}
	}

	if err := c.store.WriteStatus(ctx, ref, to); err != nil {
		return &faults.Error{Kind: faults.Classify(err), Number: number, Step: string(StepCascade), Err: err}
	}
	return nil
}

func (c *Coordinator) moveForCascade(ctx context.Context, r *applyRun, ref status.Ref, from, to status.Status) error {
	folders := c.analyzer.Folders()
	oldRoot, err := folders.ResolveFolder(from)
	if err != nil {
		return err
	}
	newRoot, err := folders.ResolveFolder(to)
	if err != nil {
		return err
	}
	if oldRoot == newRoot {
		return nil
	}

	loc, err := c.locator.Locate(ctx, ref.ID)
	if err != nil {
		return &faults.Error{Kind: faults.Classify(err), Number: ref.ID, Step: string(StepLocate), Err: err}
	}
	moved, err := c.mover.Move(ctx, loc.Path, newRoot)
	if err != nil {
		c.metrics.ObserveMove(string(newRoot), "failed")
		return err
	}
	c.metrics.ObserveMove(string(newRoot), moveOutcome(moved.Moved))
	r.outcome.Move = moved
	r.record(Mutation{Step: StepMove, Ref: ref, Path: moved.NewPath, State: MutationSucceeded})
	if moved.ProvisionErr != "" {
		r.record(Mutation{
			Step: StepProvision, Ref: ref, Path: moved.NewPath, State: MutationFailed,
			err: &faults.Error{Kind: faults.ErrPartialApplication, Number: ref.ID, Step: string(StepProvision),
				Err: errors.New(moved.ProvisionErr)},
		})
	}
	return nil
}

// conclude derives the result from the individual mutations. Nothing
// committed is a failure; anything committed alongside a failure or skip is
// applied with warnings.
func (r *applyRun) conclude() (*Outcome, error) {
	var failed []error
	incomplete := false
	for _, m := range r.outcome.Mutations {
		switch m.State {
		case MutationFailed:
			failed = append(failed, m.err)
			incomplete = true
		case MutationSkipped:
			incomplete = true
		}
	}

	switch {
	case !incomplete:
		r.outcome.Result = ResultApplied
		r.c.logger.Info("status change applied",
			"operation", r.op.ID, "number", r.op.ProjectNumber, "ref", r.op.Primary.String(), "to", r.op.To)
		return r.outcome, nil
	case !r.outcome.Committed():
		return r.fail(StepPrimary, faults.Classify(errors.Join(failed...)), errors.Join(failed...))
	default:
		r.outcome.Result = ResultAppliedWithWarnings
		err := &faults.Error{Kind: faults.ErrPartialApplication, Number: r.op.ProjectNumber, Step: string(StepFinished),
			Err: errors.Join(failed...)}
		r.outcome.Error = err.Error()
		r.span.RecordError(err)
		r.c.logger.Warn("status change applied with warnings",
			"operation", r.op.ID, "number", r.op.ProjectNumber, "failed", len(failed))
		return r.outcome, err
	}
}

func moveOutcome(moved bool) string {
	if moved {
		return "moved"
	}
	return "already_in_place"
}
