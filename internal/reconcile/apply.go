package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
)

// Store is the part of records.Store the reconciler drives.
type Store interface {
	Worksheet(ctx context.Context, ws string) (schema.Worksheet, error)
	Text(w schema.Worksheet, rec records.Record) map[string]string
	UpdateByIndex(ctx context.Context, ws string, index int, rec records.Record) error
	DeleteByIndex(ctx context.Context, ws string, index int) error
}

// Result reports what Apply did.
type Result struct {
	NoChanges   bool
	OperationID string
	// Deleted and Updated hold original snapshot indices in the order applied.
	Deleted []int
	Updated []int
	// Skipped counts planned changes not applied in ModeFirstChange.
	Skipped int
}

// Reconciler applies snapshot edits to a store.
type Reconciler struct {
	store  Store
	mode   Mode
	newID  func() string
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMode sets the apply mode. Defaults to ModeBatch.
func WithMode(m Mode) Option {
	return func(r *Reconciler) { r.mode = m }
}

// WithOperationIDs replaces the UUIDv7 operation id source.
func WithOperationIDs(gen func() string) Option {
	return func(r *Reconciler) { r.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New returns a Reconciler over store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		mode:   ModeBatch,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan diffs original against edited using the worksheet's current layout.
func (r *Reconciler) Plan(ctx context.Context, ws string, original, edited []records.Row) (Plan, error) {
	w, err := r.store.Worksheet(ctx, ws)
	if err != nil {
		return Plan{}, err
	}
	return Diff(w, r.store.Text, original, edited)
}

// Apply writes the difference between original and edited to ws. On error
// the Result lists the steps that completed before it.
func (r *Reconciler) Apply(ctx context.Context, ws string, original, edited []records.Row) (Result, error) {
	plan, err := r.Plan(ctx, ws, original, edited)
	if err != nil {
		return Result{}, err
	}
	if plan.Empty() {
		r.logger.Info("snapshot unchanged", "worksheet", ws)
		return Result{NoChanges: true}, nil
	}

	steps := plan.Steps(r.mode)
	res := Result{
		OperationID: r.newID(),
		Deleted:     []int{},
		Updated:     []int{},
		Skipped:     len(plan.Deletes) + len(plan.Updates) - len(steps),
	}
	ctx = records.WithOperation(ctx, res.OperationID)

	for _, step := range steps {
		switch step.Kind {
		case StepDelete:
			if err := r.store.DeleteByIndex(ctx, ws, step.Target); err != nil {
				return res, fmt.Errorf("delete row %d: %w", step.Index, err)
			}
			res.Deleted = append(res.Deleted, step.Index)
		case StepUpdate:
			stepCtx := records.WithPatch(ctx, step.patchJSON())
			if err := r.store.UpdateByIndex(stepCtx, ws, step.Target, step.Update.Record); err != nil {
				return res, fmt.Errorf("update row %d: %w", step.Index, err)
			}
			res.Updated = append(res.Updated, step.Index)
		}
		r.logger.Debug("reconcile step", "worksheet", ws, "kind", step.Kind, "index", step.Index, "target", step.Target)
	}

	r.logger.Info("snapshot reconciled",
		"worksheet", ws,
		"deleted", len(res.Deleted),
		"updated", len(res.Updated),
		"skipped", res.Skipped,
	)
	return res, nil
}
