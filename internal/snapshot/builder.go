// Package snapshot builds one normalized billing snapshot per refresh.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"propertyfees/internal/billing"
	"propertyfees/internal/core"
	"propertyfees/internal/log"
	"propertyfees/internal/vendor"
)

var ErrCancelled = errors.New("refresh cancelled")

// Fetcher is the vendor surface the builder needs. *vendor.Client implements it.
type Fetcher interface {
	FetchPaid(ctx context.Context, year int) (*vendor.PaidResponse, error)
	FetchPrepaid(ctx context.Context) (vendor.PrepaidResult, error)
	FetchPending(ctx context.Context, year int) (*vendor.ErpBillResponse, error)
}

// Result is the outcome of one category pipeline. Defaulted is set when the
// mapping is the category default because nothing could be fetched; Err keeps
// the fetch error, which may be set on a partial prepaid result too.
type Result[T any] struct {
	Mapping   core.Mapping[T]
	Defaulted bool
	Err       error
}

// UpdateError reports a pipeline that panicked.
type UpdateError struct {
	Category core.Category
	Value    any
	Stack    []byte
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s pipeline panicked: %v", e.Category, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *UpdateError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type Option func(*Builder)

// WithClock overrides the time source used for LastUpdate.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l.WithComponent(log.ComponentSnapshot) }
}

// Builder fetches and normalizes all three categories for a fixed year.
type Builder struct {
	fetcher Fetcher
	year    int
	now     func() time.Time
	logger  *log.Logger
}

func NewBuilder(f Fetcher, year int, opts ...Option) *Builder {
	b := &Builder{
		fetcher: f,
		year:    year,
		now:     time.Now,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Year returns the billing year this builder queries.
func (b *Builder) Year() int { return b.year }

// Build runs the three category pipelines concurrently. Vendor failures only
// default their own category. It returns an error when ctx is cancelled or a
// pipeline panics; no snapshot is produced in either case.
func (b *Builder) Build(ctx context.Context) (core.Snapshot, error) {
	var (
		paid    Result[core.PaidItem]
		prepaid Result[core.PrepaidItem]
		pending Result[core.PendingItem]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(core.Paid, func() { paid = b.Paid(gctx) }))
	g.Go(guard(core.Prepaid, func() { prepaid = b.Prepaid(gctx) }))
	g.Go(guard(core.Pending, func() { pending = b.Pending(gctx) }))
	if err := g.Wait(); err != nil {
		b.logger.ErrorContext(ctx, "Snapshot pipeline failed", log.FieldError, err)
		return core.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	snap := core.Snapshot{
		Paid:       paid.Mapping,
		Prepaid:    prepaid.Mapping,
		Pending:    pending.Mapping,
		Total:      billing.ComputeTotals(paid.Mapping, prepaid.Mapping, pending.Mapping),
		LastUpdate: b.now(),
		Year:       b.year,
	}
	for _, c := range []struct {
		cat       core.Category
		defaulted bool
		err       error
	}{
		{core.Paid, paid.Defaulted, paid.Err},
		{core.Prepaid, prepaid.Defaulted, prepaid.Err},
		{core.Pending, pending.Defaulted, pending.Err},
	} {
		if c.defaulted {
			snap.Fallbacks = append(snap.Fallbacks, c.cat)
			b.logger.WarnContext(ctx, "Category fell back to defaults",
				log.FieldCategory, c.cat,
				log.FieldError, c.err)
		} else if c.err != nil {
			b.logger.WarnContext(ctx, "Category partially fetched",
				log.FieldCategory, c.cat,
				log.FieldError, c.err)
		}
	}

	b.logger.InfoContext(ctx, "Snapshot built",
		log.FieldYear, b.year,
		log.FieldFallbacks, len(snap.Fallbacks),
		"prepaid_total", snap.Total.PrepaidTotal.String(),
		"paid_public_total", snap.Total.PaidPublicTotal.String(),
		"pending_total", snap.Total.PendingTotal.String())
	return snap, nil
}

// Paid fetches and normalizes the paid category, defaulting on failure.
func (b *Builder) Paid(ctx context.Context) Result[core.PaidItem] {
	resp, err := b.fetcher.FetchPaid(ctx, b.year)
	if err != nil {
		return Result[core.PaidItem]{Mapping: core.DefaultPaid(), Defaulted: true, Err: err}
	}
	return Result[core.PaidItem]{Mapping: billing.NormalizePaid(resp)}
}

// Prepaid waits for both balance requests before normalizing. It only counts
// as defaulted when neither request succeeded.
func (b *Builder) Prepaid(ctx context.Context) Result[core.PrepaidItem] {
	res, err := b.fetcher.FetchPrepaid(ctx)
	return Result[core.PrepaidItem]{
		Mapping:   billing.NormalizePrepaid(res),
		Defaulted: res.Residence == nil && res.Parking == nil,
		Err:       err,
	}
}

// Pending fetches and normalizes the pending category, defaulting on failure.
func (b *Builder) Pending(ctx context.Context) Result[core.PendingItem] {
	resp, err := b.fetcher.FetchPending(ctx, b.year)
	if err != nil {
		return Result[core.PendingItem]{Mapping: core.DefaultPending(), Defaulted: true, Err: err}
	}
	return Result[core.PendingItem]{Mapping: billing.NormalizePending(resp)}
}

func guard(cat core.Category, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &UpdateError{Category: cat, Value: r, Stack: debug.Stack()}
			}
		}()
		fn()
		return nil
	}
}
