package tablestore

import (
	"context"
	"errors"
	"time"
)

type observed struct {
	next Client
	obs  Observer
}

// WithObserver reports every operation of next to obs.
func WithObserver(next Client, obs Observer) Client {
	if obs == nil {
		return next
	}
	return &observed{next: next, obs: obs}
}

func (o *observed) report(table, op string, start time.Time, err error) {
	// ErrNoRows on delete is an expected outcome, not a failure
	if errors.Is(err, ErrNoRows) {
		err = nil
	}
	o.obs.ObserveTableOp(table, op, err, time.Since(start))
}

func (o *observed) Select(ctx context.Context, table string, dest any, q Query) error {
	start := time.Now()
	err := o.next.Select(ctx, table, dest, q)
	o.report(table, "select", start, err)
	return err
}

func (o *observed) Insert(ctx context.Context, table string, rows any) error {
	start := time.Now()
	err := o.next.Insert(ctx, table, rows)
	o.report(table, "insert", start, err)
	return err
}

func (o *observed) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error) {
	start := time.Now()
	n, err := o.next.Update(ctx, table, patch, filters...)
	o.report(table, "update", start, err)
	return n, err
}

func (o *observed) Delete(ctx context.Context, table string, model any, filters ...Filter) (int64, error) {
	start := time.Now()
	n, err := o.next.Delete(ctx, table, model, filters...)
	o.report(table, "delete", start, err)
	return n, err
}
