package notification

import (
	"context"
	"errors"

	"deposit-reconciler-go/internal/models"
)

// Sink receives confirmed deposits.
type Sink interface {
	DepositConfirmed(ctx context.Context, result models.ReconcileResult) error
}

// Fanout delivers to every sink even when an earlier one fails.
type Fanout []Sink

func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) DepositConfirmed(ctx context.Context, result models.ReconcileResult) error {
	var errs []error
	for _, s := range f {
		if err := s.DepositConfirmed(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
