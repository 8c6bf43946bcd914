// Package recorder fans finished calculations out to the configured journal
// backends.
package recorder

import (
	"context"
	"errors"

	"planner/internal/core"
)

// Recorder persists calculation events somewhere outside the session.
type Recorder interface {
	RecordCalculation(ctx context.Context, e core.CalculationEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) RecordCalculation(context.Context, core.CalculationEvent) error { return nil }
func (Noop) Close() error                                                   { return nil }

// Multi records to every backend and joins their errors. One failing
// backend does not stop the others.
type Multi []Recorder

func (m Multi) RecordCalculation(ctx context.Context, e core.CalculationEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordCalculation(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publisher adapts the AMQP client, whose method name says what it does.
type publisher interface {
	PublishCalculation(ctx context.Context, e core.CalculationEvent) error
	Close() error
}

type amqpRecorder struct {
	p publisher
}

func (a amqpRecorder) RecordCalculation(ctx context.Context, e core.CalculationEvent) error {
	return a.p.PublishCalculation(ctx, e)
}

func (a amqpRecorder) Close() error { return a.p.Close() }
