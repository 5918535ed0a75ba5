package donation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome classifies the terminal state of a notification.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// Result is the terminal result of one dispatched notification.
type Result struct {
	Donation Donation
	Outcome  Outcome
	Err      error
	Elapsed  time.Duration
}

// Dispatcher sends notifications in detached goroutines. Each call is bounded
// by a timeout, its result is reported exactly once through the configured
// hooks and never retried.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	lg       *zap.Logger
	onResult []func(context.Context, Result)

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Hooks run after the result is logged,
// in the notification goroutine.
func NewDispatcher(n Notifier, timeout time.Duration, lg *zap.Logger, hooks ...func(context.Context, Result)) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		timeout:  timeout,
		lg:       lg,
		onResult: hooks,
	}
}

// Dispatch starts delivering d and returns immediately. The notification keeps
// the values of ctx (trace, logger) but not its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, don Donation, done func(Result)) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		res := d.send(ctx, don)
		d.report(ctx, res)
		if done != nil {
			done(res)
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, don Donation) (res Result) {
	res.Donation = don
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = &NotificationError{Err: panicError{value: r}}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.notifier.Notify(ctx, don)
	switch {
	case err == nil:
		res.Outcome = OutcomeSent
	case ctx.Err() != nil:
		res.Outcome = OutcomeTimeout
		res.Err = err
	default:
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return res
}

// report is the only place notification results surface.
func (d *Dispatcher) report(ctx context.Context, res Result) {
	fields := []zap.Field{
		zap.String("order_ref", res.Donation.OrderID),
		zap.String("donation_amount", res.Donation.Amount.StringFixed(2)),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Err != nil {
		d.lg.Warn("Donation notification not delivered", append(fields, zap.Error(res.Err))...)
	} else {
		d.lg.Info("Donation notification delivered", fields...)
	}
	for _, h := range d.onResult {
		h(ctx, res)
	}
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("notifier panic: %v", p.value)
}
