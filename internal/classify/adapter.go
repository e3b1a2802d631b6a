package classify

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports a classifier failure or timeout. Callers fall back to
// a neutral label instead of failing the enclosing operation.
var ErrUnavailable = errors.New("classifier unavailable")

// Adapter wraps a classifier func with a bounded call budget.
type Adapter struct {
	fn      Func
	timeout time.Duration
}

// NewAdapter builds an adapter around fn.
func NewAdapter(fn Func, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Adapter{fn: fn, timeout: timeout}
}

// Classify runs the classifier within the configured timeout. Any failure,
// including expiry, surfaces as ErrUnavailable.
func (a *Adapter) Classify(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := a.fn(ctx, text)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return Result{}, errors.Join(ErrUnavailable, out.err)
		}
		return out.result, nil
	case <-ctx.Done():
		return Result{}, errors.Join(ErrUnavailable, ctx.Err())
	}
}
