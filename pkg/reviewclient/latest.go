package reviewclient

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Latest.Do when a newer call was issued before
// this one finished.
var ErrSuperseded = errors.New("reviewclient: request superseded")

// Latest runs requests where only the most recent one matters, such as a
// review list following a sort selector. Starting a call cancels the context
// of the previous one, and a superseded call never returns its result.
type Latest[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Do runs fn with a context that is canceled when a newer call starts.
func (l *Latest[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	seq := l.seq
	l.cancel = cancel
	l.mu.Unlock()

	v, err := fn(ctx)

	l.mu.Lock()
	current := l.seq == seq
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !current {
		var zero T
		return zero, ErrSuperseded
	}
	return v, err
}
