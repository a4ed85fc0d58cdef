package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder turns audit calls into Events and delivers them to every sink.
//
// Synchronous by default: each call writes to all sinks before returning and
// reports their joined errors. With WithAsync, calls enqueue and return
// immediately; one worker drains the queue in order and a full queue drops
// the event with ErrQueueFull.
type Recorder struct {
	sinks  []Sink
	logger *zap.Logger
	newID  func() string
	onDrop func()

	queue  chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for asynchronous write failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l.Named("audit")
		}
	}
}

// WithAsync enables queued delivery with the given buffer size.
func WithAsync(buffer int) Option {
	return func(r *Recorder) {
		if buffer > 0 {
			r.queue = make(chan Event, buffer)
		}
	}
}

// WithIDGenerator overrides invocation ID generation (UUIDv4 by default).
func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithDropHook registers a callback invoked for every event dropped because
// the async queue was full.
func WithDropHook(fn func()) Option {
	return func(r *Recorder) {
		r.onDrop = fn
	}
}

// NewRecorder creates a recorder delivering to sinks.
func NewRecorder(sinks []Sink, opts ...Option) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		logger: zap.NewNop(),
		newID:  func() string { return uuid.New().String() },
		onDrop: func() {},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.queue != nil {
		r.done = make(chan struct{})
		go r.drain()
	}
	return r
}

// RecordInvocation records the start of a command and returns its ID.
func (r *Recorder) RecordInvocation(ctx context.Context, commandType, signature string, at time.Time) (string, error) {
	id := r.newID()
	err := r.emit(ctx, Event{
		Kind:         KindInvocation,
		InvocationID: id,
		CommandType:  commandType,
		Instruction:  signature,
		At:           at,
	})
	return id, err
}

// RecordStep records one intermediate result of an invocation.
func (r *Recorder) RecordStep(ctx context.Context, invocationID, result string, at time.Time) error {
	return r.emit(ctx, Event{Kind: KindStep, InvocationID: invocationID, Result: result, At: at})
}

// RecordOutcome records the final result of an invocation.
func (r *Recorder) RecordOutcome(ctx context.Context, invocationID, result string, at time.Time) error {
	return r.emit(ctx, Event{Kind: KindOutcome, InvocationID: invocationID, Result: result, At: at})
}

func (r *Recorder) emit(ctx context.Context, e Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRecorderClosed
	}

	if r.queue == nil {
		return r.write(ctx, e)
	}

	select {
	case r.queue <- e:
		return nil
	default:
		r.onDrop()
		return fmt.Errorf("%w: dropped %s for %s", ErrQueueFull, e.Kind, e.InvocationID)
	}
}

func (r *Recorder) write(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// drain delivers queued events until the queue is closed. Events outlive the
// request that produced them, so writes use a background context.
func (r *Recorder) drain() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.write(context.Background(), e); err != nil {
			r.logger.Warn("audit write failed",
				zap.String("kind", string(e.Kind)),
				zap.String("invocation.id", e.InvocationID),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events, flushes the queue and closes sinks that
// implement io.Closer. If ctx expires before the queue drains, Close returns
// ctx.Err() and leaves the sinks open.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	if r.done != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
