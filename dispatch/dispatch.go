// Package dispatch runs a per-item processor over an ordered list of corpus
// items on a bounded worker pool. Per-item faults, panics included, become
// data in the returned Results; they never abort sibling items.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rcap107/study-gittables/types"
	"golang.org/x/sync/errgroup"
)

var ErrPanic = errors.New("processor panicked")
var ErrItemTimeout = errors.New("item timed out")

type Status uint8

const (
	NotAttempted Status = iota
	Succeeded
	Failed
)

func (status Status) String() string {
	switch status {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// Result is the outcome for the item at Index of the dispatched list.
type Result[T any] struct {
	Index  int
	Item   types.Item
	Status Status
	Record T
	Err    error
}

// Processor handles a single item. It must not touch state shared with other
// invocations other than read-only data.
type Processor[T any] func(ctx context.Context, item types.Item) (T, error)

// Options bound the pool.
type Options struct {
	// Workers is the number of concurrent invocations; zero means
	// runtime.NumCPU().
	Workers int
	// ItemTimeout abandons an invocation that runs longer, recording it as
	// failed with ErrItemTimeout. Zero disables the limit.
	ItemTimeout time.Duration
	// OnResult is called once per finished item, from a single goroutine,
	// in completion order.
	OnResult func(index int, status Status, err error)
}

func (opts Options) workers() int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	return runtime.NumCPU()
}

// invoke runs proc for one item and converts panics into errors.
func invoke[T any](ctx context.Context, proc Processor[T],
	item types.Item) (record T, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, recovered,
				debug.Stack())
		}
	}()
	return proc(ctx, item)
}

type outcome[T any] struct {
	record T
	err    error
}

// invokeWithTimeout runs proc on its own goroutine when a timeout is set, so
// the worker can give up on a hung item and move on. The processor sees the
// deadline on its context and must not publish side effects once it expired.
func invokeWithTimeout[T any](ctx context.Context, proc Processor[T],
	item types.Item, timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return invoke(ctx, proc, item)
	}
	itemCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan outcome[T], 1)
	go func() {
		record, err := invoke(itemCtx, proc, item)
		done <- outcome[T]{record, err}
	}()
	select {
	case out := <-done:
		return out.record, out.err
	case <-itemCtx.Done():
		// An outcome that raced the deadline still counts.
		select {
		case out := <-done:
			return out.record, out.err
		default:
		}
		var zero T
		return zero, fmt.Errorf("%w after %v", ErrItemTimeout, timeout)
	}
}

// Run processes items with proc and returns exactly one Result per item, in
// input order regardless of completion order.
//
// Cancelling ctx stops scheduling: invocations already running finish, and
// every item not yet handed to a worker is reported as NotAttempted.
// Processors receive a context that is not cancelled by ctx, only by the
// item timeout.
func Run[T any](ctx context.Context, items []types.Item, proc Processor[T],
	opts Options) []Result[T] {
	results := make([]Result[T], len(items))
	for idx := range items {
		results[idx] = Result[T]{Index: idx, Item: items[idx],
			Status: NotAttempted}
	}
	if len(items) == 0 {
		return results
	}

	finished := make(chan Result[T], opts.workers())
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range finished {
			results[result.Index] = result
			if opts.OnResult != nil {
				opts.OnResult(result.Index, result.Status, result.Err)
			}
		}
	}()

	itemCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(opts.workers())
	for idx := range items {
		if ctx.Err() != nil {
			break
		}
		idx := idx
		// Go blocks until a worker slot frees up.
		g.Go(func() error {
			// The slot may have opened after a cancellation; honor it here.
			if ctx.Err() != nil {
				return nil
			}
			record, err := invokeWithTimeout(itemCtx, proc, items[idx],
				opts.ItemTimeout)
			result := Result[T]{Index: idx, Item: items[idx],
				Status: Succeeded, Record: record}
			if err != nil {
				result.Status = Failed
				result.Err = err
			}
			finished <- result
			// Failures are data; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()
	close(finished)
	<-collected
	return results
}
