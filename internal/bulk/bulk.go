// Package bulk runs one store operation over many references, either in order
// or through a bounded worker pool.
package bulk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// Operation configures a bulk run.
type Operation struct {
	// Jobs is the worker count. Zero means one worker per CPU.
	Jobs int
	// ContinueOnError keeps going after a failed item.
	ContinueOnError bool
	// Ordered forces sequential processing in input order. Operations whose
	// results depend on each other (appending to a ranked list) need it.
	Ordered bool
	Logger  *slog.Logger
}

// Result summarizes a bulk run.
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []ItemError
}

// ItemError records the failure of a single item.
type ItemError struct {
	Index int
	Item  string
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// ItemFunc processes one item. index is the item's position in the input.
type ItemFunc func(ctx context.Context, index int, item string) error

// Execute runs fn for every item and reports what happened. Cancelling ctx
// stops handing out new items; items never started count as skipped.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	if len(items) == 0 {
		return &Result{}
	}

	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(items) {
		jobs = len(items)
	}

	var result *Result
	if op.Ordered || jobs == 1 {
		result = op.executeSequential(ctx, items, fn)
	} else {
		result = op.executeParallel(ctx, items, fn, jobs)
	}

	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })
	result.Skipped = result.TotalItems - result.Succeeded - result.Failed
	return result
}

func (op *Operation) executeSequential(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{TotalItems: len(items)}

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := fn(ctx, i, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Index: i, Item: item, Err: err})
			op.logFailure(item, err)
			if !op.ContinueOnError {
				break
			}
			continue
		}
		result.Succeeded++
	}
	return result
}

func (op *Operation) executeParallel(ctx context.Context, items []string, fn ItemFunc, workers int) *Result {
	result := &Result{TotalItems: len(items)}

	type job struct {
		index int
		item  string
	}
	queue := make(chan job, len(items))
	for i, item := range items {
		queue <- job{index: i, item: item}
	}
	close(queue)

	var (
		succeeded int32
		failed    int32
		stop      atomic.Bool
		mu        sync.Mutex
		wg        sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if stop.Load() || ctx.Err() != nil {
					return
				}
				if err := fn(ctx, j.index, j.item); err != nil {
					atomic.AddInt32(&failed, 1)
					mu.Lock()
					result.Errors = append(result.Errors, ItemError{Index: j.index, Item: j.item, Err: err})
					mu.Unlock()
					op.logFailure(j.item, err)
					if !op.ContinueOnError {
						stop.Store(true)
					}
					continue
				}
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)
	return result
}

func (op *Operation) logFailure(item string, err error) {
	if op.Logger != nil {
		op.Logger.Debug("bulk item failed", "item", item, "error", err)
	}
}

// Err returns nil when every item succeeded. A single failure is returned
// as is so callers can still match its cause.
func (r *Result) Err() error {
	switch {
	case r.Failed == 0 && r.Skipped == 0:
		return nil
	case r.TotalItems == 1 && len(r.Errors) == 1:
		return r.Errors[0].Err
	case r.Failed == 0:
		return fmt.Errorf("%d of %d operations skipped", r.Skipped, r.TotalItems)
	case r.Succeeded == 0:
		return fmt.Errorf("all %d operations failed", r.Failed)
	default:
		return fmt.Errorf("partial success: %d succeeded, %d failed (out of %d)", r.Succeeded, r.Failed, r.TotalItems)
	}
}

// PrintSummary writes a human-readable summary when more than one item was
// processed or something failed.
func (r *Result) PrintSummary(w io.Writer) {
	if r.TotalItems <= 1 && r.Failed == 0 {
		return
	}
	switch {
	case r.Failed == 0 && r.Skipped == 0:
		fmt.Fprintf(w, "✓ All %d operations succeeded\n", r.TotalItems)
	case r.Succeeded == 0:
		fmt.Fprintf(w, "✗ %d failed, %d skipped (out of %d)\n", r.Failed, r.Skipped, r.TotalItems)
	default:
		fmt.Fprintf(w, "⚠ Partial success: %d succeeded, %d failed, %d skipped (out of %d)\n",
			r.Succeeded, r.Failed, r.Skipped, r.TotalItems)
	}

	shown := r.Errors
	if len(shown) > 10 {
		fmt.Fprintf(w, "Showing first 10 errors (of %d):\n", len(r.Errors))
		shown = shown[:10]
	}
	for _, e := range shown {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}
