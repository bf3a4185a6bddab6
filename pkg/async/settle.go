package async

import (
	"context"
	"sync"
)

// Result is the settled outcome of one item processed by AllSettled.
type Result[T any, U any] struct {
	Input T
	Value U
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[T, U]) OK() bool { return r.Err == nil }

// AllSettled applies fn to every input with at most limit calls in flight and
// waits for all of them. It never fails as a whole: each item's value or error
// (including a recovered panic) is reported in its Result, in input order.
// A limit below 1 means one call at a time.
//
// When ctx is cancelled, items that have not started yet settle with ctx.Err().
func AllSettled[T any, U any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) (U, error)) []Result[T, U] {
	if limit < 1 {
		limit = 1
	}

	results := make([]Result[T, U], len(inputs))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, in := range inputs {
		results[i].Input = in

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, in T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Value, results[i].Err = call(ctx, in, fn)
		}(i, in)
	}

	wg.Wait()
	return results
}

// Partition splits settled results into successes and failures.
func Partition[T any, U any](results []Result[T, U]) (ok, failed []Result[T, U]) {
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}
	return ok, failed
}
