package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "purchasegate/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32

	mu    sync.Mutex
	codes map[dErrors.Code]int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// Code returns how many operations failed with the given domain code.
func (r *ConcurrentResult) Code(code dErrors.Code) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[code]
}

// isConflict reports single-use and uniqueness violations: the expected loser
// outcome of a race on the same resource.
func isConflict(err error) bool {
	return errors.Is(err, dErrors.ErrConflict) ||
		errors.Is(err, dErrors.ErrAlreadyRedeemed) ||
		errors.Is(err, dErrors.ErrAlreadyOwned) ||
		errors.Is(err, dErrors.ErrDuplicatePurchase) ||
		errors.Is(err, dErrors.ErrTokenAlreadyResolved)
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are categorized into success, conflict, not_found, or generic error,
// and additionally counted per domain code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds atomic.Int32
	res := &ConcurrentResult{codes: make(map[dErrors.Code]int32)}

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			if err != nil {
				res.mu.Lock()
				res.codes[dErrors.CodeOf(err)]++
				res.mu.Unlock()
			}
			switch {
			case err == nil:
				successes.Add(1)
			case isConflict(err):
				conflicts.Add(1)
			case errors.Is(err, dErrors.ErrNotFound), errors.Is(err, dErrors.ErrTokenNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	res.Successes = successes.Load()
	res.Errors = errs.Load()
	res.Conflicts = conflicts.Load()
	res.NotFounds = notFounds.Load()
	return res
}
