// Package parallel runs index ranges and independent tasks across goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold.
// If below threshold, fn runs once over the whole range on the calling goroutine.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Run executes fn(i) for i in [0, n) on separate goroutines, bounded by
// maxWorkers (NumCPU when maxWorkers <= 0). A panic in a task is converted
// to a PanicError. The error of the lowest failing index is returned, so the
// result does not depend on scheduling.
func Run(n, maxWorkers int, op string, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	errs := make([]error, n)
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[idx] = errors.SafeExecute(op, func() error { return fn(idx) })
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
