package ordkv

import (
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// forEachParallel runs f for every index in [0, n) on at most workers
// goroutines and returns the sum of the counts the tasks report. A failing
// task does not stop its siblings; failures go to onErr.
func forEachParallel(n, workers int, f func(i int) (int, error), onErr func(i int, err error)) int {
	var total atomic.Int64
	p := pool.New().WithMaxGoroutines(max(1, workers))
	for i := 0; i < n; i++ {
		p.Go(func() {
			c, err := f(i)
			if err != nil {
				onErr(i, err)
			}
			total.Add(int64(c))
		})
	}
	p.Wait()
	return int(total.Load())
}
