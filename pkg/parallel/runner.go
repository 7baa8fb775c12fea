// Package parallel fans independent tasks out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Runner executes fn for every task index in [0, tasks)
type Runner interface {
	Run(tasks int, fn func(task int) error) error
}

// Pool runs tasks on up to Workers goroutines. Tasks must write disjoint
// output. The returned error is the one of the lowest failing task index,
// so results do not depend on scheduling.
type Pool struct {
	Workers int
}

// NewPool sizes a pool to GOMAXPROCS when workers <= 0
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{Workers: workers}
}

func (p *Pool) Run(tasks int, fn func(task int) error) error {
	if tasks <= 0 {
		return nil
	}
	workers := min(max(p.Workers, 1), tasks)
	if workers == 1 {
		return Sequential{}.Run(tasks, fn)
	}

	errs := make([]error, tasks)
	perWorker := (tasks + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		t0 := w * perWorker
		if t0 >= tasks {
			break
		}
		t1 := min(t0+perWorker, tasks)
		wg.Add(1)
		go func(t0, t1 int) {
			defer wg.Done()
			for t := t0; t < t1; t++ {
				if errs[t] = fn(t); errs[t] != nil {
					return
				}
			}
		}(t0, t1)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Sequential runs tasks in order on the calling goroutine
type Sequential struct{}

func (Sequential) Run(tasks int, fn func(task int) error) error {
	for t := 0; t < tasks; t++ {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Run uses r, or runs sequentially when r is nil
func Run(r Runner, tasks int, fn func(task int) error) error {
	if r == nil {
		r = Sequential{}
	}
	return r.Run(tasks, fn)
}
