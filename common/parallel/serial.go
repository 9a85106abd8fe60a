package parallel

import (
	"context"
	"runtime"
	"sync"
)

type SerialOption struct {
	Routines int // concurrent routines, GOMAXPROCS by default
	Window   int // max distance between the next task to collect and the last dispatched one, 0 for none
}

// Normalize bounds the option by the number of tasks: 0 < Routines <= tasks, and Routines <= Window <= tasks
// unless the window is disabled.
func (opt *SerialOption) Normalize(tasks int) {
	if opt.Routines == 0 {
		opt.Routines = runtime.GOMAXPROCS(0)
	}
	opt.Routines = min(opt.Routines, tasks)

	if opt.Window == 0 {
		return
	}

	opt.Window = min(max(opt.Window, opt.Routines), tasks)
}

// Serial executes tasks with a pool of routines and hands results to ParallelCollect in task order.
// The first error returned by either ParallelDo or ParallelCollect stops dispatching, cancels the context
// passed to running tasks, and is returned once all routines have terminated.
func Serial(ctx context.Context, parallelizable Interface, tasks int, option ...SerialOption) error {
	if tasks <= 0 {
		return nil
	}

	var opt SerialOption
	if len(option) > 0 {
		opt = option[0]
	}
	opt.Normalize(tasks)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPool(parallelizable, tasks, opt)
	p.start(ctx, opt.Routines)

	err := p.collect(ctx)

	cancel()
	p.wg.Wait()

	return err
}

// pool keeps at most inflight tasks dispatched and not yet collected, so neither channel can block
// a routine once collecting stopped.
type pool struct {
	impl     Interface
	tasks    int
	inflight int
	windowed bool

	taskCh   chan int
	resultCh chan *Result
	wg       sync.WaitGroup

	dispatched int
}

func newPool(impl Interface, tasks int, opt SerialOption) *pool {
	inflight := max(opt.Routines, opt.Window)

	return &pool{
		impl:     impl,
		tasks:    tasks,
		inflight: inflight,
		windowed: opt.Window > 0,
		taskCh:   make(chan int, inflight),
		resultCh: make(chan *Result, inflight),
	}
}

func (p *pool) start(ctx context.Context, routines int) {
	for i := 0; i < routines; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}

	for p.dispatched < p.inflight && p.dispatched < p.tasks {
		p.dispatch()
	}
}

func (p *pool) dispatch() {
	p.taskCh <- p.dispatched
	p.dispatched++
}

func (p *pool) work(ctx context.Context, routine int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.taskCh:
			val, err := p.impl.ParallelDo(ctx, routine, task)
			p.resultCh <- &Result{routine, task, val, err}
			if err != nil {
				return
			}
		}
	}
}

func (p *pool) collect(ctx context.Context) error {
	pending := make(map[int]*Result)
	next := 0

	for next < p.tasks {
		var result *Result
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result = <-p.resultCh:
		}

		if result.err != nil {
			return result.err
		}

		pending[result.Task] = result

		// without a window, every received result frees a slot
		if !p.windowed && p.dispatched < p.tasks {
			p.dispatch()
		}

		for ready, ok := pending[next]; ok; ready, ok = pending[next] {
			if err := p.impl.ParallelCollect(ready); err != nil {
				return err
			}

			delete(pending, next)
			next++

			// with a window, only collecting moves it forward
			if p.windowed && p.dispatched < p.tasks {
				p.dispatch()
			}
		}
	}

	return nil
}
