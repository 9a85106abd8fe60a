package parallel

import "context"

// Result is the outcome of one task.
type Result struct {
	Routine int
	Task    int
	Value   interface{}
	err     error
}

// Interface is implemented by work split into numbered tasks. ParallelDo runs concurrently,
// ParallelCollect is called from a single goroutine in task order.
type Interface interface {
	ParallelDo(ctx context.Context, routine, task int) (interface{}, error)
	ParallelCollect(result *Result) error
}
