package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a side effect whose failure must never reach the caller that scheduled it.
type Task func(ctx context.Context) error

// Dispatcher runs fire-and-forget tasks and reports their outcome to a log.
type Dispatcher interface {
	Dispatch(name string, task Task)
}

// Async runs every task in its own goroutine. Wait blocks until all dispatched tasks are done.
type Async struct {
	log     *zap.SugaredLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync returns a dispatcher whose tasks get a context bounded by timeout.
func NewAsync(log *zap.SugaredLogger, timeout time.Duration) *Async {
	return &Async{log: log, timeout: timeout}
}

func (d *Async) Dispatch(name string, task Task) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		run(ctx, d.log, name, task)
	}()
}

// Wait blocks until every dispatched task has returned or ctx is done.
func (d *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync runs tasks inline. It keeps the same error and panic isolation as Async.
type Sync struct {
	Log *zap.SugaredLogger
}

func (d Sync) Dispatch(name string, task Task) {
	run(context.Background(), d.Log, name, task)
}

func run(ctx context.Context, log *zap.SugaredLogger, name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("task panicked", "task", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := task(ctx); err != nil {
		log.Errorw("task failed", "task", name, "error", err, "duration", time.Since(start))
		return
	}
	log.Infow("task finished", "task", name, "duration", time.Since(start))
}
