package notifier

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
)

// Result is what a detached notification reports back. It only ever
// reaches the dispatcher's sink, never the submitter.
type Result struct {
	Tenant   models.Tenant
	Err      error
	Duration time.Duration
}

// Dispatcher runs notifications as detached tasks. Dispatch returns
// immediately; the outcome is observed only by Sink.
type Dispatcher struct {
	Notifier Notifier
	Timeout  time.Duration
	Sink     func(Result)

	wg sync.WaitGroup
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{Notifier: n, Timeout: config.NotifyTimeout, Sink: LogResult}
}

// LogResult is the default sink.
func LogResult(r Result) {
	if r.Err != nil {
		log.Printf("WARNING: Notification failed but continuing (room %s): %v", r.Tenant.Room, r.Err)
		return
	}
	log.Printf("INFO: Notification delivered for room %s in %s", r.Tenant.Room, r.Duration)
}

// Dispatch starts the notification in its own goroutine with its own
// context, so neither the caller's cancellation nor its latency couple the
// two flows.
func (d *Dispatcher) Dispatch(analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) {
	if d == nil || d.Notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		timeout := d.Timeout
		if timeout <= 0 {
			timeout = config.NotifyTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("notifier panicked: %v", r)
				}
			}()
			err = d.Notifier.Notify(ctx, analysis, originalMessage, tenant)
		}()

		sink := d.Sink
		if sink == nil {
			sink = LogResult
		}
		sink(Result{Tenant: tenant, Err: err, Duration: time.Since(start)})
	}()
}

// Wait blocks until every dispatched notification finished. Used on
// shutdown and in tests; the submission path never calls it.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
