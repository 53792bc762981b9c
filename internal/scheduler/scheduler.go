// Package scheduler runs the ingestion and generation jobs on fixed
// intervals. Each job carries an instance cap: when a tick fires while
// the cap is reached, that tick is dropped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic task.
type Job struct {
	Name         string
	Every        time.Duration
	MaxInstances int
	Run          func(ctx context.Context)
}

// Scheduler drives registered jobs until stopped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron.New(), ctx: ctx, cancel: cancel}
}

// Add registers a job. The job first fires one interval after Start.
func (s *Scheduler) Add(job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.MaxInstances <= 0 {
		job.MaxInstances = 1
	}

	gate := newGate(job.MaxInstances)
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", job.Every), func() {
		// cron runs each tick in its own goroutine; the gate only
		// decides whether this tick proceeds.
		if !gate.tryAcquire() {
			log.Printf("scheduler: dropping %s tick, %d instances already running", job.Name, job.MaxInstances)
			return
		}
		defer gate.release()
		job.Run(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", job.Name, err)
	}
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// gate caps concurrent instances of one job.
type gate struct {
	max     int32
	running int32
}

func newGate(max int) *gate {
	return &gate{max: int32(max)}
}

func (g *gate) tryAcquire() bool {
	for {
		n := atomic.LoadInt32(&g.running)
		if n >= g.max {
			return false
		}
		if atomic.CompareAndSwapInt32(&g.running, n, n+1) {
			return true
		}
	}
}

func (g *gate) release() {
	atomic.AddInt32(&g.running, -1)
}
