package converter

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("scheduler is shutting down")

// Task is one unit of work, run on its own goroutine once a slot frees up.
type Task func(ctx context.Context)

type queued struct {
	id   string
	task Task
}

// Scheduler runs submitted tasks with at most a fixed number at once.
// Submit never blocks; tasks beyond capacity wait in submission order.
// The queue has no bound.
type Scheduler struct {
	sem     *semaphore.Weighted
	workers int
	log     logrus.FieldLogger

	// OnDrop is called for each task still queued when Shutdown gives up.
	OnDrop func(id string)

	mu      sync.Mutex
	queue   []queued
	pending int // queued plus the one waiting in dispatch
	closing bool
	wake    chan struct{}

	wg         sync.WaitGroup
	dispatched chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewScheduler(workers int, logger logrus.FieldLogger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sem:        semaphore.NewWeighted(int64(workers)),
		workers:    workers,
		log:        logger,
		wake:       make(chan struct{}, 1),
		dispatched: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	go s.dispatch()
	return s
}

func (s *Scheduler) Workers() int { return s.workers }

// Submit queues task under id.
func (s *Scheduler) Submit(id string, task Task) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(1)
	s.queue = append(s.queue, queued{id: id, task: task})
	s.pending++
	s.mu.Unlock()

	s.notify()
	return nil
}

// Pending returns the number of tasks waiting for a slot.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest queued task, waiting for one if needed. It
// returns false once the scheduler is closing and the queue is empty.
func (s *Scheduler) next() (queued, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			q := s.queue[0]
			s.queue[0] = queued{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return q, true
		}
		closing := s.closing
		s.mu.Unlock()
		if closing {
			return queued{}, false
		}
		<-s.wake
	}
}

func (s *Scheduler) dispatch() {
	defer close(s.dispatched)
	for {
		q, ok := s.next()
		if !ok {
			return
		}
		err := s.sem.Acquire(s.ctx, 1)
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
		if err != nil {
			s.drop(q)
			continue
		}
		go s.run(q)
	}
}

func (s *Scheduler) drop(q queued) {
	defer s.wg.Done()
	s.log.WithField("job", q.id).Warn("dropped before start: scheduler stopped")
	if s.OnDrop != nil {
		s.OnDrop(q.id)
	}
}

func (s *Scheduler) run(q queued) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job", q.id).Errorf("panic in task: %v\n%s", r, debug.Stack())
		}
	}()
	q.task(s.ctx)
}

// Shutdown stops accepting tasks and waits for queued and running ones.
// If ctx expires first, tasks still waiting for a slot are dropped and
// the context passed to running tasks is cancelled; Shutdown then still
// waits for running tasks to return.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.notify()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		<-s.dispatched
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
