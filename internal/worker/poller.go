package worker

import (
	"context"
	"sync"
	"time"

	"github.com/openphon/alignd/internal/align"
	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/tasks"
	"github.com/openphon/alignd/pkg/log"
)

// ProcessFunc executes one claimed task. A returned error is judged
// through align.Retryable for another attempt.
type ProcessFunc func(ctx context.Context, task *tasks.Task) error

// Terminator signals a tracked external process at shutdown or
// cancellation. engine.Runner satisfies it.
type Terminator interface {
	Terminate(pid int) error
}

// Config shapes one poller instance.
type Config struct {
	Name string

	// Queue is the status scanned for work. Claim, when set, is the
	// in-flight status written through the store-level conditional
	// claim; empty relies on the in-memory active set alone. Done,
	// when set, is written on success; empty means the process func
	// records its own terminal state. Reset is restored to in-flight
	// tasks at shutdown so they stay eligible for a later retry.
	Queue tasks.Status
	Claim tasks.Status
	Done  tasks.Status
	Reset tasks.Status

	// RecordPreError surfaces the failure reason on the task record
	// for early user feedback.
	RecordPreError bool

	Worker config.WorkerConfig
}

// Poller is the shared scheduler core of both workers: an adaptive
// polling loop dispatching tasks onto a bounded goroutine pool with a
// per-task retry budget and graceful shutdown.
type Poller struct {
	cfg     Config
	store   tasks.Store
	process ProcessFunc
	term    Terminator

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	loopWg   sync.WaitGroup
	taskWg   sync.WaitGroup
}

func New(store tasks.Store, process ProcessFunc, term Terminator, cfg Config) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:     cfg,
		store:   store,
		process: process,
		term:    term,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

func (p *Poller) Start() {
	log.Info("%s worker started: %d workers, poll %s..%s",
		p.cfg.Name, p.cfg.Worker.MaxWorkers, p.cfg.Worker.MinPoll, p.cfg.Worker.MaxPoll)
	p.loopWg.Add(1)
	go p.loop()
}

// Stop performs the graceful shutdown: no new dispatches, tracked
// external processes signaled, in-flight work drained, then every
// interrupted task reset so it can be retried later.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		snapshot := p.activeIDs()

		for _, id := range snapshot {
			task, err := p.store.GetTask(context.Background(), id)
			if err != nil {
				log.Warn("%s worker: failed to load active task %s at shutdown: %v",
					p.cfg.Name, id, err)
				continue
			}
			if task.PID > 0 && p.term != nil {
				if err := p.term.Terminate(task.PID); err != nil {
					log.Warn("%s worker: %v", p.cfg.Name, err)
				}
			}
		}

		p.cancel()
		p.taskWg.Wait()
		p.loopWg.Wait()

		// The reset is a conditional transition: a task whose goroutine
		// already recorded a terminal status before draining must keep
		// it, so only tasks still in the in-flight status go back.
		inFlight := p.cfg.Claim
		if inFlight == "" {
			inFlight = p.cfg.Queue
		}
		zero := 0
		for _, id := range snapshot {
			won, err := p.store.ClaimTask(context.Background(), id, inFlight, p.cfg.Reset)
			if err != nil {
				log.Error("CRITICAL: %s worker failed to reset task %s at shutdown, it may be stuck: %v",
					p.cfg.Name, id, err)
				continue
			}
			if !won {
				log.Debug("%s worker: task %s already left %s, no reset needed",
					p.cfg.Name, id, inFlight)
				continue
			}
			if err := p.store.UpdateTask(context.Background(), id, tasks.Fields{PID: &zero}); err != nil {
				log.Warn("%s worker: failed to clear pid for reset task %s: %v", p.cfg.Name, id, err)
			}
			log.Info("%s worker: reset interrupted task %s to %s", p.cfg.Name, id, p.cfg.Reset)
		}
		log.Info("%s worker stopped", p.cfg.Name)
	})
}

func (p *Poller) loop() {
	defer p.loopWg.Done()

	interval := p.cfg.Worker.MinPoll
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.scan() {
			interval = p.cfg.Worker.MinPoll
		} else {
			interval = time.Duration(float64(interval) * p.cfg.Worker.BackoffFactor)
			if interval > p.cfg.Worker.MaxPoll {
				interval = p.cfg.Worker.MaxPoll
			}
		}

		select {
		case <-p.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

// scan runs one poll cycle and reports whether any eligible task was
// found, which resets the backoff.
func (p *Poller) scan() bool {
	found, err := p.store.FindTasksByStatus(p.ctx, p.cfg.Queue)
	if err != nil {
		log.Error("%s worker: failed to scan for %s tasks: %v", p.cfg.Name, p.cfg.Queue, err)
		return false
	}

	capacity := p.cfg.Worker.MaxWorkers - p.activeCount()
	for _, task := range found {
		if p.stopping() {
			return false
		}
		if p.isStale(task) {
			p.forceFail(task)
			continue
		}
		if capacity <= 0 {
			continue
		}
		if !p.addActive(task.ID) {
			continue
		}
		if p.cfg.Claim != "" {
			won, err := p.store.ClaimTask(p.ctx, task.ID, p.cfg.Queue, p.cfg.Claim)
			if err != nil || !won {
				if err != nil {
					log.Error("%s worker: claim of task %s failed: %v", p.cfg.Name, task.ID, err)
				}
				p.removeActive(task.ID)
				continue
			}
		}
		capacity--
		p.taskWg.Add(1)
		go p.runTask(task)
	}
	return len(found) > 0
}

// isStale detects a task left in the queue longer than the configured
// timeout, the safeguard against a crashed worker leaving it unclaimed.
func (p *Poller) isStale(task *tasks.Task) bool {
	if p.cfg.Worker.StaleAfter <= 0 || task.AlignedAt == nil {
		return false
	}
	return time.Since(*task.AlignedAt) > p.cfg.Worker.StaleAfter
}

func (p *Poller) forceFail(task *tasks.Task) {
	log.Warn("%s worker: task %s stale in %s for over %s, force-failing",
		p.cfg.Name, task.ID, p.cfg.Queue, p.cfg.Worker.StaleAfter)
	failed := tasks.StatusFailed
	zero := 0
	err := p.store.UpdateTask(p.ctx, task.ID, tasks.Fields{Status: &failed, PID: &zero})
	if err != nil {
		log.Error("CRITICAL: %s worker failed to force-fail stale task %s: %v",
			p.cfg.Name, task.ID, err)
	}
}

func (p *Poller) runTask(task *tasks.Task) {
	defer p.taskWg.Done()
	defer p.removeActive(task.ID)

	err := p.attempt(task)
	if p.stopping() {
		// Shutdown reset owns the task's status now.
		return
	}

	zero := 0
	if err == nil {
		if p.cfg.Done != "" {
			done := p.cfg.Done
			fields := tasks.Fields{Status: &done, PID: &zero}
			if p.cfg.RecordPreError {
				// A retry that recovered clears the early failure reason.
				empty := ""
				fields.PreError = &empty
			}
			err := p.store.UpdateTask(p.ctx, task.ID, fields)
			if err != nil {
				log.Error("CRITICAL: %s worker failed to record %s for task %s, it may be stuck: %v",
					p.cfg.Name, done, task.ID, err)
				return
			}
		}
		log.Info("%s worker: task %s done", p.cfg.Name, task.ID)
		return
	}

	failed := tasks.StatusFailed
	fields := tasks.Fields{Status: &failed, PID: &zero}
	if p.cfg.RecordPreError {
		reason := err.Error()
		fields.PreError = &reason
	}
	if err := p.store.UpdateTask(p.ctx, task.ID, fields); err != nil {
		log.Error("CRITICAL: %s worker failed to record failure for task %s, it may be stuck: %v",
			p.cfg.Name, task.ID, err)
	}
}

// attempt runs the retry loop: fixed delay between attempts, cut short
// by a non-retryable error or shutdown.
func (p *Poller) attempt(task *tasks.Task) error {
	attempts := p.cfg.Worker.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = p.process(p.ctx, task); err == nil {
			return nil
		}
		log.Warn("%s worker: task %s attempt %d/%d failed: %v",
			p.cfg.Name, task.ID, i, attempts, err)
		if i == 1 && p.cfg.RecordPreError {
			// Surfaced right away so callers see the reason while the
			// retry budget is still being spent.
			reason := err.Error()
			if uerr := p.store.UpdateTask(p.ctx, task.ID, tasks.Fields{PreError: &reason}); uerr != nil {
				log.Warn("%s worker: failed to record early failure reason for task %s: %v",
					p.cfg.Name, task.ID, uerr)
			}
		}
		if !align.Retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-p.stopCh:
			return err
		case <-time.After(p.cfg.Worker.RetryDelay):
		}
	}
	return err
}

func (p *Poller) stopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Poller) addActive(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[id]; ok {
		return false
	}
	p.active[id] = struct{}{}
	return true
}

func (p *Poller) removeActive(id string) {
	p.mu.Lock()
	delete(p.active, id)
	p.mu.Unlock()
}

func (p *Poller) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Poller) activeIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.active))
	for id := range p.active {
		ids = append(ids, id)
	}
	return ids
}
