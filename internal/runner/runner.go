package runner

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"openfilter/internal/logging"
)

// workerState tracks one spawned worker's process handle and outcome.
type workerState struct {
	spec       WorkerSpec
	proc       process
	exitCode   int
	exited     chan struct{}
	notified   bool
	instanceID string // generated run-scoped identity, distinct from the caller-supplied spec.ID
}

// Runner launches a declared list of worker processes and waits for all of
// them to exit, applying shutdown-propagation policy as each one ends. The
// runner does not itself install SIGINT/SIGTERM handlers: callers build a
// cancellable context (e.g. via signal.NotifyContext) and pass it to Run, so
// a signal on the runner process cancels that context and triggers the same
// graceful-stop path as any other worker exit.
type Runner struct {
	specs   []WorkerSpec
	opts    Options
	factory func(WorkerSpec) process

	mu      sync.Mutex
	workers []*workerState
	wg      sync.WaitGroup
}

// New creates a Runner for the given worker declarations, in declaration
// order; declaration order is what "upstream"/"downstream" propagation is
// relative to.
func New(specs []WorkerSpec, opts Options) *Runner {
	return newWithFactory(specs, opts, func(s WorkerSpec) process { return newExecProcess(s) })
}

func newWithFactory(specs []WorkerSpec, opts Options, factory func(WorkerSpec) process) *Runner {
	return &Runner{specs: specs, opts: opts.WithDefaults(), factory: factory}
}

// Run starts every worker and blocks until all have exited, returning one
// exit code per worker in declaration order. Zero means clean exit.
func (r *Runner) Run(ctx context.Context) ([]int, error) {
	runID := uuid.NewString()
	log := logging.Root().WithField("run_id", runID)

	r.mu.Lock()
	r.workers = make([]*workerState, len(r.specs))
	for i, spec := range r.specs {
		ws := &workerState{spec: spec, proc: r.factory(spec), exited: make(chan struct{}), instanceID: uuid.NewString()}
		r.workers[i] = ws
		if err := ws.proc.Start(); err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("runner: start worker %q: %w", spec.ID, err)
		}
	}
	workers := r.workers
	r.mu.Unlock()

	for i, ws := range workers {
		r.wg.Add(1)
		go r.supervise(i, ws, log)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.Stop()
		<-done
	}

	codes := make([]int, len(workers))
	for i, ws := range workers {
		codes[i] = ws.exitCode
	}
	return codes, nil
}

// supervise waits for one worker to exit, records its exit code, and
// propagates the shutdown per policy to its peers.
func (r *Runner) supervise(index int, ws *workerState, log *logrus.Entry) {
	defer r.wg.Done()
	err := ws.proc.Wait()
	ws.exitCode = ws.proc.ExitCode()
	if ws.exitCode < 0 {
		ws.exitCode = 1
	}
	close(ws.exited)
	entry := log.WithField("worker", ws.spec.ID).WithField("instance_id", ws.instanceID).WithField("exit_code", ws.exitCode)
	if err != nil {
		entry.WithError(err).Warn("worker exited")
	} else {
		entry.Info("worker exited")
	}
	r.propagate(index)
}

// propagate notifies the peers selected by prop_exit, then, once exit_time
// elapses, hard-kills any peer that has not exited by itself when stop_exit
// is "all".
func (r *Runner) propagate(index int) {
	r.mu.Lock()
	n := len(r.workers)
	r.mu.Unlock()
	peers := peersFor(r.opts.PropExit, index, n)
	for _, i := range peers {
		r.gracefulStop(i)
	}
	if r.opts.StopExit == StopExitNone || len(peers) == 0 {
		return
	}
	deadline := r.opts.ExitTime
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	time.AfterFunc(deadline, func() {
		for _, i := range peers {
			r.hardKill(i)
		}
	})
}

func (r *Runner) gracefulStop(i int) {
	ws := r.workers[i]
	select {
	case <-ws.exited:
		return
	default:
	}
	r.mu.Lock()
	already := ws.notified
	ws.notified = true
	r.mu.Unlock()
	if already {
		return
	}
	ws.proc.Signal(syscall.SIGTERM)
}

func (r *Runner) hardKill(i int) {
	ws := r.workers[i]
	select {
	case <-ws.exited:
		return
	default:
		ws.proc.Kill()
	}
}

// Stop sends a graceful stop to every worker that has not already exited.
func (r *Runner) Stop() {
	r.mu.Lock()
	workers := r.workers
	r.mu.Unlock()
	for i := range workers {
		r.gracefulStop(i)
	}
}
