package runner

import "context"

// Steppable is one unit of work a SteppedRunner drives a tick at a time.
type Steppable interface {
	// Step runs one tick and reports whether the worker is still alive and,
	// once it is not, its final exit code.
	Step(ctx context.Context) (alive bool, exitCode int)
}

// SteppedRunner drives a set of Steppable workers one tick at a time,
// applying the same shutdown-propagation policy as Runner, without any real
// process spawning or wall-clock deadlines.
type SteppedRunner struct {
	workers []Steppable
	opts    Options
	alive   []bool
	codes   []int
	stopped []bool
}

// NewStepped creates a SteppedRunner for the given workers, in declaration order.
func NewStepped(workers []Steppable, opts Options) *SteppedRunner {
	alive := make([]bool, len(workers))
	for i := range alive {
		alive[i] = true
	}
	return &SteppedRunner{
		workers: workers,
		opts:    opts.WithDefaults(),
		alive:   alive,
		codes:   make([]int, len(workers)),
		stopped: make([]bool, len(workers)),
	}
}

// Step drives one tick on every still-alive worker. It returns (nil, false)
// while any worker remains alive, or the final exit-code list, in
// declaration order, once all have exited.
func (r *SteppedRunner) Step(ctx context.Context) ([]int, bool) {
	for i, w := range r.workers {
		if !r.alive[i] {
			continue
		}
		alive, code := w.Step(ctx)
		if !alive {
			r.alive[i] = false
			r.codes[i] = code
			r.propagate(i)
		}
	}
	for _, alive := range r.alive {
		if alive {
			return nil, false
		}
	}
	return r.codes, true
}

// propagate marks the peers selected by prop_exit as notified. A Steppable
// is expected to observe Stopped(i) (or its own context) and wind down on a
// subsequent Step call; the stepped runner has no wall clock, so stop_exit's
// hard-kill deadline has no effect here beyond the notification itself.
func (r *SteppedRunner) propagate(index int) {
	for _, i := range peersFor(r.opts.PropExit, index, len(r.workers)) {
		if r.alive[i] {
			r.stopped[i] = true
		}
	}
}

// Stopped reports whether worker i has been sent a graceful-stop notification.
func (r *SteppedRunner) Stopped(i int) bool { return r.stopped[i] }

// ExitCodes returns the exit codes recorded so far, in declaration order;
// entries for workers still alive are zero.
func (r *SteppedRunner) ExitCodes() []int { return r.codes }
