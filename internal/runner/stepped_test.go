package runner

import (
	"context"
	"testing"
)

// scriptedWorker reports alive=false once its step counter reaches exitAt,
// or immediately once stopped() returns true.
type scriptedWorker struct {
	steps   int
	exitAt  int
	code    int
	stopped func() bool
}

func (w *scriptedWorker) Step(ctx context.Context) (bool, int) {
	if w.stopped != nil && w.stopped() {
		return false, w.code
	}
	w.steps++
	if w.steps >= w.exitAt {
		return false, w.code
	}
	return true, 0
}

func TestSteppedRunnerWaitsForAllWorkers(t *testing.T) {
	a := &scriptedWorker{exitAt: 2}
	b := &scriptedWorker{exitAt: 4}
	r := NewStepped([]Steppable{a, b}, Options{PropExit: PropExitNone})

	codes, done := stepUntilDone(r, 10)
	if !done {
		t.Fatal("expected all workers to finish within 10 steps")
	}
	if len(codes) != 2 {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestSteppedRunnerPropExitAllNotifiesPeers(t *testing.T) {
	a := &scriptedWorker{exitAt: 1}
	b := &scriptedWorker{exitAt: 100}
	r := NewStepped([]Steppable{a, b}, Options{PropExit: PropExitAll})
	b.stopped = func() bool { return r.Stopped(1) }

	codes, done := stepUntilDone(r, 10)
	if !done {
		t.Fatal("expected both workers to finish")
	}
	if len(codes) != 2 {
		t.Fatalf("unexpected codes: %v", codes)
	}
	if !r.Stopped(1) {
		t.Error("expected peer to have been notified via prop_exit all")
	}
}

func TestSteppedRunnerPropExitNoneDoesNotNotify(t *testing.T) {
	a := &scriptedWorker{exitAt: 1}
	b := &scriptedWorker{exitAt: 100}
	r := NewStepped([]Steppable{a, b}, Options{PropExit: PropExitNone})

	for i := 0; i < 3; i++ {
		r.Step(context.Background())
	}
	if r.Stopped(1) {
		t.Error("prop_exit none must never notify peers")
	}
}

func stepUntilDone(r *SteppedRunner, maxSteps int) ([]int, bool) {
	for i := 0; i < maxSteps; i++ {
		if codes, done := r.Step(context.Background()); done {
			return codes, true
		}
	}
	return nil, false
}
