package worker

import (
	"context"

	"openfilter/internal/frame"
)

// Filter is the user-supplied unit of work a Worker drives one tick at a time.
type Filter interface {
	// Setup runs once before the first tick. An error here is fatal: the
	// worker exits nonzero without ever reaching RUNNING.
	Setup(ctx context.Context, cfg any) error
	// Process is called once per tick with the router's joined frame set
	// and returns a ResultKind-tagged outcome.
	Process(ctx context.Context, frames frame.Set) Result
	// Shutdown runs once while DRAINING, after the last tick completes.
	Shutdown(ctx context.Context) error
}

// ResultKind tags the shape of a Process return value, mirroring the
// frame-set / none / deferred-callable / false union a filter's Process may return.
type ResultKind int

const (
	// ResultFrames carries a frame set to publish this tick.
	ResultFrames ResultKind = iota
	// ResultNone means produce nothing this tick.
	ResultNone
	// ResultDeferred carries a thunk to call with no arguments; its
	// result is reinterpreted exactly like a direct Process return.
	ResultDeferred
	// ResultExit requests a clean shutdown after this tick.
	ResultExit
)

// Result is the tagged return value of Filter.Process.
type Result struct {
	Kind     ResultKind
	Frames   frame.Set
	Deferred func() Result
}

// Frames builds a ResultFrames outcome.
func Frames(set frame.Set) Result {
	return Result{Kind: ResultFrames, Frames: set}
}

// None builds a ResultNone outcome: nothing is produced this tick.
func None() Result {
	return Result{Kind: ResultNone}
}

// Defer builds a ResultDeferred outcome; fn is invoked with no arguments
// later in the same tick, after Process returns, and its own Result is
// reinterpreted.
func Defer(fn func() Result) Result {
	return Result{Kind: ResultDeferred, Deferred: fn}
}

// Exit builds a ResultExit outcome: the filter is requesting a clean shutdown.
func Exit() Result {
	return Result{Kind: ResultExit}
}

// resolve follows ResultDeferred chains until a terminal outcome is reached.
func resolve(r Result) Result {
	for r.Kind == ResultDeferred && r.Deferred != nil {
		r = r.Deferred()
	}
	return r
}
