package runner

import "time"

// PropExit controls which peers are notified when one worker process ends.
type PropExit string

// Propagation policies, matching the runner's shutdown-propagation knob.
const (
	PropExitAll        PropExit = "all"
	PropExitNone       PropExit = "none"
	PropExitUpstream   PropExit = "upstream"
	PropExitDownstream PropExit = "downstream"
)

// StopExit controls whether the runner hard-stops surviving peers once the
// graceful deadline following a prop_exit notification elapses.
type StopExit string

// Stop disciplines, matching the runner's stop-discipline knob.
const (
	StopExitAll  StopExit = "all"
	StopExitNone StopExit = "none"
)

// WorkerSpec describes one filter process to launch: the binary to exec and
// the arguments/environment that select its filter class and config.
type WorkerSpec struct {
	ID      string
	Command string
	Args    []string
	Env     []string
}

// Options configures a Runner's (or SteppedRunner's) shutdown policy.
type Options struct {
	PropExit PropExit
	StopExit StopExit
	ExitTime time.Duration
}

// WithDefaults fills zero-valued policy fields with the defaults: prop_exit
// "all", stop_exit "all".
func (o Options) WithDefaults() Options {
	if o.PropExit == "" {
		o.PropExit = PropExitAll
	}
	if o.StopExit == "" {
		o.StopExit = StopExitAll
	}
	return o
}

// peersFor returns the declaration-order indices that should be notified of
// worker index's exit under policy, out of n total workers.
func peersFor(policy PropExit, index, n int) []int {
	var peers []int
	switch policy {
	case PropExitNone:
		return nil
	case PropExitUpstream:
		for i := 0; i < index; i++ {
			peers = append(peers, i)
		}
	case PropExitDownstream:
		for i := index + 1; i < n; i++ {
			peers = append(peers, i)
		}
	default: // all
		for i := 0; i < n; i++ {
			if i != index {
				peers = append(peers, i)
			}
		}
	}
	return peers
}
