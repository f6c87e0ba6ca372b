package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"openfilter/internal/frame"
	"openfilter/internal/logging"
	"openfilter/internal/router"
)

// Puller is the subset of router.Router the worker depends on, so tests can
// substitute a fake join source without a real transport.
type Puller interface {
	Next(ctx context.Context, sourcesTimeout time.Duration) (frame.Set, error)
}

// Pub is the subset of transport.Publisher the worker depends on.
type Pub interface {
	Publish(set frame.Set)
}

// Worker drives one Filter through INIT -> SETUP -> RUNNING -> DRAINING -> EXITED.
type Worker struct {
	cfg       Config
	filter    Filter
	router    Puller
	publisher Pub
	state     State
	stopAt    chan StopReason

	metrics     *metricsState
	metricsPub  Pub
	frameIDs    frameIDState
	lastMetrics time.Time
	failStreak  int
	failID      int64
	haveFailID  bool
}

// New constructs a Worker. router may be nil for a sources-less (pure
// producer) filter, in which case every tick is immediately releasable.
func New(cfg Config, filter Filter, r Puller, pub Pub) *Worker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	return &Worker{
		cfg:       cfg,
		filter:    filter,
		router:    r,
		publisher: pub,
		state:     StateInit,
		stopAt:    make(chan StopReason, 1),
		metrics:   newMetricsState(cfg.ExtraMetrics),
	}
}

// SetMetricsPublisher wires a dedicated sidecar endpoint for _metrics frames.
// When set and cfg.OutputsMetrics is true, metrics frames go only to this
// publisher instead of being merged into the regular tick output.
func (w *Worker) SetMetricsPublisher(pub Pub) { w.metricsPub = pub }

// RequestExit lets an external actor (the runner, a signal handler) request a
// graceful stop; the worker transitions to DRAINING after its current tick.
func (w *Worker) RequestExit(reason StopReason) {
	select {
	case w.stopAt <- reason:
	default:
	}
}

// Run executes Setup, then ticks until a stop condition is reached, then
// Shutdown, returning the process exit code (0 = clean).
func (w *Worker) Run(ctx context.Context) int {
	log := logging.ForFilter(w.cfg.ID)

	w.state = StateSetup
	if err := w.filter.Setup(ctx, nil); err != nil {
		log.WithError(err).Error("setup failed, exiting")
		w.state = StateExited
		return 1
	}

	w.state = StateRunning
	reason := w.runLoop(ctx, log)
	log.WithField("reason", fmt.Sprintf("%d", reason)).Info("draining")

	w.state = StateDraining
	if err := w.filter.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown returned an error")
	}
	w.state = StateExited
	return 0
}

// runLoop executes ticks until a stop reason is produced, returning it.
func (w *Worker) runLoop(ctx context.Context, log *logrus.Entry) StopReason {
	for {
		if !w.cfg.ExitAfter.IsZero() && !time.Now().Before(w.cfg.ExitAfter) {
			return StopExitAfter
		}
		select {
		case reason := <-w.stopAt:
			return reason
		default:
		}

		set, err := frame.Set{}, error(nil)
		if w.router != nil {
			set, err = w.router.Next(ctx, w.cfg.SourcesTimeout)
		}
		if err != nil {
			switch err {
			case router.ErrUpstreamEnded:
				return StopUpstreamEnded
			case router.ErrNoTick:
				continue
			default:
				if ctx.Err() != nil {
					return StopExternalSignal
				}
				continue
			}
		}

		if stop, exited := w.tick(ctx, log, set); exited {
			return stop
		}
	}
}

// tick executes one full pass of the tick algorithm: in-latency,
// process(), result interpretation, side-channel injection, publish, counters.
func (w *Worker) tick(ctx context.Context, log *logrus.Entry, set frame.Set) (StopReason, bool) {
	tickStart := time.Now()
	inLatency := tickLatency(set, tickStart)

	id := w.frameIDs.next(set)
	result := w.safeProcess(ctx, log, set, id)

	switch result.Kind {
	case ResultExit:
		if w.failStreak >= w.cfg.FailureThreshold {
			return StopRepeatedFailure, true
		}
		return StopFilterRequested, true
	case ResultNone:
		w.recordTickCounters(set, tickStart, tickStart)
		return StopNone, false
	}

	out := result.Frames
	if out == nil {
		out = frame.Set{}
	}

	if w.cfg.OutputsFilter {
		out[FilterTopic] = buildFilterFrame(id)
	}
	if w.dueForMetrics(tickStart) {
		outLatency := time.Since(tickStart)
		mframe := w.metrics.build(inLatency, outLatency)
		if w.cfg.OutputsMetrics && w.metricsPub != nil {
			w.metricsPub.Publish(frame.Set{MetricsTopic: mframe})
		} else {
			out[MetricsTopic] = mframe
		}
		w.lastMetrics = tickStart
	}

	w.publisher.Publish(out)
	w.recordTickCounters(set, tickStart, time.Now())
	return StopNone, false
}

// safeProcess calls Filter.Process, applying the repeated-failure threshold:
// a panic drops the tick and continues unless the same frame ID has now
// panicked FailureThreshold times in a row, in which case the worker drains.
// A filter legitimately returning ResultNone never contributes to the streak —
// only a recovered panic does.
func (w *Worker) safeProcess(ctx context.Context, log *logrus.Entry, set frame.Set, id int64) Result {
	failed := false
	result := func() (r Result) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", fmt.Sprintf("%v", rec)).Error("process() panicked, dropping tick")
				failed = true
				r = None()
			}
		}()
		return resolve(w.filter.Process(ctx, set))
	}()

	if !failed {
		w.failStreak = 0
		return result
	}

	if w.haveFailID && w.failID == id {
		w.failStreak++
	} else {
		w.failID = id
		w.haveFailID = true
		w.failStreak = 1
	}
	if w.failStreak >= w.cfg.FailureThreshold {
		log.WithField("frame_id", id).Error("repeated failure threshold exceeded, draining")
		return Exit()
	}
	return result
}

// dueForMetrics reports whether metrics_interval has elapsed since the last sample.
func (w *Worker) dueForMetrics(now time.Time) bool {
	if w.cfg.MetricsInterval <= 0 {
		return false
	}
	return now.Sub(w.lastMetrics) >= w.cfg.MetricsInterval
}

// recordTickCounters folds frame/megapixel counts into the metrics accumulator.
func (w *Worker) recordTickCounters(set frame.Set, start, _ time.Time) {
	var megapx float64
	for _, f := range set {
		if f.HasImage() {
			megapx += float64(f.Image.Width*f.Image.Height) / 1e6
		}
	}
	w.metrics.recordTick(megapx)
}

// tickLatency computes now minus the earliest meta.ts across the tick's frames.
func tickLatency(set frame.Set, now time.Time) time.Duration {
	var earliest float64
	first := true
	for _, f := range set {
		ts := f.Timestamp()
		if ts == 0 {
			continue
		}
		if first || ts < earliest {
			earliest = ts
			first = false
		}
	}
	if first {
		return 0
	}
	return now.Sub(time.Unix(0, int64(earliest*1e9)))
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return w.state }
