package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"openfilter/internal/fctx"
	"openfilter/internal/frame"
	"openfilter/internal/router"
)

type fakePuller struct {
	sets []frame.Set
	idx  int
	err  error
}

func (p *fakePuller) Next(ctx context.Context, timeout time.Duration) (frame.Set, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.idx >= len(p.sets) {
		return nil, router.ErrNoTick
	}
	s := p.sets[p.idx]
	p.idx++
	return s, nil
}

type fakePub struct {
	published []frame.Set
}

func (p *fakePub) Publish(set frame.Set) {
	p.published = append(p.published, set)
}

type scriptedFilter struct {
	results []Result
	idx     int
	setups  int
	drains  int
}

func (f *scriptedFilter) Setup(ctx context.Context, cfg any) error {
	f.setups++
	return nil
}

func (f *scriptedFilter) Process(ctx context.Context, frames frame.Set) Result {
	if f.idx >= len(f.results) {
		return Exit()
	}
	r := f.results[f.idx]
	f.idx++
	return r
}

func (f *scriptedFilter) Shutdown(ctx context.Context) error {
	f.drains++
	return nil
}

func TestWorkerPublishesProducedFrames(t *testing.T) {
	out := frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{"x": 1.0})}
	filter := &scriptedFilter{results: []Result{Frames(out), Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1", OutputsFilter: true}, filter, puller, pub)
	code := w.Run(context.Background())

	if code != 0 {
		t.Fatalf("expected clean exit, got %d", code)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(pub.published))
	}
	filterFrame, ok := pub.published[0][FilterTopic]
	if !ok {
		t.Fatal("expected _filter frame injected into output")
	}
	if _, ok := filterFrame.Data["id"]; !ok {
		t.Error("expected _filter frame to carry id in Data, not Meta")
	}
	if filter.setups != 1 || filter.drains != 1 {
		t.Errorf("expected exactly one setup and one shutdown, got %d/%d", filter.setups, filter.drains)
	}
}

func TestFilterFramePropagatesInputMetaID(t *testing.T) {
	in := frame.Set{"main": frame.New(nil, frame.Meta{frame.MetaIDKey: int64(42)}, frame.Data{})}
	out := frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{})}
	filter := &scriptedFilter{results: []Result{Frames(out), Exit()}}
	puller := &fakePuller{sets: []frame.Set{in, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1", OutputsFilter: true}, filter, puller, pub)
	w.Run(context.Background())

	filterFrame, ok := pub.published[0][FilterTopic]
	if !ok {
		t.Fatal("expected _filter frame injected into output")
	}
	id, ok := filterFrame.Data["id"].(int64)
	if !ok || id != 42 {
		t.Errorf("expected filter_frame.data.id == 42, got %#v", filterFrame.Data["id"])
	}
}

func TestWorkerNoneProducesNoPublish(t *testing.T) {
	filter := &scriptedFilter{results: []Result{None(), Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1"}, filter, puller, pub)
	w.Run(context.Background())

	if len(pub.published) != 0 {
		t.Fatalf("expected no publish for ResultNone, got %d", len(pub.published))
	}
}

func TestWorkerDeferredResultIsResolved(t *testing.T) {
	inner := Frames(frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{})})
	deferred := Defer(func() Result { return inner })
	filter := &scriptedFilter{results: []Result{deferred, Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1"}, filter, puller, pub)
	w.Run(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("expected deferred result to resolve into a publish, got %d", len(pub.published))
	}
}

type panickingFilter struct {
	setups int
	drains int
}

func (f *panickingFilter) Setup(ctx context.Context, cfg any) error {
	f.setups++
	return nil
}

func (f *panickingFilter) Process(ctx context.Context, frames frame.Set) Result {
	panic("process blew up")
}

func (f *panickingFilter) Shutdown(ctx context.Context) error {
	f.drains++
	return nil
}

func TestWorkerRepeatedFailureOnSameFrameIDDrains(t *testing.T) {
	// Every tick carries the same propagated meta.id, and every call to
	// Process panics so the failure streak should trip the threshold and drain.
	sameID := frame.New(nil, frame.Meta{frame.MetaIDKey: int64(7)}, frame.Data{})
	set := frame.Set{"main": sameID}

	sets := make([]frame.Set, 0, DefaultFailureThreshold+2)
	for i := 0; i < DefaultFailureThreshold+2; i++ {
		sets = append(sets, set)
	}

	filter := &panickingFilter{}
	puller := &fakePuller{sets: sets}
	pub := &fakePub{}

	w := New(Config{ID: "w1"}, filter, puller, pub)
	w.Run(context.Background())

	if w.failStreak < w.cfg.FailureThreshold {
		t.Fatalf("expected failure streak to reach threshold, got %d", w.failStreak)
	}
}

func TestWorkerLegitimateNoneDoesNotContributeToFailureStreak(t *testing.T) {
	// A filter that legitimately returns None every tick (no panic) must never
	// trip the failure-streak threshold, even when the same frame ID repeats
	// far past DefaultFailureThreshold.
	sameID := frame.New(nil, frame.Meta{frame.MetaIDKey: int64(7)}, frame.Data{})
	set := frame.Set{"main": sameID}

	count := DefaultFailureThreshold + 5
	sets := make([]frame.Set, 0, count)
	results := make([]Result, 0, count)
	for i := 0; i < count; i++ {
		sets = append(sets, set)
		results = append(results, None())
	}
	// One more tick, on which the exhausted script returns Exit().
	sets = append(sets, set)

	filter := &scriptedFilter{results: results}
	puller := &fakePuller{sets: sets}
	pub := &fakePub{}

	w := New(Config{ID: "w1"}, filter, puller, pub)
	code := w.Run(context.Background())

	if code != 0 {
		t.Fatalf("expected clean exit, got %d", code)
	}
	if w.failStreak != 0 {
		t.Errorf("expected legitimate ResultNone never to raise the failure streak, got %d", w.failStreak)
	}
}

func TestWorkerSetupErrorExitsNonzero(t *testing.T) {
	filter := &failingSetupFilter{}
	puller := &fakePuller{}
	pub := &fakePub{}

	w := New(Config{ID: "w1"}, filter, puller, pub)
	code := w.Run(context.Background())
	if code == 0 {
		t.Fatal("expected nonzero exit on setup failure")
	}
}

type failingSetupFilter struct{}

func (failingSetupFilter) Setup(ctx context.Context, cfg any) error { return errors.New("boom") }
func (failingSetupFilter) Process(ctx context.Context, frames frame.Set) Result {
	return Exit()
}
func (failingSetupFilter) Shutdown(ctx context.Context) error { return nil }

func TestWorkerMetricsFrameHasRequiredKeys(t *testing.T) {
	out := frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{})}
	filter := &scriptedFilter{results: []Result{Frames(out), Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1", MetricsInterval: time.Millisecond}, filter, puller, pub)
	w.Run(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(pub.published))
	}
	mframe, ok := pub.published[0][MetricsTopic]
	if !ok {
		t.Fatal("expected _metrics frame merged into output")
	}
	required := []string{"ts", "fps", "cpu", "mem", "lat_in", "lat_out", "uptime_count", "frame_count", "megapx_count"}
	for _, key := range required {
		if _, ok := mframe.Data[key]; !ok {
			t.Errorf("expected _metrics frame to carry key %q", key)
		}
	}
}

type metricsSidecarPub struct {
	published []frame.Set
}

func (p *metricsSidecarPub) Publish(set frame.Set) {
	p.published = append(p.published, set)
}

func TestWorkerMetricsSidecarBypassesMainOutput(t *testing.T) {
	out := frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{})}
	filter := &scriptedFilter{results: []Result{Frames(out), Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}
	sidecar := &metricsSidecarPub{}

	w := New(Config{ID: "w1", MetricsInterval: time.Millisecond, OutputsMetrics: true}, filter, puller, pub)
	w.SetMetricsPublisher(sidecar)
	w.Run(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("expected one main publish, got %d", len(pub.published))
	}
	if _, ok := pub.published[0][MetricsTopic]; ok {
		t.Error("expected _metrics frame not merged into main output when a sidecar is configured")
	}
	if len(sidecar.published) != 1 {
		t.Fatalf("expected exactly one sidecar publish, got %d", len(sidecar.published))
	}
	if _, ok := sidecar.published[0][MetricsTopic]; !ok {
		t.Error("expected _metrics frame on the sidecar publisher")
	}
}

func TestMetricsFrameReportsFilterContext(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte("9.9.9"), 0o644); err != nil {
		t.Fatalf("write VERSION: %v", err)
	}
	fctx.Load(dir)

	out := frame.Set{"main": frame.New(nil, frame.Meta{}, frame.Data{})}
	filter := &scriptedFilter{results: []Result{Frames(out), Exit()}}
	puller := &fakePuller{sets: []frame.Set{{}, {}}}
	pub := &fakePub{}

	w := New(Config{ID: "w1", MetricsInterval: time.Millisecond}, filter, puller, pub)
	w.Run(context.Background())

	mframe, ok := pub.published[0][MetricsTopic]
	if !ok {
		t.Fatal("expected _metrics frame merged into output")
	}
	if mframe.Data["version"] != "9.9.9" {
		t.Errorf("expected _metrics frame to report fctx version, got %#v", mframe.Data["version"])
	}
}
