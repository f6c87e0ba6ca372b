package router

import (
	"context"
	"testing"
	"time"

	"openfilter/internal/frame"
	"openfilter/internal/transport"
)

func tick(id uint64, topic string, value float64) *transport.Tick {
	return &transport.Tick{
		MsgID: id,
		Set:   frame.Set{topic: frame.New(nil, frame.Meta{}, frame.Data{"v": value})},
	}
}

func TestRouterSyncedPairingWaitsForMatchingID(t *testing.T) {
	fast := newFakeFeed("fast", false)
	slow := newFakeFeed("slow", false)
	fast.push(tick(1, "a", 1))
	fast.push(tick(2, "a", 2))
	// slow hasn't produced msgid 1 yet.

	r := New([]transport.Feed{fast, slow}, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan frame.Set, 1)
	errs := make(chan error, 1)
	go func() {
		set, err := r.Next(ctx, time.Second)
		if err != nil {
			errs <- err
			return
		}
		result <- set
	}()

	// Give the poller a moment, then supply the matching slow tick.
	time.Sleep(10 * time.Millisecond)
	slow.push(tick(1, "b", 100))

	select {
	case set := <-result:
		if set["a"].Data["v"] != 1.0 || set["b"].Data["v"] != 100.0 {
			t.Fatalf("unexpected merged set: %+v", set)
		}
	case err := <-errs:
		t.Fatalf("Next returned error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for synced release")
	}

	// The fast feed's second tick (msgid 2) should still be buffered, not discarded.
	if _, ok := fast.Peek(); !ok {
		t.Fatal("expected fast feed's msgid-2 tick to remain buffered, not discarded")
	}
}

func TestRouterArrivalOrderIgnoresMsgID(t *testing.T) {
	a := newFakeFeed("a", false)
	b := newFakeFeed("b", false)
	a.push(tick(5, "a", 1))
	b.push(tick(9, "b", 2))

	r := New([]transport.Feed{a, b}, false)
	set, err := r.Next(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if set["a"].Data["v"] != 1.0 || set["b"].Data["v"] != 2.0 {
		t.Fatalf("unexpected merged set: %+v", set)
	}
}

func TestRouterEphemeralFeedNeverBlocksRelease(t *testing.T) {
	required := newFakeFeed("required", false)
	ephemeral := newFakeFeed("ephemeral", true)
	required.push(tick(1, "a", 1))
	// ephemeral produces nothing.

	r := New([]transport.Feed{required, ephemeral}, true)
	set, err := r.Next(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(set) != 1 || set["a"].Data["v"] != 1.0 {
		t.Fatalf("expected release with only required topic, got %+v", set)
	}
}

func TestRouterEphemeralFeedContributesWhenReady(t *testing.T) {
	required := newFakeFeed("required", false)
	ephemeral := newFakeFeed("ephemeral", true)
	required.push(tick(1, "a", 1))
	ephemeral.push(tick(1, "b", 2))

	r := New([]transport.Feed{required, ephemeral}, true)
	set, err := r.Next(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(set) != 2 || set["b"].Data["v"] != 2.0 {
		t.Fatalf("expected ephemeral contribution merged in, got %+v", set)
	}
}

func TestRouterRequiredUpstreamEndedPropagates(t *testing.T) {
	required := newFakeFeed("required", false)
	required.closeDone()

	r := New([]transport.Feed{required}, true)
	_, err := r.Next(context.Background(), time.Second)
	if err != ErrUpstreamEnded {
		t.Fatalf("expected ErrUpstreamEnded, got %v", err)
	}
}

func TestRouterTimeoutWhenNoTickArrives(t *testing.T) {
	required := newFakeFeed("required", false)
	r := New([]transport.Feed{required}, true)
	_, err := r.Next(context.Background(), 20*time.Millisecond)
	if err != ErrNoTick {
		t.Fatalf("expected ErrNoTick, got %v", err)
	}
}

func TestRouterNoFeedsReleasesImmediately(t *testing.T) {
	r := New(nil, true)
	set, err := r.Next(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %+v", set)
	}
}
