package webvis

import (
	"testing"
	"time"

	"openfilter/internal/frame"
)

func TestHubDeliversOnlyToMatchingFilterID(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("f1")
	defer unsubscribe()

	hub.Publish(Sample{FilterID: "f2", Topic: "_metrics", Frame: frame.New(nil, nil, nil)})
	hub.Publish(Sample{FilterID: "f1", Topic: "_metrics", Frame: frame.New(nil, nil, frame.Data{"fps": 1.0})})

	select {
	case s := <-ch:
		if s.FilterID != "f1" {
			t.Fatalf("expected sample for f1, got %q", s.FilterID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for matching sample")
	}

	select {
	case s := <-ch:
		t.Fatalf("expected no second sample (f2 should not be delivered), got %+v", s)
	default:
	}
}

func TestHubDropsOldestWhenSaturated(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("f1")
	defer unsubscribe()

	for i := 0; i < 64; i++ {
		hub.Publish(Sample{FilterID: "f1", Topic: "_metrics", Frame: frame.New(nil, nil, frame.Data{"i": float64(i)})})
	}

	// The channel never blocks the publisher even when far oversubscribed.
	// With a 32-slot buffer and 64 publishes, samples 0..31 are dropped.
	drained := 0
	for {
		select {
		case s := <-ch:
			if drained == 0 && s.Frame.Data["i"] != 32.0 {
				t.Fatalf("expected oldest surviving sample i=32, got %v", s.Frame.Data["i"])
			}
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least one buffered sample to survive")
			}
			return
		}
	}
}

func TestFilterSinkPublishesEveryTopic(t *testing.T) {
	svc := NewService()
	sink := svc.Sink("w1")
	ch, unsubscribe := svc.Hub.Subscribe("w1")
	defer unsubscribe()

	sink.Publish(frame.Set{
		"_metrics": frame.New(nil, nil, frame.Data{"fps": 30.0}),
		"_filter":  frame.New(nil, nil, frame.Data{"id": int64(1)}),
	})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-ch:
			seen[s.Topic] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sample")
		}
	}
	if !seen["_metrics"] || !seen["_filter"] {
		t.Errorf("expected both topics delivered, got %v", seen)
	}
}
