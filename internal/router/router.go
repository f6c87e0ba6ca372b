package router

import (
	"context"
	"errors"
	"time"

	"openfilter/internal/frame"
	"openfilter/internal/transport"
)

// ErrUpstreamEnded is returned by Next when a required feed's upstream has
// disconnected for good and an ordinary source must propagate end-of-stream
// upward.
var ErrUpstreamEnded = errors.New("router: required upstream ended")

// ErrNoTick is returned by Next when sources_timeout elapses with no
// releasable tick, so the caller can resurface and check for shutdown.
var ErrNoTick = errors.New("router: no releasable tick before timeout")

// member wraps one feed with the metadata the join algorithm needs.
type member struct {
	feed     transport.Feed
	required bool
}

// Router assembles one joined frame.Set per call to Next by applying the
// join discipline: every required source must contribute, ephemeral sources
// contribute only if ready, and (when sync is enabled) required sources are
// paired by equal message ID.
type Router struct {
	members []member
	sync    bool
	poll    time.Duration
}

// New builds a Router over the given feeds. sync selects mq_msgid_sync
// (default true in the worker config layer, passed explicitly here).
func New(feeds []transport.Feed, sync bool) *Router {
	members := make([]member, len(feeds))
	for i, f := range feeds {
		members[i] = member{feed: f, required: !f.Ephemeral()}
	}
	return &Router{members: members, sync: sync, poll: time.Millisecond}
}

// Next blocks (polling internally) until a releasable tick is available or
// sourcesTimeout elapses, returning ErrNoTick in the latter case so the
// worker loop can resurface and check its own shutdown conditions.
func (r *Router) Next(ctx context.Context, sourcesTimeout time.Duration) (frame.Set, error) {
	if len(r.members) == 0 {
		// A sources-less filter (pure producer) is immediately "ready" with an empty tick.
		return frame.Set{}, nil
	}

	deadline := time.Now().Add(sourcesTimeout)
	for {
		set, done, ended := r.tryRelease()
		if ended {
			return nil, ErrUpstreamEnded
		}
		if done {
			return set, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if sourcesTimeout > 0 && time.Now().After(deadline) {
			return nil, ErrNoTick
		}
		time.Sleep(r.poll)
	}
}

// tryRelease attempts one non-blocking join pass.
func (r *Router) tryRelease() (set frame.Set, releasable bool, ended bool) {
	for _, m := range r.members {
		if m.required {
			select {
			case <-m.feed.Done():
				return nil, false, true
			default:
			}
		}
	}

	if r.sync {
		return r.trySyncedRelease()
	}
	return r.tryArrivalOrderRelease()
}

// trySyncedRelease implements mq_msgid_sync=true: required sources are
// paired by equal message ID; earlier ticks on a faster source are held
// (left buffered, not discarded) until the slower sources catch up.
func (r *Router) trySyncedRelease() (frame.Set, bool, bool) {
	var targetID uint64
	first := true
	for _, m := range r.members {
		if !m.required {
			continue
		}
		tick, ok := m.feed.Peek()
		if !ok {
			return nil, false, false
		}
		if first {
			targetID = tick.MsgID
			first = false
			continue
		}
		if tick.MsgID != targetID {
			return nil, false, false
		}
	}

	merged := frame.Set{}
	for _, m := range r.members {
		if m.required {
			tick, _ := m.feed.Read()
			mergeInto(merged, tick.Set)
			continue
		}
		if tick, ok := m.feed.Read(); ok {
			mergeInto(merged, tick.Set)
		}
	}
	return merged, true, false
}

// tryArrivalOrderRelease implements mq_msgid_sync=false: required sources
// are paired purely by arrival order, ignoring message ID.
func (r *Router) tryArrivalOrderRelease() (frame.Set, bool, bool) {
	for _, m := range r.members {
		if !m.required {
			continue
		}
		if _, ok := m.feed.Peek(); !ok {
			return nil, false, false
		}
	}

	merged := frame.Set{}
	for _, m := range r.members {
		if m.required {
			tick, _ := m.feed.Read()
			mergeInto(merged, tick.Set)
			continue
		}
		if tick, ok := m.feed.Read(); ok {
			mergeInto(merged, tick.Set)
		}
	}
	return merged, true, false
}

// mergeInto merges src's topics into dst; a later source overwrites an
// earlier one under topic collision, matching "last writer wins" (4.3).
func mergeInto(dst frame.Set, src frame.Set) {
	for topic, f := range src {
		dst[topic] = f
	}
}
