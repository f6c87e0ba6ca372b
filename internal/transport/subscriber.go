package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceSpec is one configured source: a URL plus the group it belongs to.
// Sources sharing a non-empty Group are joined into one BalancedSourceGroup feed.
type SourceSpec struct {
	URL   string
	Group string // empty string means "not balanced": each URL is its own feed
}

// Subscriber owns every inbound Feed for one worker.
type Subscriber struct {
	id           string
	feeds        []Feed
	bufCapacity  uint32
	dialTimeout  time.Duration
	allSources   []*Source
}

// NewSubscriber parses specs and prepares (but does not connect) the
// subscriber's feeds, grouping balanced sources together. An empty id gets a
// generated one, the case for an ephemeral subscriber that never registers
// a stable name with its upstreams.
func NewSubscriber(id string, specs []SourceSpec, bufCapacity uint32, dialTimeout time.Duration) (*Subscriber, error) {
	if id == "" {
		id = uuid.NewString()
	}
	sub := &Subscriber{id: id, bufCapacity: bufCapacity, dialTimeout: dialTimeout}

	groups := map[string][]*Source{}
	order := []string{}
	for _, spec := range specs {
		u, err := ParseEndpointURL(spec.URL)
		if err != nil {
			return nil, fmt.Errorf("transport: subscriber source %q: %w", spec.URL, err)
		}
		src := NewSource(u, id, bufCapacity)
		sub.allSources = append(sub.allSources, src)

		if spec.Group == "" {
			sub.feeds = append(sub.feeds, src)
			continue
		}
		if _, seen := groups[spec.Group]; !seen {
			order = append(order, spec.Group)
		}
		groups[spec.Group] = append(groups[spec.Group], src)
	}
	for _, name := range order {
		sub.feeds = append(sub.feeds, NewBalancedSourceGroup(groups[name]))
	}
	return sub, nil
}

// Connect dials every underlying source. The swallow-on-failure behavior for
// an ephemeral source lives in Source.Connect itself, which returns nil in
// that case; a required source's dial failure propagates here as an error.
func (s *Subscriber) Connect(ctx context.Context) error {
	for _, src := range s.allSources {
		if err := src.Connect(ctx, s.dialTimeout); err != nil {
			return fmt.Errorf("transport: connect source %q: %w", src.Label(), err)
		}
	}
	return nil
}

// Feeds returns the joined list of feeds (one per ungrouped URL, one per
// balanced group) the router should pull from.
func (s *Subscriber) Feeds() []Feed { return s.feeds }

// Close tears down every underlying connection.
func (s *Subscriber) Close() {
	for _, src := range s.allSources {
		src.Close()
	}
}
