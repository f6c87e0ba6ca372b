package transport

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"time"

	"openfilter/internal/frame"
	"openfilter/internal/logging"
)

// Feed is anything the router can pull joined ticks from: a single Source or
// a BalancedSourceGroup combining several.
type Feed interface {
	// Read returns the next buffered tick for this feed without blocking.
	Read() (*Tick, bool)
	// Peek returns the next buffered tick without dequeuing it.
	Peek() (*Tick, bool)
	// Ephemeral reports whether a lost upstream should be tolerated silently.
	Ephemeral() bool
	// Done is closed when a required feed's upstream has disconnected for good.
	Done() <-chan struct{}
	// Topics returns the topic filter/rename table declared for this feed.
	Topics() TopicSpec
	// Label identifies the feed in logs.
	Label() string
}

// Source is a subscriber's connection to exactly one source endpoint URL.
type Source struct {
	url       EndpointURL
	subID     string
	ring      *RingBuffer
	done      chan struct{}
	closeOnce int32
	conn      net.Conn
}

// NewSource constructs a Source for the given URL, not yet connected.
func NewSource(url EndpointURL, subscriberID string, capacity uint32) *Source {
	return &Source{
		url:   url,
		subID: subscriberID,
		ring:  NewRingBuffer(capacity, BackpressureDropOldest),
		done:  make(chan struct{}),
	}
}

// Connect dials the source and, if successful, starts the background reader.
// On failure for an ephemeral source this returns nil: the feed simply
// contributes nothing until the upstream appears.
func (s *Source) Connect(ctx context.Context, dialTimeout time.Duration) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, s.url.NetworkName(), s.url.Address())
	if err != nil {
		if s.url.Ephemeral {
			return nil
		}
		return err
	}
	if err := sendHandshake(conn, s.subID); err != nil {
		conn.Close()
		if s.url.Ephemeral {
			return nil
		}
		return err
	}
	s.conn = conn
	go s.readLoop(conn)
	return nil
}

// readLoop pulls ticks off the wire until the connection closes or errors.
// An ephemeral source's disconnect is swallowed silently; an ordinary
// source's disconnect closes Done so the router can propagate end-of-stream.
func (s *Source) readLoop(conn net.Conn) {
	log := logging.ForFilter(s.subID)
	r := bufio.NewReader(conn)
	wantTopic := func(topic string) bool {
		_, ok := s.url.Topics.Accepts(topic)
		return ok
	}

	for {
		tick, err := ReadTick(r, wantTopic)
		if err != nil {
			if !s.url.Ephemeral {
				log.WithError(err).WithField("source", s.url.Raw).Warn("source disconnected")
				s.closeDone()
			} else {
				log.WithField("source", s.url.Raw).Debug("ephemeral source disconnected, continuing without it")
			}
			return
		}
		renamed := make(frame.Set, len(tick.Set))
		for topic, f := range tick.Set {
			out, ok := s.url.Topics.Accepts(topic)
			if !ok {
				continue
			}
			renamed[out] = f
		}
		s.ring.Write(&Tick{MsgID: tick.MsgID, Set: renamed})
	}
}

func (s *Source) closeDone() {
	if atomic.CompareAndSwapInt32(&s.closeOnce, 0, 1) {
		close(s.done)
	}
}

// Read implements Feed.
func (s *Source) Read() (*Tick, bool) { return s.ring.Read() }

// Peek implements Feed.
func (s *Source) Peek() (*Tick, bool) { return s.ring.Peek() }

// Ephemeral implements Feed.
func (s *Source) Ephemeral() bool { return s.url.Ephemeral }

// Done implements Feed.
func (s *Source) Done() <-chan struct{} { return s.done }

// Topics implements Feed.
func (s *Source) Topics() TopicSpec { return s.url.Topics }

// Label implements Feed.
func (s *Source) Label() string { return s.url.Raw }

// Close closes the underlying connection, if any.
func (s *Source) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
