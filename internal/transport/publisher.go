package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"openfilter/internal/frame"
	"openfilter/internal/logging"
)

// conn wraps one accepted subscriber connection and its outbound buffer.
type conn struct {
	netConn      net.Conn
	subscriberID string
	ring         *RingBuffer
}

// endpoint owns one listening socket and its accepted connections.
type endpoint struct {
	url      EndpointURL
	listener net.Listener
	mu       sync.Mutex
	conns    []*conn
}

// Publisher owns one listening socket per declared output URL and fans out
// ticks to every connected subscriber, applying drop-oldest backpressure.
type Publisher struct {
	id          string
	endpoints   []*endpoint
	balanced    bool
	nextBal     int
	required    map[string]struct{}
	requiredMu  sync.Mutex
	readyCh     chan struct{}
	readyOnce   sync.Once
	sendTimeout time.Duration
	bufCapacity uint32
	nextMsgID   uint64
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Balanced    bool
	Required    []string // subscriber IDs WaitRequired waits for; Publish itself does not wait
	SendTimeout time.Duration
	BufCapacity uint32
}

// NewPublisher parses the declared output URLs and prepares (but does not
// open) a listening endpoint for each.
func NewPublisher(id string, urls []string, opts PublisherOptions) (*Publisher, error) {
	p := &Publisher{
		id:          id,
		balanced:    opts.Balanced,
		required:    map[string]struct{}{},
		readyCh:     make(chan struct{}),
		sendTimeout: opts.SendTimeout,
		bufCapacity: opts.BufCapacity,
	}
	if p.bufCapacity == 0 {
		p.bufCapacity = 64
	}
	for _, r := range opts.Required {
		p.required[r] = struct{}{}
	}
	if len(p.required) == 0 {
		close(p.readyCh)
	}
	for _, raw := range urls {
		u, err := ParseEndpointURL(raw)
		if err != nil {
			return nil, fmt.Errorf("transport: publisher output %q: %w", raw, err)
		}
		p.endpoints = append(p.endpoints, &endpoint{url: u})
	}
	return p, nil
}

// Listen opens every endpoint's listening socket and starts its accept loop.
func (p *Publisher) Listen() error {
	for _, ep := range p.endpoints {
		l, err := net.Listen(ep.url.NetworkName(), ep.url.Address())
		if err != nil {
			return fmt.Errorf("transport: listen %q: %w", ep.url.Raw, err)
		}
		ep.listener = l
		go p.acceptLoop(ep)
	}
	return nil
}

// acceptLoop accepts connections on one endpoint and registers each as a
// new fan-out target after reading its handshake.
func (p *Publisher) acceptLoop(ep *endpoint) {
	log := logging.ForFilter(p.id)
	for {
		nc, err := ep.listener.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(nc)
		subID, err := readHandshake(r)
		if err != nil {
			log.WithError(err).Warn("publisher: handshake failed")
			nc.Close()
			continue
		}

		c := &conn{netConn: nc, subscriberID: subID, ring: NewRingBuffer(p.bufCapacity, BackpressureDropOldest)}
		ep.mu.Lock()
		ep.conns = append(ep.conns, c)
		ep.mu.Unlock()

		p.markConnected(subID)
		go p.writerLoop(c)
	}
}

// markConnected clears subID from the required-set and, once empty, opens readyCh.
func (p *Publisher) markConnected(subID string) {
	p.requiredMu.Lock()
	delete(p.required, subID)
	empty := len(p.required) == 0
	p.requiredMu.Unlock()
	if empty {
		p.readyOnce.Do(func() { close(p.readyCh) })
	}
}

// WaitRequired blocks until every outputs_required subscriber ID has connected.
func (p *Publisher) WaitRequired(ctx context.Context) error {
	select {
	case <-p.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writerLoop drains one connection's ring buffer onto the wire, applying the
// send timeout as a per-write deadline. A write that fails or misses the
// deadline closes the connection and ends the loop.
func (p *Publisher) writerLoop(c *conn) {
	for {
		t, ok := c.ring.Read()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if p.sendTimeout > 0 {
			c.netConn.SetWriteDeadline(time.Now().Add(p.sendTimeout))
		}
		if err := WriteTick(c.netConn, t); err != nil {
			c.netConn.Close()
			return
		}
	}
}

// Publish fans a tick out to subscribers. In balanced mode only the
// round-robin-selected endpoint's connections receive it; otherwise every
// connected subscriber on every endpoint receives it.
func (p *Publisher) Publish(set frame.Set) {
	t := &Tick{MsgID: p.nextMessageID(), Set: set}

	if p.balanced && len(p.endpoints) > 0 {
		ep := p.endpoints[p.nextBal%len(p.endpoints)]
		p.nextBal++
		p.sendToEndpoint(ep, t)
		return
	}
	for _, ep := range p.endpoints {
		p.sendToEndpoint(ep, t)
	}
}

// sendToEndpoint enqueues t onto every connection currently attached to ep.
func (p *Publisher) sendToEndpoint(ep *endpoint, t *Tick) {
	ep.mu.Lock()
	conns := make([]*conn, len(ep.conns))
	copy(conns, ep.conns)
	ep.mu.Unlock()

	for _, c := range conns {
		c.ring.Write(t)
	}
}

// nextMessageID returns the next monotonically increasing message ID.
func (p *Publisher) nextMessageID() uint64 {
	p.nextMsgID++
	return p.nextMsgID
}

// Close closes every listener and connection.
func (p *Publisher) Close() {
	for _, ep := range p.endpoints {
		if ep.listener != nil {
			ep.listener.Close()
		}
		ep.mu.Lock()
		for _, c := range ep.conns {
			c.netConn.Close()
		}
		ep.mu.Unlock()
	}
}
