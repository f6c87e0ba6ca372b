package transport

import (
	"sync/atomic"

	"openfilter/internal/frame"
)

// Tick is one unit of transport delivery: a frame set tagged with the
// monotonically increasing message ID the publisher assigned it.
type Tick struct {
	MsgID uint64
	Set   frame.Set
}

// BackpressureStrategy defines how a saturated ring buffer sheds load.
// Ordinary subscriptions use drop-oldest; drop-newest is kept as an option
// for balanced/low-latency sources that should never stall.
type BackpressureStrategy uint8

const (
	// BackpressureDropOldest discards the oldest buffered tick on overflow.
	BackpressureDropOldest BackpressureStrategy = iota
	// BackpressureDropNewest discards the incoming tick on overflow.
	BackpressureDropNewest
)

// RingBuffer is a bounded circular buffer of Tick values for one subscriber.
// Single producer (the publisher's send loop), single consumer (the
// subscriber's router pull), so indices are manipulated with atomics only.
type RingBuffer struct {
	buffer   []*Tick
	size     uint32
	writePos uint32
	readPos  uint32
	strategy BackpressureStrategy
	dropped  uint64
}

// NewRingBuffer creates a ring buffer whose capacity is rounded up to the
// next power of two, reserving one slot to distinguish full from empty.
func NewRingBuffer(capacity uint32, strategy BackpressureStrategy) *RingBuffer {
	size := uint32(1)
	for size < capacity {
		size <<= 1
	}
	return &RingBuffer{
		buffer:   make([]*Tick, size),
		size:     size,
		strategy: strategy,
	}
}

// Write attempts to enqueue a tick, applying the configured backpressure
// strategy on overflow. It never blocks.
func (rb *RingBuffer) Write(t *Tick) bool {
	if t == nil {
		return false
	}

	mask := rb.size - 1
	writePos := atomic.LoadUint32(&rb.writePos)
	readPos := atomic.LoadUint32(&rb.readPos)
	nextWritePos := (writePos + 1) & mask

	if nextWritePos == (readPos & mask) {
		atomic.AddUint64(&rb.dropped, 1)
		if rb.strategy == BackpressureDropOldest {
			atomic.AddUint32(&rb.readPos, 1)
		} else {
			return false
		}
	}

	rb.buffer[writePos&mask] = t
	atomic.StoreUint32(&rb.writePos, nextWritePos)
	return true
}

// Read dequeues the next tick, or returns ok=false if the buffer is empty.
func (rb *RingBuffer) Read() (*Tick, bool) {
	readPos := atomic.LoadUint32(&rb.readPos)
	writePos := atomic.LoadUint32(&rb.writePos)
	if readPos&(rb.size-1) == writePos {
		return nil, false
	}
	t := rb.buffer[readPos&(rb.size-1)]
	atomic.AddUint32(&rb.readPos, 1)
	return t, true
}

// Peek returns the next tick without dequeuing it.
func (rb *RingBuffer) Peek() (*Tick, bool) {
	readPos := atomic.LoadUint32(&rb.readPos)
	writePos := atomic.LoadUint32(&rb.writePos)
	if readPos&(rb.size-1) == writePos {
		return nil, false
	}
	return rb.buffer[readPos&(rb.size-1)], true
}

// Dropped returns the number of ticks dropped due to backpressure.
func (rb *RingBuffer) Dropped() uint64 {
	return atomic.LoadUint64(&rb.dropped)
}

// Len returns the number of ticks currently buffered.
func (rb *RingBuffer) Len() uint32 {
	writePos := atomic.LoadUint32(&rb.writePos)
	readPos := atomic.LoadUint32(&rb.readPos)
	mask := rb.size - 1
	return (writePos - readPos) & mask
}
