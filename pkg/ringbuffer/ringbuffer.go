// Package ringbuffer provides the bounded single-producer single-consumer
// byte queue that carries decoded samples from the decoder to the audio
// callback.
//
// The producer side (Write, WriteCapacity) and the consumer side (Read,
// ReadCapacity) never contend: each owns its own cursor and mutex, and the
// hand-off happens through a single atomic byte count. Flush is the one
// operation that takes both mutexes; it only runs during seeks, where an
// audible discontinuity is already expected.
package ringbuffer

import (
	"sync"
	"sync/atomic"

	"github.com/playdproj/playd/pkg/types"
)

// RingBuffer is a fixed-capacity SPSC byte queue.
//
// Thread safety:
//   - Write must only be called by the producer thread
//   - Read must only be called by the consumer thread
//   - capacity accessors are safe from either side, and pessimistic for
//     the caller: the counterparty can only move them in the caller's
//     favour
//   - Flush may be called from the producer thread; it briefly blocks
//     both sides
type RingBuffer struct {
	buffer []byte
	size   uint64 // must be power of 2
	mask   uint64 // size - 1, for efficient modulo

	writeMx  sync.Mutex
	writePos uint64 // guarded by writeMx

	readMx  sync.Mutex
	readPos uint64 // guarded by readMx

	// count is the number of readable bytes. It grows only after a
	// write has landed and shrinks only after a read has completed, so
	// each side observes the other's bytes before it observes the
	// capacity change.
	count atomic.Uint64
}

// New creates a ring buffer with at least the given capacity in bytes.
// Capacity is rounded up to the next power of 2.
func New(capacity uint64) *RingBuffer {
	capacity = nextPowerOf2(capacity)

	return &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
		mask:   capacity - 1,
	}
}

// Capacity returns the total capacity of the buffer in bytes.
func (rb *RingBuffer) Capacity() uint64 {
	return rb.size
}

// WriteCapacity returns the number of bytes the producer may write.
func (rb *RingBuffer) WriteCapacity() uint64 {
	return rb.size - rb.count.Load()
}

// ReadCapacity returns the number of bytes the consumer may read.
func (rb *RingBuffer) ReadCapacity() uint64 {
	return rb.count.Load()
}

// Write copies all of src into the buffer and returns len(src).
//
// Overflow is a bug in the caller, not a runtime condition: the producer
// must bound its writes by WriteCapacity first. Offering more returns
// ErrInsufficientSpace with nothing written.
func (rb *RingBuffer) Write(src []byte) (int, error) {
	n := uint64(len(src))
	if n == 0 {
		return 0, nil
	}

	rb.writeMx.Lock()
	defer rb.writeMx.Unlock()

	if n > rb.WriteCapacity() {
		return 0, types.ErrInsufficientSpace
	}

	start := rb.writePos & rb.mask
	end := (rb.writePos + n) & rb.mask

	if end > start {
		copy(rb.buffer[start:end], src)
	} else {
		// Write wraps around the buffer
		firstChunk := rb.size - start
		copy(rb.buffer[start:], src[:firstChunk])
		copy(rb.buffer[:end], src[firstChunk:])
	}

	rb.writePos += n
	rb.count.Add(n)

	return int(n), nil
}

// Read fills all of dst from the buffer and returns len(dst).
//
// Mirror of Write: the consumer must bound its reads by ReadCapacity
// first. Asking for more returns ErrInsufficientData with nothing read.
func (rb *RingBuffer) Read(dst []byte) (int, error) {
	n := uint64(len(dst))
	if n == 0 {
		return 0, nil
	}

	rb.readMx.Lock()
	defer rb.readMx.Unlock()

	if n > rb.ReadCapacity() {
		return 0, types.ErrInsufficientData
	}

	start := rb.readPos & rb.mask
	end := (rb.readPos + n) & rb.mask

	if end > start {
		copy(dst, rb.buffer[start:end])
	} else {
		// Read wraps around the buffer
		firstChunk := rb.size - start
		copy(dst[:firstChunk], rb.buffer[start:])
		copy(dst[firstChunk:], rb.buffer[:end])
	}

	rb.readPos += n
	rb.count.Add(^uint64(n - 1)) // fetch_sub

	return int(n), nil
}

// Flush discards all readable bytes. It serialises against both the
// producer and the consumer by taking both mutexes; the raw byte array
// is left untouched.
func (rb *RingBuffer) Flush() {
	rb.writeMx.Lock()
	defer rb.writeMx.Unlock()
	rb.readMx.Lock()
	defer rb.readMx.Unlock()

	rb.writePos = 0
	rb.readPos = 0
	rb.count.Store(0)
}

// nextPowerOf2 rounds up to the next power of 2
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
