package admin

import (
	"io"
	"sync"

	"github.com/coral-mesh/taskprof/internal/report"
)

// Buffer is the bounded output side of a session. It implements
// report.Channel. A writer goroutine drains it with WriteTo.
//
// A write that does not fit is refused as a whole, except that an empty
// buffer accepts any single write: a report larger than the capacity
// would otherwise never be delivered.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	data     []byte
	capacity int
	closed   bool
	err      error
	waiting  bool
	writable chan struct{}
}

// NewBuffer returns a buffer holding up to capacity bytes.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{
		capacity: capacity,
		writable: make(chan struct{}, 1),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// TryWrite implements report.Channel.
func (b *Buffer) TryWrite(p []byte) report.WriteResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return report.Closed
	}
	if len(b.data) > 0 && len(b.data)+len(p) > b.capacity {
		return report.WouldBlock
	}
	b.data = append(b.data, p...)
	b.cond.Signal()
	return report.Accepted
}

// RequestWritable implements report.Channel. Writable fires once the
// buffer has been drained or closed.
func (b *Buffer) RequestWritable() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(b.data) == 0 {
		b.notify()
		return
	}
	b.waiting = true
}

// Writable returns the channel signalled after RequestWritable.
func (b *Buffer) Writable() <-chan struct{} {
	return b.writable
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Err returns the error that stopped WriteTo, if any.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close refuses further writes. Queued data is still flushed by WriteTo.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
	b.notify()
}

// WriteTo drains the buffer into w until the buffer is closed and empty,
// or until w fails. After a failure every TryWrite returns Closed.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for {
		b.mu.Lock()
		for len(b.data) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.data) == 0 {
			b.mu.Unlock()
			return n, nil
		}
		chunk := b.data
		b.data = nil
		if b.waiting {
			b.waiting = false
			b.notify()
		}
		b.mu.Unlock()

		m, err := w.Write(chunk)
		n += int64(m)
		if err != nil {
			b.mu.Lock()
			b.closed = true
			b.err = err
			b.data = nil
			b.notify()
			b.mu.Unlock()
			return n, err
		}
	}
}

// notify must be called with mu held.
func (b *Buffer) notify() {
	select {
	case b.writable <- struct{}{}:
	default:
	}
}
