// Package report renders the administrative text reports.
//
// A report is produced by a Handler whose Step method is called by the
// output driver until it returns true. Each Step renders the whole report
// from the current state and hands it to the Channel in one piece. When the
// channel is full the handler asks to be woken up once it drains and
// returns false; the next Step starts over from a fresh snapshot, so no
// state survives between calls.
package report

// WriteResult is the outcome of Channel.TryWrite.
type WriteResult int

const (
	// Accepted means the whole buffer was queued.
	Accepted WriteResult = iota
	// WouldBlock means the channel has no room right now; nothing was queued.
	WouldBlock
	// Closed means the channel failed or was shut down.
	Closed
)

// String returns the result name.
func (r WriteResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case WouldBlock:
		return "would_block"
	default:
		return "closed"
	}
}

// Channel is the output side of an administrative session.
type Channel interface {
	// TryWrite queues p entirely or not at all.
	TryWrite(p []byte) WriteResult
	// RequestWritable asks the driver to call the handler again once
	// the channel has room.
	RequestWritable()
}

// Handler produces a report in one or more steps.
type Handler interface {
	// Step renders and delivers the report. It returns true when the
	// driver must not call it again.
	Step(ch Channel) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ch Channel) bool

// Step calls f.
func (f HandlerFunc) Step(ch Channel) bool { return f(ch) }

// deliver hands buf to ch and tells whether the report is finished.
func deliver(ch Channel, buf []byte) bool {
	switch ch.TryWrite(buf) {
	case Accepted, Closed:
		return true
	default:
		ch.RequestWritable()
		return false
	}
}

// Text returns a handler delivering a fixed text.
func Text(s string) Handler {
	buf := []byte(s)
	return HandlerFunc(func(ch Channel) bool { return deliver(ch, buf) })
}
