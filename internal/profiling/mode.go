// Package profiling holds the process-wide profiling switch.
//
// The switch lives in a single 32-bit word shared with other profiling
// flags. The two low bits carry the task profiling mode:
//
//	bit 0: enabled    bit 1: automatic
//
//	Off     = 0b00    On     = 0b01
//	AutoOff = 0b10    AutoOn = 0b11
//
// The numeric value of the mode bits is its rank. Every update reads the
// whole word, replaces only its own bits and compare-and-swaps the whole
// word back, retrying until it wins, so concurrent updates of the other
// bits are never lost.
package profiling

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Mode is the task profiling mode.
type Mode uint32

const (
	ModeOff     Mode = 0
	ModeOn      Mode = 1
	ModeAutoOff Mode = 2
	ModeAutoOn  Mode = 3
)

const (
	modeEnabled Mode = 1 << 0
	modeAuto    Mode = 1 << 1
)

// Bits of the shared word.
const (
	// TasksMask covers the task profiling mode.
	TasksMask uint32 = 0x3
	// FlagMemory enables memory profiling. It is not driven by this
	// package's transitions and must survive all of them.
	FlagMemory uint32 = 0x4
)

// String returns the label used in reports.
func (m Mode) String() string {
	switch m {
	case ModeOn:
		return "on"
	case ModeAutoOff:
		return "auto-off"
	case ModeAutoOn:
		return "auto-on"
	default:
		return "off"
	}
}

// Enabled reports whether tasks are profiled in this mode.
func (m Mode) Enabled() bool { return m&modeEnabled != 0 }

// Auto reports whether the mode follows automatic promotion.
func (m Mode) Auto() bool { return m&modeAuto != 0 }

// Request is a requested task profiling setting.
type Request int

const (
	RequestOff Request = iota
	RequestOn
	RequestAuto
)

// ErrUnknownRequest is returned by ParseRequest for unknown words.
var ErrUnknownRequest = errors.New("expects 'on', 'auto', or 'off'")

// ParseRequest parses "on", "auto" or "off".
func ParseRequest(s string) (Request, error) {
	switch s {
	case "on":
		return RequestOn, nil
	case "auto":
		return RequestAuto, nil
	case "off":
		return RequestOff, nil
	}
	return 0, fmt.Errorf("%w, got %q", ErrUnknownRequest, s)
}

// String returns the request keyword.
func (r Request) String() string {
	switch r {
	case RequestOn:
		return "on"
	case RequestAuto:
		return "auto"
	default:
		return "off"
	}
}

// State is the shared profiling word.
type State struct {
	word atomic.Uint32
}

// NewState returns a state whose task mode is initial.
func NewState(initial Mode) *State {
	s := &State{}
	s.word.Store(uint32(initial) & TasksMask)
	return s
}

// Word returns the whole shared word.
func (s *State) Word() uint32 {
	return s.word.Load()
}

// Mode returns the current task profiling mode.
func (s *State) Mode() Mode {
	return Mode(s.word.Load() & TasksMask)
}

// update applies fn to the word until the compare-and-swap succeeds and
// returns the word that was stored.
func (s *State) update(fn func(old uint32) uint32) uint32 {
	for {
		old := s.word.Load()
		next := fn(old)
		if s.word.CompareAndSwap(old, next) {
			return next
		}
	}
}

func withMode(word uint32, m Mode) uint32 {
	return (word &^ TasksMask) | uint32(m)
}

// SetTasks applies a requested setting and returns the resulting mode.
// "on" and "off" force the mode. "auto" keeps AutoOn when the current mode
// ranks at least as high, otherwise it selects AutoOff.
func (s *State) SetTasks(req Request) Mode {
	word := s.update(func(old uint32) uint32 {
		switch req {
		case RequestOn:
			return withMode(old, ModeOn)
		case RequestAuto:
			if Mode(old&TasksMask) >= ModeAutoOn {
				return withMode(old, ModeAutoOn)
			}
			return withMode(old, ModeAutoOff)
		default:
			return withMode(old, ModeOff)
		}
	})
	return Mode(word & TasksMask)
}

// Init forces the mode from a configuration setting: "auto" starts in
// AutoOff.
func (s *State) Init(req Request) Mode {
	if req == RequestAuto {
		s.update(func(old uint32) uint32 { return withMode(old, ModeAutoOff) })
		return ModeAutoOff
	}
	return s.SetTasks(req)
}

// CompareAndSwapMode moves the mode from old to next, leaving the other
// bits alone. It returns false if the mode was not old.
func (s *State) CompareAndSwapMode(old, next Mode) bool {
	for {
		word := s.word.Load()
		if Mode(word&TasksMask) != old {
			return false
		}
		if s.word.CompareAndSwap(word, withMode(word, next)) {
			return true
		}
	}
}

// SetFlags sets flag bits outside of the task mode.
func (s *State) SetFlags(bits uint32) {
	bits &^= TasksMask
	s.update(func(old uint32) uint32 { return old | bits })
}

// ClearFlags clears flag bits outside of the task mode.
func (s *State) ClearFlags(bits uint32) {
	bits &^= TasksMask
	s.update(func(old uint32) uint32 { return old &^ bits })
}

// HasFlags reports whether all bits are set.
func (s *State) HasFlags(bits uint32) bool {
	return s.word.Load()&bits == bits
}
