// Package progress carries the pipeline's progress notifications as an
// ordered stream of structured events. Producers never wait on the
// consumer: events are queued and drained on a separate goroutine.
package progress

import (
	"fmt"
	"sync"
)

// Severity of an event
type Severity int

const (
	Message Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Message:
		return "message"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Event is one progress notification
type Event struct {
	Phase    string
	Severity Severity
	Text     string
}

// Sink receives events. Implementations must not block the caller for
// longer than it takes to record the event.
type Sink interface {
	Emit(Event)
}

// Discard drops every event
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Messagef emits a Message event
func Messagef(s Sink, phase, format string, args ...interface{}) {
	s.Emit(Event{Phase: phase, Severity: Message, Text: fmt.Sprintf(format, args...)})
}

// Warnf emits a Warning event
func Warnf(s Sink, phase, format string, args ...interface{}) {
	s.Emit(Event{Phase: phase, Severity: Warning, Text: fmt.Sprintf(format, args...)})
}

// Errorf emits an Error event
func Errorf(s Sink, phase, format string, args ...interface{}) {
	s.Emit(Event{Phase: phase, Severity: Error, Text: fmt.Sprintf(format, args...)})
}

// Stream is an unbounded, ordered queue of events delivered to a
// handler on its own goroutine. Emit never blocks on the handler.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	closed  bool
	done    chan struct{}
	handler func(Event)
}

// NewStream starts a stream that delivers every event to handler in
// emission order
func NewStream(handler func(Event)) *Stream {
	s := &Stream{
		done:    make(chan struct{}),
		handler: handler,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()
	return s
}

// Emit queues an event. Events emitted after Close are dropped.
func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

// Close stops accepting events and waits until every queued event has
// been handled
func (s *Stream) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Signal()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Stream) drain() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			s.handler(e)
		}
	}
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded events with the given severity
func (r *Recorder) Filter(sev Severity) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}
