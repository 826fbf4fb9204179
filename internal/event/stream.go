package event

import (
	"sync/atomic"
	"time"
)

// Stream emits events for a single debate session, stamping each with the
// session ID and the next sequence number. A consumer observing a gap or a
// repeat in Seq knows delivery misbehaved. Safe for concurrent use by the
// provider goroutines of one session.
type Stream struct {
	sessionID string
	bus       *Bus
	seq       atomic.Uint64
}

// NewStream creates a Stream for the given session, publishing through bus.
func NewStream(bus *Bus, sessionID string) *Stream {
	return &Stream{sessionID: sessionID, bus: bus}
}

// NewStreamAt creates a Stream whose sequence numbers continue after last.
// Used when a session resumes in another process or replays from cache, so
// one session never reuses a Seq.
func NewStreamAt(bus *Bus, sessionID string, last uint64) *Stream {
	s := &Stream{sessionID: sessionID, bus: bus}
	s.seq.Store(last)
	return s
}

// Seq returns the last sequence number emitted.
func (s *Stream) Seq() uint64 {
	return s.seq.Load()
}

// SessionID returns the session this stream belongs to.
func (s *Stream) SessionID() string {
	return s.sessionID
}

// Emit stamps and publishes an event of the given type.
func (s *Stream) Emit(t Type, data any) Event {
	ev := Event{
		Type:      t,
		SessionID: s.sessionID,
		Seq:       s.seq.Add(1),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	s.bus.Publish(ev)
	return ev
}

// Start emits a start event.
func (s *Stream) Start(data StartData) Event {
	return s.Emit(TypeStart, data)
}

// Progress emits a progress event for a provider.
func (s *Stream) Progress(provider string, percent int, message string) Event {
	return s.Emit(TypeProgress, ProgressData{
		Provider: provider,
		Percent:  percent,
		Message:  message,
	})
}

// Perspective emits a perspective event.
func (s *Stream) Perspective(data PerspectiveData) Event {
	return s.Emit(TypePerspective, data)
}

// Consensus emits a consensus event.
func (s *Stream) Consensus(data ConsensusData) Event {
	return s.Emit(TypeConsensus, data)
}

// Complete emits a complete event.
func (s *Stream) Complete(data CompleteData) Event {
	return s.Emit(TypeComplete, data)
}

// Error emits an error event.
func (s *Stream) Error(provider, message string, recoverable bool) Event {
	return s.Emit(TypeError, ErrorData{
		Provider:    provider,
		Message:     message,
		Recoverable: recoverable,
	})
}
