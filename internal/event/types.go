// Package event defines the stream events a debate emits and the bus that
// delivers them. The orchestrator publishes one self-contained event per
// milestone; renderers and other observers subscribe without the core ever
// knowing how events are displayed.
package event

import "time"

// Type identifies the kind of stream event.
type Type string

const (
	// TypeStart marks the beginning of a debate.
	TypeStart Type = "start"
	// TypeProgress reports incremental progress from a provider.
	TypeProgress Type = "progress"
	// TypePerspective reports a completed provider perspective.
	TypePerspective Type = "perspective"
	// TypeConsensus reports the merged consensus result.
	TypeConsensus Type = "consensus"
	// TypeComplete marks the end of a debate, successful or not.
	TypeComplete Type = "complete"
	// TypeError reports a recoverable or fatal failure.
	TypeError Type = "error"
)

// Event is a single stream event. Each event is self-contained and
// JSON-serializable so a consumer can render it without prior state. Seq is
// monotonically increasing within a session.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// StartData is the payload of a start event.
type StartData struct {
	Topic      string   `json:"topic"`
	Files      []string `json:"files,omitempty"`
	FocusAreas []string `json:"focus_areas,omitempty"`
	Providers  []string `json:"providers,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
}

// ProgressData is the payload of a progress event.
type ProgressData struct {
	Provider string `json:"provider"`
	Percent  int    `json:"percent"`
	Message  string `json:"message,omitempty"`
}

// PerspectiveData is the payload of a perspective event.
type PerspectiveData struct {
	Provider   string  `json:"provider"`
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

// ConsensusData is the payload of a consensus event.
type ConsensusData struct {
	Score          int    `json:"score"`
	Band           string `json:"band"`
	Recommendation string `json:"recommendation,omitempty"`
	Partial        bool   `json:"partial,omitempty"`
	Unverified     bool   `json:"unverified,omitempty"`
}

// CompleteData is the payload of a complete event.
type CompleteData struct {
	Score      int     `json:"score"`
	Band       string  `json:"band"`
	CanProceed bool    `json:"can_proceed"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Cached     bool    `json:"cached,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Provider    string `json:"provider,omitempty"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}
