// Package debate implements the debate session state machine and the data
// model shared across the engine: requests, perspectives, consensus results,
// and decision packs. A session moves through a fixed lifecycle and persists
// itself durably before acknowledging any transition, so an interrupted
// process can resume exactly where it stopped.
package debate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/perrors"
)

// State is the lifecycle state of a debate session.
type State string

const (
	// StateCreated is the initial state before the request is accepted.
	StateCreated State = "created"
	// StateAwaiting means the session is collecting provider perspectives.
	StateAwaiting State = "awaiting_perspectives"
	// StateScoring means all expected perspectives arrived (or collection
	// was finalized) and consensus is being computed.
	StateScoring State = "scoring"
	// StateConsensusReady means a consensus result is available.
	StateConsensusReady State = "consensus_ready"
	// StateOverridden means a human decision superseded the consensus.
	StateOverridden State = "overridden"
	// StatePackReady means the decision pack has been built. Final.
	StatePackReady State = "pack_ready"
	// StateFailed is the terminal failure state.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFailed || s == StatePackReady
}

// Record is the serializable form of a session. It is what gets persisted
// and cached; Session is a Record plus the machinery to mutate it safely.
type Record struct {
	ID                string           `json:"id"`
	Request           Request          `json:"request"`
	Perspectives      []Perspective    `json:"perspectives,omitempty"`
	Round             int              `json:"round"`
	State             State            `json:"state"`
	ExpectedProviders int              `json:"expected_providers"`
	Consensus         *ConsensusResult `json:"consensus,omitempty"`
	Override          *Override        `json:"override,omitempty"`
	Advisory          *Advisory        `json:"advisory,omitempty"`
	Pack              *Pack            `json:"pack,omitempty"`
	FailReason        string           `json:"fail_reason,omitempty"`
	EventSeq          uint64           `json:"event_seq,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Store persists session records. Implementations must make a record
// durable before returning from SaveSession.
type Store interface {
	SaveSession(ctx context.Context, rec Record) error
	LoadSession(ctx context.Context, id string) (Record, error)
}

// Scorer computes a consensus result from recorded perspectives.
type Scorer interface {
	Score(perspectives []Perspective) (*ConsensusResult, error)
}

// Session is a mutex-guarded debate session. All mutating methods persist
// the new state before returning; a method that returns an error leaves the
// in-memory session unchanged.
type Session struct {
	mu     sync.Mutex
	rec    Record
	store  Store
	scorer Scorer
}

// NewSession creates a session in the created state expecting the given
// number of provider perspectives.
func NewSession(store Store, scorer Scorer, expected int) *Session {
	if expected < 1 {
		expected = 1
	}
	now := time.Now().UTC()
	return &Session{
		store:  store,
		scorer: scorer,
		rec: Record{
			ID:                uuid.NewString(),
			State:             StateCreated,
			Round:             1,
			ExpectedProviders: expected,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
}

// Resume rebuilds a session from its persisted record. This is how the
// two-phase protocol survives a process restart between phases.
func Resume(ctx context.Context, store Store, scorer Scorer, id string) (*Session, error) {
	rec, err := store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Session{store: store, scorer: scorer, rec: rec}, nil
}

// Start accepts the request and begins collecting perspectives.
func (s *Session) Start(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State != StateCreated {
		return s.stateError("start debate")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	next := s.rec
	next.Request = req
	next.State = StateAwaiting
	return s.commit(ctx, next)
}

// SubmitPerspective records a completed provider perspective. When the
// expected number of perspectives has arrived the session scores itself and
// moves to consensus_ready. A perspective arriving after the session failed
// (for example after cancellation) is discarded without error.
func (s *Session) SubmitPerspective(ctx context.Context, p Perspective) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State == StateFailed {
		return nil // late arrival after cancel, drop it
	}
	if s.rec.State != StateAwaiting {
		return s.stateError("submit perspective")
	}
	if !p.Position.Stance.Valid() {
		return perrors.NewValidationError(fmt.Sprintf("unknown stance %q", p.Position.Stance)).
			WithField("stance")
	}

	next := s.rec
	next.Perspectives = append(append([]Perspective(nil), s.rec.Perspectives...), p)
	if err := s.commit(ctx, next); err != nil {
		return err
	}

	if len(s.rec.Perspectives) >= s.rec.ExpectedProviders {
		return s.scoreLocked(ctx)
	}
	return nil
}

// FinalizeScoring forces consensus computation over whatever perspectives
// have arrived, marking the result partial if some providers never
// reported. With zero perspectives the session fails instead.
func (s *Session) FinalizeScoring(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State != StateAwaiting {
		return s.stateError("finalize scoring")
	}
	if len(s.rec.Perspectives) == 0 {
		if err := s.failLocked(ctx, "no perspectives recorded"); err != nil {
			return err
		}
		return perrors.NewSessionError("cannot score", perrors.ErrNoPerspectives).
			WithSessionID(s.rec.ID)
	}
	return s.scoreLocked(ctx)
}

// scoreLocked runs the scorer and transitions through scoring to
// consensus_ready. Caller must hold the mutex with state awaiting.
func (s *Session) scoreLocked(ctx context.Context) error {
	next := s.rec
	next.State = StateScoring
	if err := s.commit(ctx, next); err != nil {
		return err
	}

	result, err := s.scorer.Score(s.rec.Perspectives)
	if err != nil {
		if failErr := s.failLocked(ctx, err.Error()); failErr != nil {
			return failErr
		}
		return err
	}
	result.Partial = len(s.rec.Perspectives) < s.rec.ExpectedProviders

	next = s.rec
	next.Consensus = result
	next.State = StateConsensusReady
	return s.commit(ctx, next)
}

// RecordOverride supersedes the consensus with a human decision. Valid from
// any state except failed; overriding a session whose pack was already
// built discards that pack so the next build carries the override. The
// session lands in overridden, from which the decision pack can be built
// regardless of score.
func (s *Session) RecordOverride(ctx context.Context, actor, justification string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State == StateFailed || s.rec.State == StateOverridden {
		return s.stateError("override")
	}
	if actor == "" {
		return perrors.NewValidationError("override actor cannot be empty").WithField("actor")
	}
	if justification == "" {
		return perrors.NewValidationError("override justification cannot be empty").
			WithField("justification")
	}

	next := s.rec
	next.Override = &Override{
		Actor:         actor,
		Justification: justification,
		At:            time.Now().UTC(),
	}
	next.Pack = nil
	next.State = StateOverridden
	return s.commit(ctx, next)
}

// AdvanceRound begins another collection round. Valid only while the
// session is awaiting perspectives.
func (s *Session) AdvanceRound(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State != StateAwaiting {
		return s.stateError("advance round")
	}

	next := s.rec
	next.Round = s.rec.Round + 1
	return s.commit(ctx, next)
}

// Cancel aborts a session that is still collecting perspectives.
func (s *Session) Cancel(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State != StateAwaiting {
		return s.stateError("cancel")
	}
	if reason == "" {
		reason = "canceled"
	}
	return s.failLocked(ctx, reason)
}

// Fail moves the session to the terminal failed state.
func (s *Session) Fail(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State.Terminal() {
		return s.stateError("fail")
	}
	return s.failLocked(ctx, reason)
}

// failLocked transitions to failed. Caller must hold the mutex.
func (s *Session) failLocked(ctx context.Context, reason string) error {
	next := s.rec
	next.State = StateFailed
	next.FailReason = reason
	return s.commit(ctx, next)
}

// SetAdvisory attaches complexity and risk advisories for the decision
// pack. Advisories never affect state transitions.
func (s *Session) SetAdvisory(ctx context.Context, adv Advisory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.State.Terminal() {
		return s.stateError("set advisory")
	}

	next := s.rec
	next.Advisory = &adv
	return s.commit(ctx, next)
}

// BuildDecisionPack assembles the decision pack and moves the session to
// pack_ready. Idempotent: repeated calls return the same pack.
func (s *Session) BuildDecisionPack(ctx context.Context) (*Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Pack != nil {
		pack := *s.rec.Pack
		return &pack, nil
	}

	switch s.rec.State {
	case StateConsensusReady, StateOverridden:
	default:
		return nil, s.stateError("build decision pack")
	}

	pack := BuildPack(s.rec)
	next := s.rec
	next.Pack = pack
	next.State = StatePackReady
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	out := *pack
	return &out, nil
}

// SetEventSeq records the highest event sequence number emitted for this
// session, so a later phase or a cache replay continues the counter
// instead of restarting at 1. Valid in any state; the counter only moves
// forward.
func (s *Session) SetEventSeq(ctx context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.rec.EventSeq {
		return nil
	}
	next := s.rec
	next.EventSeq = seq
	return s.commit(ctx, next)
}

// EventSeq returns the highest recorded event sequence number.
func (s *Session) EventSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.EventSeq
}

// commit persists the candidate record, then adopts it. The in-memory
// session only changes once the write is durable.
func (s *Session) commit(ctx context.Context, next Record) error {
	next.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSession(ctx, next); err != nil {
		return err
	}
	s.rec = next
	return nil
}

// stateError builds the standard wrong-state error. Caller must hold the
// mutex.
func (s *Session) stateError(op string) error {
	return perrors.NewSessionError(fmt.Sprintf("cannot %s", op), perrors.ErrStateViolation).
		WithSessionID(s.rec.ID).
		WithState(string(s.rec.State))
}

// ID returns the session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.ID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.State
}

// Request returns the request under debate.
func (s *Session) Request() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Request
}

// Perspectives returns a copy of the recorded perspectives.
func (s *Session) Perspectives() []Perspective {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Perspective(nil), s.rec.Perspectives...)
}

// Consensus returns the consensus result, or nil before scoring completes.
func (s *Session) Consensus() *ConsensusResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Consensus == nil {
		return nil
	}
	out := *s.rec.Consensus
	return &out
}

// Snapshot returns a copy of the full session record.
func (s *Session) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.rec
	rec.Perspectives = append([]Perspective(nil), s.rec.Perspectives...)
	if s.rec.Consensus != nil {
		c := *s.rec.Consensus
		rec.Consensus = &c
	}
	if s.rec.Override != nil {
		o := *s.rec.Override
		rec.Override = &o
	}
	if s.rec.Advisory != nil {
		a := *s.rec.Advisory
		rec.Advisory = &a
	}
	if s.rec.Pack != nil {
		p := *s.rec.Pack
		rec.Pack = &p
	}
	return rec
}
