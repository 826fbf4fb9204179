package debate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/perrors"
	"github.com/parleyhq/parley/internal/store"
)

// stubScorer returns a fixed result so session tests don't depend on
// scoring math.
type stubScorer struct {
	result *ConsensusResult
	err    error
}

func (s *stubScorer) Score(perspectives []Perspective) (*ConsensusResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func newTestStore(t *testing.T) *Sessions {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return NewSessions(fs)
}

func goodScorer() *stubScorer {
	return &stubScorer{result: &ConsensusResult{
		Score:          82,
		Band:           BandGoodAgreement,
		Recommendation: "Proceed with minor review of the shared concerns.",
	}}
}

func testPerspective(provider string) Perspective {
	return Perspective{
		Provider: provider,
		Position: Position{
			Stance:     StanceApprove,
			Concerns:   []string{"cache invalidation"},
			Confidence: 0.8,
		},
		CompletedAt: time.Now().UTC(),
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)

	if got := sess.State(); got != StateCreated {
		t.Fatalf("initial State() = %q, want %q", got, StateCreated)
	}

	if err := sess.Start(ctx, Request{Topic: "add caching layer"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := sess.State(); got != StateAwaiting {
		t.Fatalf("State() after Start = %q, want %q", got, StateAwaiting)
	}

	if err := sess.SubmitPerspective(ctx, testPerspective("a")); err != nil {
		t.Fatalf("SubmitPerspective(a) error = %v", err)
	}
	if got := sess.State(); got != StateAwaiting {
		t.Fatalf("State() after first perspective = %q, want %q", got, StateAwaiting)
	}

	if err := sess.SubmitPerspective(ctx, testPerspective("b")); err != nil {
		t.Fatalf("SubmitPerspective(b) error = %v", err)
	}
	if got := sess.State(); got != StateConsensusReady {
		t.Fatalf("State() after all perspectives = %q, want %q", got, StateConsensusReady)
	}

	result := sess.Consensus()
	if result == nil || result.Score != 82 {
		t.Fatalf("Consensus() = %+v, want score 82", result)
	}
	if result.Partial {
		t.Error("full participation flagged Partial")
	}

	pack, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("BuildDecisionPack() error = %v", err)
	}
	if pack.SessionID != sess.ID() {
		t.Errorf("pack.SessionID = %q, want %q", pack.SessionID, sess.ID())
	}
	if got := sess.State(); got != StatePackReady {
		t.Errorf("State() after pack = %q, want %q", got, StatePackReady)
	}
}

func TestStartRejectsInvalidRequest(t *testing.T) {
	sess := NewSession(newTestStore(t), goodScorer(), 2)

	err := sess.Start(context.Background(), Request{Topic: "  "})
	if !perrors.Is(err, perrors.ErrInvalidRequest) {
		t.Errorf("Start() error = %v, want ErrInvalidRequest", err)
	}
	if got := sess.State(); got != StateCreated {
		t.Errorf("State() = %q after failed Start, want %q", got, StateCreated)
	}
}

func TestSubmitBeforeStartIsStateViolation(t *testing.T) {
	sess := NewSession(newTestStore(t), goodScorer(), 2)

	err := sess.SubmitPerspective(context.Background(), testPerspective("a"))
	if !perrors.Is(err, perrors.ErrStateViolation) {
		t.Errorf("SubmitPerspective() error = %v, want ErrStateViolation", err)
	}
}

func TestSubmitAfterConsensusIsStateViolation(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 1)
	sess.Start(ctx, Request{Topic: "x"})
	sess.SubmitPerspective(ctx, testPerspective("a"))

	err := sess.SubmitPerspective(ctx, testPerspective("b"))
	if !perrors.Is(err, perrors.ErrStateViolation) {
		t.Errorf("SubmitPerspective() error = %v, want ErrStateViolation", err)
	}
}

func TestAdvanceRound(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	if err := sess.AdvanceRound(ctx); err != nil {
		t.Fatalf("AdvanceRound() error = %v", err)
	}
	if got := sess.Snapshot().Round; got != 2 {
		t.Errorf("Round = %d after advance, want 2", got)
	}

	// Rounds only advance while perspectives are still being collected.
	sess.SubmitPerspective(ctx, testPerspective("a"))
	sess.SubmitPerspective(ctx, testPerspective("b"))
	err := sess.AdvanceRound(ctx)
	if !perrors.Is(err, perrors.ErrStateViolation) {
		t.Errorf("AdvanceRound(consensus_ready) error = %v, want ErrStateViolation", err)
	}
}

func TestSetEventSeqOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	sessions := newTestStore(t)
	sess := NewSession(sessions, goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	if err := sess.SetEventSeq(ctx, 5); err != nil {
		t.Fatalf("SetEventSeq(5) error = %v", err)
	}
	if err := sess.SetEventSeq(ctx, 3); err != nil {
		t.Fatalf("SetEventSeq(3) error = %v", err)
	}
	if got := sess.EventSeq(); got != 5 {
		t.Errorf("EventSeq() = %d, want 5 (lower values ignored)", got)
	}

	// The counter survives a resume.
	resumed, err := Resume(ctx, sessions, goodScorer(), sess.ID())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := resumed.EventSeq(); got != 5 {
		t.Errorf("resumed EventSeq() = %d, want 5", got)
	}
}

func TestCancelDiscardsLatePerspectives(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	if err := sess.Cancel(ctx, "user interrupt"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got := sess.State(); got != StateFailed {
		t.Fatalf("State() after Cancel = %q, want %q", got, StateFailed)
	}

	// A perspective landing after cancellation is dropped silently.
	if err := sess.SubmitPerspective(ctx, testPerspective("late")); err != nil {
		t.Errorf("late SubmitPerspective() error = %v, want nil (discard)", err)
	}
	if got := len(sess.Perspectives()); got != 0 {
		t.Errorf("Perspectives() length = %d after discard, want 0", got)
	}
}

func TestFinalizeScoringPartial(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})
	sess.SubmitPerspective(ctx, testPerspective("only"))

	if err := sess.FinalizeScoring(ctx); err != nil {
		t.Fatalf("FinalizeScoring() error = %v", err)
	}
	result := sess.Consensus()
	if result == nil || !result.Partial {
		t.Errorf("Consensus() = %+v, want Partial=true", result)
	}
}

func TestFinalizeScoringWithNothingFails(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	err := sess.FinalizeScoring(ctx)
	if !perrors.Is(err, perrors.ErrNoPerspectives) {
		t.Errorf("FinalizeScoring() error = %v, want ErrNoPerspectives", err)
	}
	if got := sess.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
}

func TestOverrideFromNonTerminalStates(t *testing.T) {
	ctx := context.Background()

	// Override while still awaiting perspectives.
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})
	if err := sess.RecordOverride(ctx, "alice", "shipping anyway"); err != nil {
		t.Fatalf("RecordOverride(awaiting) error = %v", err)
	}
	if got := sess.State(); got != StateOverridden {
		t.Fatalf("State() = %q, want %q", got, StateOverridden)
	}

	// The pack builds regardless of score.
	pack, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("BuildDecisionPack() after override error = %v", err)
	}
	if pack.Override == nil || pack.Override.Actor != "alice" {
		t.Errorf("pack.Override = %+v, want actor alice", pack.Override)
	}
	if !pack.CanProceed(100) {
		t.Error("CanProceed() = false for overridden pack")
	}

	// Override after consensus.
	sess2 := NewSession(newTestStore(t), goodScorer(), 1)
	sess2.Start(ctx, Request{Topic: "y"})
	sess2.SubmitPerspective(ctx, testPerspective("a"))
	if err := sess2.RecordOverride(ctx, "bob", "risk accepted"); err != nil {
		t.Fatalf("RecordOverride(consensus_ready) error = %v", err)
	}
}

func TestOverrideSupersedesBuiltPack(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 1)
	sess.Start(ctx, Request{Topic: "x"})
	sess.SubmitPerspective(ctx, testPerspective("a"))
	if _, err := sess.BuildDecisionPack(ctx); err != nil {
		t.Fatalf("BuildDecisionPack() error = %v", err)
	}

	if err := sess.RecordOverride(ctx, "alice", "risk accepted"); err != nil {
		t.Fatalf("RecordOverride(pack_ready) error = %v", err)
	}
	if got := sess.State(); got != StateOverridden {
		t.Fatalf("State() = %q, want %q", got, StateOverridden)
	}

	pack, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("BuildDecisionPack() after override error = %v", err)
	}
	if pack.Override == nil {
		t.Fatal("rebuilt pack is missing the override")
	}
	if !pack.CanProceed(100) {
		t.Error("CanProceed() = false for overridden pack")
	}
}

func TestOverrideFromTerminalStateFails(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})
	sess.Cancel(ctx, "done")

	err := sess.RecordOverride(ctx, "alice", "too late")
	if !perrors.Is(err, perrors.ErrStateViolation) {
		t.Errorf("RecordOverride(failed) error = %v, want ErrStateViolation", err)
	}
}

func TestOverrideRequiresActorAndJustification(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	if err := sess.RecordOverride(ctx, "", "reason"); !perrors.Is(err, perrors.ErrInvalidRequest) {
		t.Errorf("RecordOverride(no actor) error = %v, want ErrInvalidRequest", err)
	}
	if err := sess.RecordOverride(ctx, "alice", ""); !perrors.Is(err, perrors.ErrInvalidRequest) {
		t.Errorf("RecordOverride(no justification) error = %v, want ErrInvalidRequest", err)
	}
}

func TestDecisionPackIdempotent(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 1)
	sess.Start(ctx, Request{Topic: "x"})
	sess.SubmitPerspective(ctx, testPerspective("a"))

	p1, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("first BuildDecisionPack() error = %v", err)
	}
	p2, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("second BuildDecisionPack() error = %v", err)
	}
	if !p1.GeneratedAt.Equal(p2.GeneratedAt) {
		t.Error("repeated BuildDecisionPack() rebuilt the pack")
	}
}

func TestDecisionPackBeforeConsensusFails(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "x"})

	_, err := sess.BuildDecisionPack(ctx)
	if !perrors.Is(err, perrors.ErrStateViolation) {
		t.Errorf("BuildDecisionPack() error = %v, want ErrStateViolation", err)
	}
}

func TestResumeRestoresSession(t *testing.T) {
	ctx := context.Background()
	sessions := newTestStore(t)

	sess := NewSession(sessions, goodScorer(), 2)
	sess.Start(ctx, Request{Topic: "resumable debate"})
	sess.SubmitPerspective(ctx, testPerspective("a"))
	id := sess.ID()

	// A fresh handle over the same storage sees the persisted state.
	resumed, err := Resume(ctx, sessions, goodScorer(), id)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := resumed.State(); got != StateAwaiting {
		t.Errorf("resumed State() = %q, want %q", got, StateAwaiting)
	}
	if got := resumed.Request().Topic; got != "resumable debate" {
		t.Errorf("resumed Request().Topic = %q, want %q", got, "resumable debate")
	}
	if got := len(resumed.Perspectives()); got != 1 {
		t.Errorf("resumed Perspectives() length = %d, want 1", got)
	}

	// Completing on the resumed handle works.
	if err := resumed.SubmitPerspective(ctx, testPerspective("b")); err != nil {
		t.Fatalf("SubmitPerspective() on resumed session error = %v", err)
	}
	if got := resumed.State(); got != StateConsensusReady {
		t.Errorf("resumed State() = %q, want %q", got, StateConsensusReady)
	}
}

func TestResumeMissingSession(t *testing.T) {
	_, err := Resume(context.Background(), newTestStore(t), goodScorer(), "nope")
	if !perrors.Is(err, perrors.ErrSessionNotFound) {
		t.Errorf("Resume() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 1)
	sess.Start(ctx, Request{Topic: "x"})
	sess.SubmitPerspective(ctx, testPerspective("a"))

	snap := sess.Snapshot()
	snap.Perspectives[0].Provider = "mutated"
	snap.Consensus.Score = 0

	if got := sess.Perspectives()[0].Provider; got != "a" {
		t.Errorf("mutating snapshot changed session perspective: %q", got)
	}
	if got := sess.Consensus().Score; got != 82 {
		t.Errorf("mutating snapshot changed session consensus: %d", got)
	}
}

func TestPackMarkdown(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(newTestStore(t), goodScorer(), 1)
	sess.Start(ctx, Request{Topic: "add caching layer", FocusAreas: []string{"performance"}})
	sess.SubmitPerspective(ctx, testPerspective("codex-cli"))

	pack, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		t.Fatalf("BuildDecisionPack() error = %v", err)
	}

	md := pack.Markdown()
	for _, want := range []string{"add caching layer", "82/100", "Good Agreement", "codex-cli"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q", want)
		}
	}
}
