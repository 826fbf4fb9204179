// Package orchestrator runs debates end to end: it gates requests on
// complexity, consults the result cache, drives the provider pair
// concurrently, merges perspectives into consensus, and assembles the
// decision pack. It also implements the two-phase protocol for callers
// whose primary analysis happens out of band.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/parleyhq/parley/internal/cache"
	"github.com/parleyhq/parley/internal/complexity"
	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/event"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/perrors"
	"github.com/parleyhq/parley/internal/provider"
)

// DefaultTarget is the consensus score a debate aims for when the request
// does not specify one.
const DefaultTarget = 75

// Config wires an Orchestrator. Providers, Sessions, and Scorer are
// required; Cache and History are optional and disable their features
// when nil.
type Config struct {
	Providers  provider.Pair
	Sessions   debate.Store
	Scorer     debate.Scorer
	Cache      *cache.Store
	History    *history.Log
	Complexity *complexity.Engine
	Bus        *event.Bus
	Logger     *logging.Logger

	// DefaultTarget overrides the package default target consensus.
	DefaultTarget int

	// DefaultMaxRounds is how many collection rounds a debate may use when
	// the request does not set its own limit. Failed providers are retried
	// once per additional round before consensus goes partial. Zero or one
	// means a single round.
	DefaultMaxRounds int
}

// RunOptions adjust a single debate run.
type RunOptions struct {
	// Force skips the complexity gate and debates regardless of score.
	Force bool
	// NoCache bypasses the result cache for this run.
	NoCache bool
}

// Outcome is the result of a completed debate.
type Outcome struct {
	SessionID  string                  `json:"session_id"`
	Pack       *debate.Pack            `json:"pack"`
	Consensus  *debate.ConsensusResult `json:"consensus,omitempty"`
	Target     int                     `json:"target"`
	CanProceed bool                    `json:"can_proceed"`
	Cached     bool                    `json:"cached,omitempty"`
	Elapsed    time.Duration           `json:"elapsed_ns"`
}

// StartResult is the output of the first phase of a two-phase debate: the
// session to complete later and the prompt the caller should run in their
// own reasoning session.
type StartResult struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// Orchestrator coordinates debates. Safe for concurrent use; each run owns
// its session and event stream.
type Orchestrator struct {
	providers  provider.Pair
	sessions   debate.Store
	scorer     debate.Scorer
	cache      *cache.Store
	history    *history.Log
	complexity *complexity.Engine
	bus        *event.Bus
	log        *logging.Logger
	target     int
	maxRounds  int
}

// New creates an Orchestrator from the given config.
func New(cfg Config) *Orchestrator {
	if cfg.Complexity == nil {
		cfg.Complexity = complexity.New(0, 0)
	}
	if cfg.Bus == nil {
		cfg.Bus = event.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.DefaultTarget <= 0 {
		cfg.DefaultTarget = DefaultTarget
	}
	return &Orchestrator{
		providers:  cfg.Providers,
		sessions:   cfg.Sessions,
		scorer:     cfg.Scorer,
		cache:      cfg.Cache,
		history:    cfg.History,
		complexity: cfg.Complexity,
		bus:        cfg.Bus,
		log:        cfg.Logger,
		target:     cfg.DefaultTarget,
		maxRounds:  cfg.DefaultMaxRounds,
	}
}

// Bus returns the event bus runs publish on.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// Complexity returns the complexity engine, for the check surface.
func (o *Orchestrator) Complexity() *complexity.Engine {
	return o.complexity
}

// History returns the history log, or nil when history is disabled.
func (o *Orchestrator) History() *history.Log {
	return o.history
}

// Run executes a full debate for the request and returns its outcome.
// Below-threshold requests are refused with ErrDebateNotRequired unless
// opts.Force is set. An equivalent request completed within the cache TTL
// is served from the cache with zero provider invocations.
func (o *Orchestrator) Run(ctx context.Context, req debate.Request, opts RunOptions) (*Outcome, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := validateFiles(req.Files); err != nil {
		return nil, err
	}
	if err := o.gate(req, opts.Force); err != nil {
		return nil, err
	}

	if out, ok := o.tryCache(ctx, req, opts); ok {
		out.Elapsed = time.Since(start)
		return out, nil
	}

	sess := debate.NewSession(o.sessions, o.scorer, 2)
	stream := event.NewStream(o.bus, sess.ID())
	log := o.log.WithSession(sess.ID())

	if err := sess.Start(ctx, req); err != nil {
		return nil, err
	}
	stream.Start(event.StartData{
		Topic:      req.Topic,
		Files:      req.Files,
		FocusAreas: req.FocusAreas,
		Providers: []string{
			o.providers.Primary.Identity(),
			o.providers.Counter.Identity(),
		},
	})
	log.Info("debate started", "topic", req.Topic)

	submitted, err := o.collectPerspectives(ctx, sess, stream, req)
	if err != nil {
		return nil, err
	}
	if submitted == 0 {
		stream.Error("", "all providers failed", false)
		if failErr := sess.Fail(ctx, "all providers failed"); failErr != nil {
			log.Error("failed to record failure", "error", failErr)
		}
		return nil, perrors.NewProviderError("all providers failed",
			perrors.ErrProviderUnavailable)
	}
	if submitted < 2 {
		if err := sess.FinalizeScoring(ctx); err != nil {
			return nil, err
		}
	}

	return o.finish(ctx, sess, stream, start, false)
}

// StartExternal begins a two-phase debate: it creates the session and
// returns the prompt the caller should run through their own reasoning
// session. The debate resumes in CompleteExternal, possibly in a different
// process.
func (o *Orchestrator) StartExternal(ctx context.Context, req debate.Request, opts RunOptions) (*StartResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := validateFiles(req.Files); err != nil {
		return nil, err
	}
	if err := o.gate(req, opts.Force); err != nil {
		return nil, err
	}

	sess := debate.NewSession(o.sessions, o.scorer, 2)
	if err := sess.Start(ctx, req); err != nil {
		return nil, err
	}

	stream := event.NewStream(o.bus, sess.ID())
	stream.Start(event.StartData{
		Topic:      req.Topic,
		Files:      req.Files,
		FocusAreas: req.FocusAreas,
		Providers:  []string{"external", o.providers.Counter.Identity()},
	})
	o.log.WithSession(sess.ID()).Info("two-phase debate started", "topic", req.Topic)

	// Persist the counter so completion continues the sequence instead of
	// restarting at 1.
	if err := sess.SetEventSeq(ctx, stream.Seq()); err != nil {
		o.log.WithSession(sess.ID()).Warn("event seq not persisted", "error", err)
	}

	return &StartResult{
		SessionID: sess.ID(),
		Prompt:    provider.BuildPrompt(req, provider.RolePrimary),
	}, nil
}

// CompleteExternal finishes a two-phase debate: the caller's analysis text
// becomes the primary perspective and the counter provider argues against
// it. The session is resumed from storage, so completion survives a
// process restart between phases.
func (o *Orchestrator) CompleteExternal(ctx context.Context, sessionID, analysis string) (*Outcome, error) {
	start := time.Now()

	sess, err := debate.Resume(ctx, o.sessions, o.scorer, sessionID)
	if err != nil {
		return nil, err
	}
	stream := event.NewStreamAt(o.bus, sessionID, sess.EventSeq())
	log := o.log.WithSession(sessionID)
	req := sess.Request()

	ext := provider.NewExternalProvider("external", analysis)
	primary, err := ext.Invoke(ctx, req, provider.RolePrimary)
	if err != nil {
		return nil, err
	}
	if err := sess.SubmitPerspective(ctx, primary); err != nil {
		return nil, err
	}
	stream.Perspective(perspectiveData(primary))

	submitted := 1
	counterID := o.providers.Counter.Identity()
	for round := 1; round <= o.maxRoundsFor(req); round++ {
		if round > 1 {
			if err := sess.AdvanceRound(ctx); err != nil {
				return nil, err
			}
		}
		stream.Progress(counterID, 0, invokeMessage(round))
		counter, err := o.providers.Counter.Invoke(ctx, req, provider.RoleCounter)
		if err != nil {
			log.Warn("counter provider failed", "round", round, "error", err)
			stream.Error(counterID, err.Error(), true)
			continue
		}
		if err := sess.SubmitPerspective(ctx, counter); err != nil {
			return nil, err
		}
		stream.Perspective(perspectiveData(counter))
		submitted++
		break
	}

	if submitted < 2 {
		if err := sess.FinalizeScoring(ctx); err != nil {
			return nil, err
		}
	}

	return o.finish(ctx, sess, stream, start, true)
}

// Cancel aborts a session that is still collecting perspectives.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID, reason string) error {
	sess, err := debate.Resume(ctx, o.sessions, o.scorer, sessionID)
	if err != nil {
		return err
	}
	if err := sess.Cancel(ctx, reason); err != nil {
		return err
	}

	stream := event.NewStreamAt(o.bus, sessionID, sess.EventSeq())
	stream.Error("", "debate canceled: "+reason, false)
	if err := sess.SetEventSeq(ctx, stream.Seq()); err != nil {
		o.log.WithSession(sessionID).Warn("event seq not persisted", "error", err)
	}
	o.log.WithSession(sessionID).Info("debate canceled", "reason", reason)
	return nil
}

// Override records a human decision on a session and builds its decision
// pack regardless of consensus score.
func (o *Orchestrator) Override(ctx context.Context, sessionID, actor, justification string) (*Outcome, error) {
	start := time.Now()

	sess, err := debate.Resume(ctx, o.sessions, o.scorer, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RecordOverride(ctx, actor, justification); err != nil {
		return nil, err
	}

	stream := event.NewStreamAt(o.bus, sessionID, sess.EventSeq())
	o.log.WithSession(sessionID).Info("consensus overridden", "actor", actor)
	return o.finish(ctx, sess, stream, start, false)
}

// Pack returns the decision pack for a session, building it if the
// session has reached consensus but the pack was never materialized.
func (o *Orchestrator) Pack(ctx context.Context, sessionID string) (*debate.Pack, error) {
	sess, err := debate.Resume(ctx, o.sessions, o.scorer, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.BuildDecisionPack(ctx)
}

// gate refuses below-threshold requests unless forced.
func (o *Orchestrator) gate(req debate.Request, force bool) error {
	if force {
		return nil
	}
	res := o.complexity.Assess(req)
	if !res.Required {
		return perrors.Wrapf(perrors.ErrDebateNotRequired,
			"complexity %d below threshold %d", res.Score, res.Threshold)
	}
	return nil
}

// tryCache serves the request from the cache when possible, replaying the
// stored debate's milestones as events on a fresh stream.
func (o *Orchestrator) tryCache(ctx context.Context, req debate.Request, opts RunOptions) (*Outcome, bool) {
	if o.cache == nil || opts.NoCache {
		return nil, false
	}

	entry, ok, err := o.cache.Get(ctx, req.Fingerprint())
	if err != nil {
		o.log.Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if !ok || entry.Session.Pack == nil {
		return nil, false
	}

	rec := entry.Session
	// Continue the session's event counter past everything already emitted,
	// including events from earlier replays of the same entry.
	seq := rec.EventSeq
	if stored, loadErr := o.sessions.LoadSession(ctx, rec.ID); loadErr == nil && stored.EventSeq > seq {
		seq = stored.EventSeq
	}
	stream := event.NewStreamAt(o.bus, rec.ID, seq)
	stream.Start(event.StartData{
		Topic:      req.Topic,
		Files:      req.Files,
		FocusAreas: req.FocusAreas,
		Cached:     true,
	})
	for _, p := range rec.Perspectives {
		stream.Perspective(perspectiveData(p))
	}
	if rec.Consensus != nil {
		stream.Consensus(consensusData(rec.Consensus))
	}

	target := o.targetFor(rec.Request)
	out := &Outcome{
		SessionID:  rec.ID,
		Pack:       rec.Pack,
		Consensus:  rec.Consensus,
		Target:     target,
		CanProceed: rec.Pack.CanProceed(target),
		Cached:     true,
	}
	stream.Complete(event.CompleteData{
		Score:      scoreOf(rec.Consensus),
		Band:       bandOf(rec.Consensus),
		CanProceed: out.CanProceed,
		Cached:     true,
	})
	if sess, resumeErr := debate.Resume(ctx, o.sessions, o.scorer, rec.ID); resumeErr == nil {
		if err := sess.SetEventSeq(ctx, stream.Seq()); err != nil {
			o.log.WithSession(rec.ID).Warn("event seq not persisted", "error", err)
		}
	}
	o.appendHistory(rec, true)
	o.log.WithSession(rec.ID).Info("debate served from cache",
		"fingerprint", entry.Fingerprint)
	return out, true
}

// collectPerspectives invokes both providers concurrently and submits
// perspectives in completion order. Providers that fail are retried once
// per remaining collection round before the count is returned.
func (o *Orchestrator) collectPerspectives(ctx context.Context, sess *debate.Session, stream *event.Stream, req debate.Request) (int, error) {
	type invocation struct {
		p    debate.Perspective
		err  error
		who  string
		prov provider.Provider
		role provider.Role
	}

	invoke := func(pr provider.Provider, role provider.Role, out chan<- invocation) {
		p, err := pr.Invoke(ctx, req, role)
		out <- invocation{p: p, err: err, who: pr.Identity(), prov: pr, role: role}
	}

	cancelRun := func() (int, error) {
		if err := sess.Cancel(context.WithoutCancel(ctx), "context canceled"); err != nil {
			o.log.WithSession(sess.ID()).Warn("cancel failed", "error", err)
		}
		stream.Error("", "debate canceled", false)
		return 0, perrors.Wrap(perrors.ErrCanceled, "debate interrupted")
	}

	// All events are emitted from this goroutine so Seq order matches
	// delivery order.
	stream.Progress(o.providers.Primary.Identity(), 0, "invoking")
	stream.Progress(o.providers.Counter.Identity(), 0, "invoking")

	results := make(chan invocation, 2)
	go invoke(o.providers.Primary, provider.RolePrimary, results)
	go invoke(o.providers.Counter, provider.RoleCounter, results)

	submitted := 0
	var failed []invocation
	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return cancelRun()
		case inv := <-results:
			if inv.err != nil {
				o.log.WithSession(sess.ID()).WithProvider(inv.who).
					Warn("provider failed", "error", inv.err)
				stream.Error(inv.who, inv.err.Error(), true)
				failed = append(failed, inv)
				continue
			}
			if err := sess.SubmitPerspective(ctx, inv.p); err != nil {
				return submitted, err
			}
			stream.Perspective(perspectiveData(inv.p))
			submitted++
		}
	}

	// Failed providers get another chance while collection rounds remain.
	for round := 2; round <= o.maxRoundsFor(req) && len(failed) > 0; round++ {
		if ctx.Err() != nil {
			return cancelRun()
		}
		if err := sess.AdvanceRound(ctx); err != nil {
			return submitted, err
		}

		var still []invocation
		for _, inv := range failed {
			stream.Progress(inv.who, 0, invokeMessage(round))
			p, err := inv.prov.Invoke(ctx, req, inv.role)
			if err != nil {
				o.log.WithSession(sess.ID()).WithProvider(inv.who).
					Warn("provider failed", "round", round, "error", err)
				stream.Error(inv.who, err.Error(), true)
				still = append(still, inv)
				continue
			}
			if err := sess.SubmitPerspective(ctx, p); err != nil {
				return submitted, err
			}
			stream.Perspective(perspectiveData(p))
			submitted++
		}
		failed = still
	}
	return submitted, nil
}

// finish runs the shared tail of every successful debate: advisories,
// consensus event, decision pack, cache write, history append, complete
// event.
func (o *Orchestrator) finish(ctx context.Context, sess *debate.Session, stream *event.Stream, start time.Time, twoPhase bool) (*Outcome, error) {
	req := sess.Request()
	log := o.log.WithSession(sess.ID())

	if sess.State() != debate.StatePackReady {
		adv := debate.Advisory{ComplexityScore: o.complexity.Score(req)}
		if o.history != nil {
			if records, err := o.history.All(); err == nil {
				risk := o.complexity.PredictRisk(req, records)
				adv.RiskScore = risk.Score
				adv.RiskPatterns = risk.Patterns
			}
		}
		if err := sess.SetAdvisory(ctx, adv); err != nil {
			return nil, err
		}
	}

	consensus := sess.Consensus()
	if consensus != nil {
		stream.Consensus(consensusData(consensus))
	}

	pack, err := sess.BuildDecisionPack(ctx)
	if err != nil {
		return nil, err
	}

	target := o.targetFor(req)
	out := &Outcome{
		SessionID:  sess.ID(),
		Pack:       pack,
		Consensus:  consensus,
		Target:     target,
		CanProceed: pack.CanProceed(target),
		Elapsed:    time.Since(start),
	}
	stream.Complete(event.CompleteData{
		Score:      scoreOf(consensus),
		Band:       bandOf(consensus),
		CanProceed: out.CanProceed,
		ElapsedSec: out.Elapsed.Seconds(),
	})
	// Record the final sequence number before snapshotting, so cached
	// replays and later phases continue the counter.
	if err := sess.SetEventSeq(ctx, stream.Seq()); err != nil {
		log.Warn("event seq not persisted", "error", err)
	}

	rec := sess.Snapshot()
	if o.cache != nil && !twoPhase {
		if err := o.cache.Put(ctx, req.Fingerprint(), rec, 0); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}
	o.appendHistory(rec, false)

	log.Info("debate complete",
		"score", scoreOf(consensus), "can_proceed", out.CanProceed)
	return out, nil
}

// appendHistory records a finished debate, best effort.
func (o *Orchestrator) appendHistory(rec debate.Record, cached bool) {
	if o.history == nil {
		return
	}
	h := history.Record{
		SessionID:  rec.ID,
		Topic:      rec.Request.Topic,
		Files:      rec.Request.Files,
		FocusAreas: rec.Request.FocusAreas,
		Overridden: rec.Override != nil,
		Cached:     cached,
	}
	if rec.Consensus != nil {
		h.Score = rec.Consensus.Score
		h.Band = string(rec.Consensus.Band)
		h.Partial = rec.Consensus.Partial
	}
	if err := o.history.Append(h); err != nil {
		o.log.Warn("history append failed", "error", err)
	}
}

// targetFor resolves the effective target consensus for a request.
func (o *Orchestrator) targetFor(req debate.Request) int {
	if req.TargetConsensus > 0 {
		return req.TargetConsensus
	}
	return o.target
}

// maxRoundsFor resolves how many collection rounds a request allows.
func (o *Orchestrator) maxRoundsFor(req debate.Request) int {
	if req.MaxRounds > 0 {
		return req.MaxRounds
	}
	if o.maxRounds > 0 {
		return o.maxRounds
	}
	return 1
}

// validateFiles rejects requests naming context files that cannot be read.
// Checked before any session state is created.
func validateFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return perrors.NewValidationError(fmt.Sprintf("file not readable: %s", f)).
				WithField("files").WithValue(f).WithCause(err)
		}
	}
	return nil
}

func invokeMessage(round int) string {
	if round <= 1 {
		return "invoking"
	}
	return fmt.Sprintf("retrying (round %d)", round)
}

func perspectiveData(p debate.Perspective) event.PerspectiveData {
	summary := ""
	if len(p.Position.Concerns) > 0 {
		summary = p.Position.Concerns[0]
	}
	return event.PerspectiveData{
		Provider:   p.Provider,
		Stance:     string(p.Position.Stance),
		Confidence: p.Position.Confidence,
		Summary:    summary,
		ElapsedSec: p.Latency.Seconds(),
	}
}

func consensusData(c *debate.ConsensusResult) event.ConsensusData {
	return event.ConsensusData{
		Score:          c.Score,
		Band:           string(c.Band),
		Recommendation: c.Recommendation,
		Partial:        c.Partial,
		Unverified:     c.Unverified,
	}
}

func scoreOf(c *debate.ConsensusResult) int {
	if c == nil {
		return 0
	}
	return c.Score
}

func bandOf(c *debate.ConsensusResult) string {
	if c == nil {
		return ""
	}
	return string(c.Band)
}
