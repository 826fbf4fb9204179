package debate

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/perrors"
)

// Stance is a provider's overall position on a proposed change.
type Stance string

const (
	// StanceApprove endorses the change as proposed.
	StanceApprove Stance = "approve"
	// StanceApproveWithChanges endorses the change conditional on revisions.
	StanceApproveWithChanges Stance = "approve_with_changes"
	// StanceReject opposes the change.
	StanceReject Stance = "reject"
)

// Valid reports whether s is one of the known stances.
func (s Stance) Valid() bool {
	switch s {
	case StanceApprove, StanceApproveWithChanges, StanceReject:
		return true
	}
	return false
}

// Request describes the proposed change under debate. A request is immutable
// once a session starts.
type Request struct {
	// Topic is a free-text description of the proposed change.
	Topic string `json:"topic"`
	// Files are paths giving context for the change.
	Files []string `json:"files,omitempty"`
	// FocusAreas direct provider attention (security, performance, ...).
	FocusAreas []string `json:"focus_areas,omitempty"`
	// TargetConsensus is the score the debate aims for. Zero means the
	// configured default.
	TargetConsensus int `json:"target_consensus,omitempty"`
	// MaxRounds bounds debate rounds. Zero means the configured default.
	MaxRounds int `json:"max_rounds,omitempty"`
}

// Validate checks the request is debatable.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return perrors.NewValidationError("topic cannot be empty").WithField("topic")
	}
	if r.TargetConsensus < 0 || r.TargetConsensus > 100 {
		return perrors.NewValidationError("target consensus must be 0-100").
			WithField("target_consensus").WithValue(r.TargetConsensus)
	}
	if r.MaxRounds < 0 {
		return perrors.NewValidationError("max rounds cannot be negative").
			WithField("max_rounds").WithValue(r.MaxRounds)
	}
	return nil
}

// Fingerprint returns a stable cache key for the request: a truncated
// SHA-256 over the normalized topic plus sorted copies of files and focus
// areas. Reordering files or focus areas does not change the fingerprint.
func (r Request) Fingerprint() string {
	files := append([]string(nil), r.Files...)
	sort.Strings(files)
	areas := append([]string(nil), r.FocusAreas...)
	sort.Strings(areas)

	h := sha256.New()
	h.Write([]byte(normalizeText(r.Topic)))
	h.Write([]byte{0})
	for _, f := range files {
		h.Write([]byte(f))
		h.Write([]byte{1})
	}
	h.Write([]byte{0})
	for _, a := range areas {
		h.Write([]byte(normalizeText(a)))
		h.Write([]byte{1})
	}

	return hex.EncodeToString(h.Sum(nil))[:16]
}

// normalizeText lowercases and collapses runs of whitespace to single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Position is the structured content of a perspective.
type Position struct {
	Stance Stance `json:"stance"`
	// Concerns are specific issues the provider raised.
	Concerns []string `json:"concerns,omitempty"`
	// RiskFlags are categories of risk the provider flagged.
	RiskFlags []string `json:"risk_flags,omitempty"`
	// Confidence is the provider's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// Perspective is one provider's completed assessment. Immutable once
// recorded.
type Perspective struct {
	Provider    string        `json:"provider"`
	Position    Position      `json:"position"`
	Raw         string        `json:"raw,omitempty"`
	Latency     time.Duration `json:"latency_ns"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Band labels a consensus score range.
type Band string

const (
	BandStrongAgreement    Band = "Strong Agreement"    // 90-100
	BandGoodAgreement      Band = "Good Agreement"      // 75-89
	BandModerateAgreement  Band = "Moderate Agreement"  // 60-74
	BandMixed              Band = "Mixed"               // 40-59
	BandStrongDisagreement Band = "Strong Disagreement" // 0-39
)

// ConsensusResult is the merged judgment over a session's perspectives.
type ConsensusResult struct {
	Score          int      `json:"score"`
	Band           Band     `json:"band"`
	Agreements     []string `json:"agreements,omitempty"`
	Disagreements  []string `json:"disagreements,omitempty"`
	Recommendation string   `json:"recommendation"`
	// Partial is set when fewer perspectives arrived than expected.
	Partial bool `json:"partial,omitempty"`
	// Unverified is set when only a single perspective contributed.
	Unverified bool `json:"unverified,omitempty"`
}

// Override records a human decision that supersedes consensus.
type Override struct {
	Actor         string    `json:"actor"`
	Justification string    `json:"justification"`
	At            time.Time `json:"at"`
}

// Advisory carries the complexity and risk signals attached to a decision
// pack. Advisory values never block a debate.
type Advisory struct {
	ComplexityScore int      `json:"complexity_score"`
	RiskScore       int      `json:"risk_score,omitempty"`
	RiskPatterns    []string `json:"risk_patterns,omitempty"`
}
