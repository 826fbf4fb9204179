// Package consensus merges provider perspectives into a single consensus
// judgment. Scoring compares every pair of structured positions on stance,
// concern overlap, risk-flag overlap, and confidence, then averages the
// weighted pair scores. Scoring is deterministic for a given set of
// perspectives regardless of the order they completed in.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
)

// Weights are the relative contributions of each comparison dimension.
// They must be non-negative and sum to 1.0.
type Weights struct {
	Stance     float64 `json:"stance" mapstructure:"stance"`
	Concerns   float64 `json:"concerns" mapstructure:"concerns"`
	RiskFlags  float64 `json:"risk_flags" mapstructure:"risk_flags"`
	Confidence float64 `json:"confidence" mapstructure:"confidence"`
}

// DefaultWeights returns the standard weighting: stance dominates, concern
// overlap second, risk flags third, confidence last.
func DefaultWeights() Weights {
	return Weights{
		Stance:     0.40,
		Concerns:   0.30,
		RiskFlags:  0.20,
		Confidence: 0.10,
	}
}

// Validate checks the weights are non-negative and sum to 1.0 within
// floating-point tolerance.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"stance":     w.Stance,
		"concerns":   w.Concerns,
		"risk_flags": w.RiskFlags,
		"confidence": w.Confidence,
	} {
		if v < 0 {
			return perrors.NewValidationError("consensus weight cannot be negative").
				WithField(name).WithValue(v)
		}
	}

	sum := w.Stance + w.Concerns + w.RiskFlags + w.Confidence
	if math.Abs(sum-1.0) > 0.001 {
		return perrors.NewValidationError(fmt.Sprintf("consensus weights sum to %.3f, want 1.0", sum))
	}
	return nil
}

// Scorer computes consensus results. Safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Score merges perspectives into a consensus result. A single perspective
// yields its own confidence scaled to 0-100, flagged unverified. Zero
// perspectives is an error.
func (s *Scorer) Score(perspectives []debate.Perspective) (*debate.ConsensusResult, error) {
	switch len(perspectives) {
	case 0:
		return nil, perrors.ErrNoPerspectives
	case 1:
		return s.scoreSingle(perspectives[0]), nil
	}

	var total float64
	pairs := 0
	for i := 0; i < len(perspectives); i++ {
		for j := i + 1; j < len(perspectives); j++ {
			total += s.pairScore(perspectives[i].Position, perspectives[j].Position)
			pairs++
		}
	}

	score := int(math.Round(total / float64(pairs) * 100))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	band := BandFor(score)
	agreements, disagreements := concernSplit(perspectives)

	return &debate.ConsensusResult{
		Score:          score,
		Band:           band,
		Agreements:     agreements,
		Disagreements:  disagreements,
		Recommendation: recommendationFor(band),
	}, nil
}

// scoreSingle handles the one-perspective degenerate case: there is nothing
// to compare against, so the provider's own confidence stands in for
// consensus and the result is flagged unverified.
func (s *Scorer) scoreSingle(p debate.Perspective) *debate.ConsensusResult {
	score := int(math.Round(p.Position.Confidence * 100))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	band := BandFor(score)
	agreements := dedupeSorted(p.Position.Concerns)

	return &debate.ConsensusResult{
		Score:          score,
		Band:           band,
		Agreements:     agreements,
		Recommendation: recommendationFor(band),
		Unverified:     true,
	}
}

// pairScore compares two positions, returning a value in [0,1].
func (s *Scorer) pairScore(a, b debate.Position) float64 {
	confAgreement := 1 - math.Abs(a.Confidence-b.Confidence)
	if confAgreement < 0 {
		confAgreement = 0
	}

	return s.weights.Stance*stanceAlignment(a.Stance, b.Stance) +
		s.weights.Concerns*jaccard(a.Concerns, b.Concerns) +
		s.weights.RiskFlags*jaccard(a.RiskFlags, b.RiskFlags) +
		s.weights.Confidence*confAgreement
}

// stanceAlignment scores two stances: identical 1.0, adjacent 0.5 (the
// conditional stance sits between approve and reject), opposite 0.0.
func stanceAlignment(a, b debate.Stance) float64 {
	if a == b {
		return 1.0
	}
	if a == debate.StanceApproveWithChanges || b == debate.StanceApproveWithChanges {
		return 0.5
	}
	return 0.0
}

// jaccard computes the Jaccard similarity of two string sets after
// normalization. Two empty sets are in full agreement.
func jaccard(a, b []string) float64 {
	setA := normalizeSet(a)
	setB := normalizeSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// concernSplit partitions concerns into those every perspective shares
// (agreements) and those only some raised (disagreements). Both lists are
// sorted by normalized text so the output is independent of completion
// order.
func concernSplit(perspectives []debate.Perspective) (agreements, disagreements []string) {
	// normalized concern -> count of perspectives raising it, plus the
	// lexicographically smallest original spelling for display, so output
	// is identical no matter which provider finished first
	counts := make(map[string]int)
	display := make(map[string]string)

	for _, p := range perspectives {
		seen := make(map[string]bool)
		for _, c := range p.Position.Concerns {
			norm := normalizeConcern(c)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			counts[norm]++
			trimmed := strings.TrimSpace(c)
			if cur, ok := display[norm]; !ok || trimmed < cur {
				display[norm] = trimmed
			}
		}
	}

	var aggKeys, disKeys []string
	for norm, n := range counts {
		if n == len(perspectives) {
			aggKeys = append(aggKeys, norm)
		} else {
			disKeys = append(disKeys, norm)
		}
	}
	sort.Strings(aggKeys)
	sort.Strings(disKeys)

	for _, k := range aggKeys {
		agreements = append(agreements, display[k])
	}
	for _, k := range disKeys {
		disagreements = append(disagreements, display[k])
	}
	return agreements, disagreements
}

// normalizeSet lowers and trims entries into a set, dropping empties.
func normalizeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		norm := normalizeConcern(it)
		if norm != "" {
			set[norm] = true
		}
	}
	return set
}

func normalizeConcern(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// dedupeSorted returns the distinct trimmed entries sorted by normalized
// text.
func dedupeSorted(items []string) []string {
	seen := make(map[string]string)
	var keys []string
	for _, it := range items {
		norm := normalizeConcern(it)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; !ok {
			seen[norm] = strings.TrimSpace(it)
			keys = append(keys, norm)
		}
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// BandFor maps a score to its agreement band.
func BandFor(score int) debate.Band {
	switch {
	case score >= 90:
		return debate.BandStrongAgreement
	case score >= 75:
		return debate.BandGoodAgreement
	case score >= 60:
		return debate.BandModerateAgreement
	case score >= 40:
		return debate.BandMixed
	default:
		return debate.BandStrongDisagreement
	}
}

// recommendationFor returns the action guidance for a band.
func recommendationFor(band debate.Band) string {
	switch band {
	case debate.BandStrongAgreement:
		return "Proceed with confidence: providers are strongly aligned."
	case debate.BandGoodAgreement:
		return "Proceed with minor review of the shared concerns."
	case debate.BandModerateAgreement:
		return "Proceed with caution: resolve the open concerns first."
	case debate.BandMixed:
		return "Discuss the disagreements before proceeding."
	default:
		return "Reconsider the approach: providers fundamentally disagree."
	}
}
