// Package complexity scores how much scrutiny a proposed change deserves.
// The score is a deterministic function of the request text and file set;
// requests under the threshold don't need a debate. The engine also
// predicts risk by scanning debate history for similar past requests that
// ended in low consensus. Both signals are advisory.
package complexity

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/history"
)

// DefaultThreshold is the score at or above which a debate is recommended.
const DefaultThreshold = 40

// DefaultSimilarityFloor is the minimum Jaccard similarity for a history
// record to count as a similar past debate.
const DefaultSimilarityFloor = 0.3

// riskKeywords are topic markers that raise the complexity score.
var riskKeywords = []string{
	"auth", "security", "encrypt", "migration", "schema", "database",
	"concurren", "race", "lock", "delete", "drop", "payment", "billing",
	"cach", "architecture", "refactor", "protocol", "transaction",
}

// codeExtensions mark files whose changes weigh more than documentation.
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".cc": true, ".cpp": true, ".h": true, ".rs": true,
	".rb": true, ".sql": true, ".proto": true, ".tf": true,
}

// Result explains a complexity score.
type Result struct {
	Score     int      `json:"score"`
	Threshold int      `json:"threshold"`
	Required  bool     `json:"required"`
	Reasons   []string `json:"reasons,omitempty"`
}

// RiskAssessment is the advisory output of the history scan.
type RiskAssessment struct {
	// Score is predicted risk 0-100; higher means similar past debates
	// ended in low consensus.
	Score int `json:"score"`
	// Patterns are the topics of similar past debates, most recent first.
	Patterns []string `json:"patterns,omitempty"`
}

// Engine computes complexity scores and risk predictions. Safe for
// concurrent use.
type Engine struct {
	threshold       int
	similarityFloor float64
}

// New creates an Engine. Non-positive arguments fall back to defaults.
func New(threshold int, similarityFloor float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if similarityFloor <= 0 {
		similarityFloor = DefaultSimilarityFloor
	}
	return &Engine{threshold: threshold, similarityFloor: similarityFloor}
}

// Threshold returns the debate-recommended threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Score computes the complexity score for a request. Same request, same
// score, always.
func (e *Engine) Score(req debate.Request) int {
	return e.Assess(req).Score
}

// Assess computes the complexity score with the reasons behind it.
func (e *Engine) Assess(req debate.Request) Result {
	score := 0
	var reasons []string

	topic := strings.ToLower(req.Topic)
	words := len(strings.Fields(topic))
	switch {
	case words >= 100:
		score += 25
		reasons = append(reasons, "long description")
	case words >= 40:
		score += 15
		reasons = append(reasons, "detailed description")
	case words >= 10:
		score += 10
	default:
		score += 5
	}

	keywordPoints := 0
	for _, kw := range riskKeywords {
		if strings.Contains(topic, kw) {
			keywordPoints += 15
			reasons = append(reasons, fmt.Sprintf("risk keyword %q", kw))
		}
	}
	if keywordPoints > 30 {
		keywordPoints = 30
	}
	score += keywordPoints

	filePoints := len(req.Files) * 8
	if filePoints > 24 {
		filePoints = 24
	}
	if filePoints > 0 {
		reasons = append(reasons, fmt.Sprintf("%d file(s) in scope", len(req.Files)))
	}
	score += filePoints

	codePoints := 0
	for _, f := range req.Files {
		if codeExtensions[strings.ToLower(filepath.Ext(f))] {
			codePoints += 5
		}
	}
	if codePoints > 15 {
		codePoints = 15
	}
	if codePoints > 0 {
		reasons = append(reasons, "code files in scope")
	}
	score += codePoints

	if score > 100 {
		score = 100
	}

	return Result{
		Score:     score,
		Threshold: e.threshold,
		Required:  score >= e.threshold,
		Reasons:   reasons,
	}
}

// PredictRisk scans history for past debates similar to the request and
// derives a risk score from their outcomes: low past consensus on similar
// topics means elevated risk now. Purely advisory.
func (e *Engine) PredictRisk(req debate.Request, records []history.Record) RiskAssessment {
	reqSet := signatureSet(req.Topic, req.Files)
	if len(reqSet) == 0 {
		return RiskAssessment{}
	}

	var total float64
	var matched []history.Record
	for _, rec := range records {
		sim := jaccard(reqSet, signatureSet(rec.Topic, rec.Files))
		if sim < e.similarityFloor {
			continue
		}
		// A similar debate that scored 30 contributes more risk than one
		// that scored 90, scaled by how similar it actually is.
		total += float64(100-rec.Score) * sim
		matched = append(matched, rec)
	}
	if len(matched) == 0 {
		return RiskAssessment{}
	}

	score := int(total / float64(len(matched)))
	if score > 100 {
		score = 100
	}

	// Most recent matches first, capped for readability.
	patterns := make([]string, 0, len(matched))
	for i := len(matched) - 1; i >= 0 && len(patterns) < 3; i-- {
		patterns = append(patterns, matched[i].Topic)
	}

	return RiskAssessment{Score: score, Patterns: patterns}
}

// signatureSet tokenizes a topic plus file basenames into a comparison set.
func signatureSet(topic string, files []string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			set[w] = true
		}
	}
	for _, f := range files {
		set[strings.ToLower(filepath.Base(f))] = true
	}
	return set
}

// jaccard computes Jaccard similarity of two sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Keywords returns the risk keyword list, sorted, for documentation and
// the check command's verbose output.
func Keywords() []string {
	out := append([]string(nil), riskKeywords...)
	sort.Strings(out)
	return out
}
