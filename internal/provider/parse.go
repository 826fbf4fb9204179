package provider

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/debate"
)

var (
	scoreRe    = regexp.MustCompile(`(?i)(?:score|rating|confidence)\s*[:=]\s*(\d{1,3})`)
	fractionRe = regexp.MustCompile(`(\d{1,3})\s*/\s*100`)
)

// ParsePerspective extracts a structured perspective from raw provider
// output. It first looks for the response block the prompt requests; for
// providers that ignore the format it falls back to keyword and score
// heuristics, defaulting to a conditional stance at 0.75 confidence.
func ParsePerspective(identity, raw string, latency time.Duration) debate.Perspective {
	pos := debate.Position{
		Stance:     debate.StanceApproveWithChanges,
		Confidence: 0.75,
	}

	lines := strings.Split(raw, "\n")
	section := ""
	sawStance := false
	sawConfidence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case strings.HasPrefix(upper, "STANCE:"):
			section = ""
			if s, ok := parseStance(trimmed[len("STANCE:"):]); ok {
				pos.Stance = s
				sawStance = true
			}
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			section = ""
			if c, ok := parseConfidence(trimmed[len("CONFIDENCE:"):]); ok {
				pos.Confidence = c
				sawConfidence = true
			}
		case strings.HasPrefix(upper, "CONCERNS:"):
			section = "concerns"
		case strings.HasPrefix(upper, "RISKS:"):
			section = "risks"
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			item := strings.TrimSpace(trimmed[2:])
			if item == "" {
				continue
			}
			switch section {
			case "concerns":
				pos.Concerns = append(pos.Concerns, item)
			case "risks":
				pos.RiskFlags = append(pos.RiskFlags, item)
			}
		case trimmed == "":
			// blank lines don't close a list section
		default:
			if section != "" && !strings.HasPrefix(trimmed, "-") {
				section = ""
			}
		}
	}

	if !sawStance {
		pos.Stance = stanceHeuristic(raw)
	}
	if !sawConfidence {
		if c, ok := confidenceHeuristic(raw); ok {
			pos.Confidence = c
		}
	}

	return debate.Perspective{
		Provider:    identity,
		Position:    pos,
		Raw:         raw,
		Latency:     latency,
		CompletedAt: time.Now().UTC(),
	}
}

// parseStance reads an explicit stance value.
func parseStance(s string) (debate.Stance, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, " ", "_")
	switch {
	case strings.HasPrefix(v, "approve_with_changes"):
		return debate.StanceApproveWithChanges, true
	case strings.HasPrefix(v, "approve"):
		return debate.StanceApprove, true
	case strings.HasPrefix(v, "reject"):
		return debate.StanceReject, true
	}
	return "", false
}

// parseConfidence reads a confidence value given as 0-100 or 0-1.
func parseConfidence(s string) (float64, bool) {
	v := strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	if f > 1 {
		f = f / 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// stanceHeuristic guesses a stance from free text.
func stanceHeuristic(raw string) debate.Stance {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "reject") || strings.Contains(lower, "should not proceed"):
		return debate.StanceReject
	case strings.Contains(lower, "with changes") || strings.Contains(lower, "conditional"):
		return debate.StanceApproveWithChanges
	case strings.Contains(lower, "approve") || strings.Contains(lower, "lgtm") ||
		strings.Contains(lower, "looks good"):
		return debate.StanceApprove
	}
	return debate.StanceApproveWithChanges
}

// confidenceHeuristic pulls a score out of free text, trying explicit
// score/rating labels first and N/100 fractions second.
func confidenceHeuristic(raw string) (float64, bool) {
	if m := scoreRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 {
			return float64(n) / 100, true
		}
	}
	if m := fractionRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 {
			return float64(n) / 100, true
		}
	}
	return 0, false
}
