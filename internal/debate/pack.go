package debate

import (
	"fmt"
	"strings"
	"time"
)

// Pack is the decision pack: the complete, self-contained artifact of a
// finished debate. It is a pure function of the session record, so building
// it twice from the same session yields the same pack.
type Pack struct {
	SessionID    string           `json:"session_id"`
	Request      Request          `json:"request"`
	Perspectives []Perspective    `json:"perspectives,omitempty"`
	Consensus    *ConsensusResult `json:"consensus,omitempty"`
	Advisory     *Advisory        `json:"advisory,omitempty"`
	Override     *Override        `json:"override,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// BuildPack assembles a decision pack from a session record.
func BuildPack(rec Record) *Pack {
	pack := &Pack{
		SessionID:    rec.ID,
		Request:      rec.Request,
		Perspectives: append([]Perspective(nil), rec.Perspectives...),
		GeneratedAt:  time.Now().UTC(),
	}
	if rec.Consensus != nil {
		c := *rec.Consensus
		pack.Consensus = &c
	}
	if rec.Advisory != nil {
		a := *rec.Advisory
		pack.Advisory = &a
	}
	if rec.Override != nil {
		o := *rec.Override
		pack.Override = &o
	}
	return pack
}

// CanProceed reports whether the pack clears the given target score. An
// override always clears; a nil consensus without an override never does.
func (p *Pack) CanProceed(target int) bool {
	if p.Override != nil {
		return true
	}
	if p.Consensus == nil {
		return false
	}
	return p.Consensus.Score >= target
}

// Markdown renders the pack as a human-readable document.
func (p *Pack) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Decision Pack\n\n")
	fmt.Fprintf(&b, "**Session:** %s\n", p.SessionID)
	fmt.Fprintf(&b, "**Topic:** %s\n", p.Request.Topic)
	if len(p.Request.Files) > 0 {
		fmt.Fprintf(&b, "**Files:** %s\n", strings.Join(p.Request.Files, ", "))
	}
	if len(p.Request.FocusAreas) > 0 {
		fmt.Fprintf(&b, "**Focus areas:** %s\n", strings.Join(p.Request.FocusAreas, ", "))
	}
	b.WriteString("\n")

	if p.Consensus != nil {
		fmt.Fprintf(&b, "## Consensus: %d/100 (%s)\n\n", p.Consensus.Score, p.Consensus.Band)
		if p.Consensus.Partial {
			b.WriteString("> Partial: not all providers reported.\n\n")
		}
		if p.Consensus.Unverified {
			b.WriteString("> Unverified: single perspective only.\n\n")
		}
		fmt.Fprintf(&b, "%s\n\n", p.Consensus.Recommendation)

		if len(p.Consensus.Agreements) > 0 {
			b.WriteString("### Shared concerns\n\n")
			for _, a := range p.Consensus.Agreements {
				fmt.Fprintf(&b, "- %s\n", a)
			}
			b.WriteString("\n")
		}
		if len(p.Consensus.Disagreements) > 0 {
			b.WriteString("### Points of disagreement\n\n")
			for _, d := range p.Consensus.Disagreements {
				fmt.Fprintf(&b, "- %s\n", d)
			}
			b.WriteString("\n")
		}
	}

	if p.Override != nil {
		b.WriteString("## Override\n\n")
		fmt.Fprintf(&b, "Decision overridden by **%s**: %s\n\n",
			p.Override.Actor, p.Override.Justification)
	}

	if p.Advisory != nil {
		b.WriteString("## Advisories\n\n")
		fmt.Fprintf(&b, "- Complexity score: %d\n", p.Advisory.ComplexityScore)
		if p.Advisory.RiskScore > 0 {
			fmt.Fprintf(&b, "- Predicted risk: %d\n", p.Advisory.RiskScore)
		}
		for _, pat := range p.Advisory.RiskPatterns {
			fmt.Fprintf(&b, "- Similar past debate: %s\n", pat)
		}
		b.WriteString("\n")
	}

	if len(p.Perspectives) > 0 {
		b.WriteString("## Perspectives\n\n")
		for _, persp := range p.Perspectives {
			fmt.Fprintf(&b, "### %s (%s, confidence %.2f)\n\n",
				persp.Provider, persp.Position.Stance, persp.Position.Confidence)
			for _, c := range persp.Position.Concerns {
				fmt.Fprintf(&b, "- %s\n", c)
			}
			if len(persp.Position.Concerns) > 0 {
				b.WriteString("\n")
			}
		}
	}

	fmt.Fprintf(&b, "---\nGenerated %s\n", p.GeneratedAt.Format(time.RFC3339))
	return b.String()
}
