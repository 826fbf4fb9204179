package provider

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/debate"
)

// responseFormat is the block every provider is asked to end with. Parsing
// falls back to heuristics when a provider ignores it.
const responseFormat = `End your response with this exact block:

STANCE: approve | approve_with_changes | reject
CONFIDENCE: <0-100>
CONCERNS:
- <one concern per line>
RISKS:
- <one risk category per line>`

// BuildPrompt renders the instruction text for a provider in a role.
func BuildPrompt(req debate.Request, role Role) string {
	var b strings.Builder

	switch role {
	case RoleCounter:
		b.WriteString("You are the counter-perspective in a structured design debate. ")
		b.WriteString("Stress-test the following proposal: hunt for failure modes, hidden costs, ")
		b.WriteString("and risks an optimistic reviewer would miss. Do not oppose for its own sake; ")
		b.WriteString("if the proposal is sound, say so.\n\n")
	default:
		b.WriteString("You are the primary reviewer in a structured design debate. ")
		b.WriteString("Assess the following proposal on its merits: correctness, maintainability, ")
		b.WriteString("and operational impact.\n\n")
	}

	fmt.Fprintf(&b, "Proposal: %s\n", req.Topic)
	if len(req.Files) > 0 {
		fmt.Fprintf(&b, "Files in scope: %s\n", strings.Join(req.Files, ", "))
	}
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus your analysis on: %s\n", strings.Join(req.FocusAreas, ", "))
	}

	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}
