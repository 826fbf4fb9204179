// Package render turns debate stream events into terminal output. The
// human renderer prints styled progress lines; the jsonl renderer emits
// one machine-readable JSON line per event. Both attach to the event bus,
// so the orchestrator never knows how a debate is displayed.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/parleyhq/parley/internal/event"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	goodColor    = lipgloss.Color("#10B981") // Green
	warnColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	providerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	goodStyle     = lipgloss.NewStyle().Bold(true).Foreground(goodColor)
	warnStyle     = lipgloss.NewStyle().Bold(true).Foreground(warnColor)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
)

// scoreStyle colors a consensus score by how comfortable it is.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 75:
		return goodStyle
	case score >= 40:
		return warnStyle
	default:
		return errorStyle
	}
}

// progressBar renders a fixed-width bar for a 0-100 percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// Human renders events as styled lines for a person watching the debate.
// Safe for concurrent use.
type Human struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewHuman creates a human renderer writing to w. Verbose adds progress
// and per-provider detail lines.
func NewHuman(w io.Writer, verbose bool) *Human {
	return &Human{w: w, verbose: verbose}
}

// Attach subscribes the renderer to every event on the bus and returns the
// subscription ID.
func (h *Human) Attach(bus *event.Bus) uint64 {
	return bus.SubscribeAll(h.Handle)
}

// Handle renders a single event.
func (h *Human) Handle(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch data := ev.Data.(type) {
	case event.StartData:
		label := "Debate"
		if data.Cached {
			label = "Debate (cached)"
		}
		fmt.Fprintf(h.w, "%s %s\n", headerStyle.Render(label+":"), data.Topic)
		if len(data.Providers) > 0 {
			fmt.Fprintf(h.w, "  %s %s\n",
				mutedStyle.Render("providers:"), strings.Join(data.Providers, " vs "))
		}
	case event.ProgressData:
		if h.verbose {
			fmt.Fprintf(h.w, "  %s %s %s\n",
				providerStyle.Render(data.Provider),
				progressBar(data.Percent, 20),
				mutedStyle.Render(data.Message))
		}
	case event.PerspectiveData:
		fmt.Fprintf(h.w, "  %s %s (confidence %.0f%%, %.1fs)\n",
			providerStyle.Render(data.Provider+":"),
			data.Stance, data.Confidence*100, data.ElapsedSec)
		if h.verbose && data.Summary != "" {
			fmt.Fprintf(h.w, "    %s\n", mutedStyle.Render(data.Summary))
		}
	case event.ConsensusData:
		fmt.Fprintf(h.w, "%s %s %s\n",
			headerStyle.Render("Consensus:"),
			scoreStyle(data.Score).Render(fmt.Sprintf("%d/100", data.Score)),
			mutedStyle.Render("("+data.Band+")"))
		if data.Partial {
			fmt.Fprintf(h.w, "  %s\n", warnStyle.Render("partial: not all providers reported"))
		}
		if data.Unverified {
			fmt.Fprintf(h.w, "  %s\n", warnStyle.Render("unverified: single perspective"))
		}
		if data.Recommendation != "" {
			fmt.Fprintf(h.w, "  %s\n", data.Recommendation)
		}
	case event.CompleteData:
		verdict := goodStyle.Render("proceed")
		if !data.CanProceed {
			verdict = errorStyle.Render("blocked")
		}
		fmt.Fprintf(h.w, "%s %s %s\n",
			headerStyle.Render("Done:"), verdict,
			mutedStyle.Render(fmt.Sprintf("(%.1fs)", data.ElapsedSec)))
	case event.ErrorData:
		prefix := "error"
		if data.Recoverable {
			prefix = "warning"
		}
		who := ""
		if data.Provider != "" {
			who = data.Provider + ": "
		}
		fmt.Fprintf(h.w, "  %s %s%s\n",
			errorStyle.Render(prefix+":"), who, data.Message)
	}
}
