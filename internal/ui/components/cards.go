// Package components renders vha results as terminal cards.
package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/ui/theme"
)

// CardWidth is the content width of every card.
const CardWidth = 60

func row(label, value string) string {
	return theme.Label.Render(label) + theme.Body.Render(value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// PredictionCard renders a prediction response.
func PredictionCard(r diagnosis.Response) string {
	lines := []string{
		theme.Title.Render(r.PredictedDisease),
		"",
		NewConfidenceBar("confidence", r.Confidence, CardWidth).View(),
	}
	if r.LLMValidated {
		lines = append(lines, NewConfidenceBar("ml only", r.MLConfidence, CardWidth).View())
	}

	code := r.Code
	if code == "" {
		code = "-"
	}
	lines = append(lines,
		row("icd-10", code),
		row("communicable", yesNo(r.Communicable)),
		row("acute", yesNo(r.Acute)),
	)

	if len(r.TopPredictions) > 1 {
		lines = append(lines, "", theme.Hint.Render("other candidates"))
		for _, p := range r.TopPredictions[1:] {
			lines = append(lines, row("", fmt.Sprintf("%-28s %5.1f%%", p.Label, p.Confidence*100)))
		}
	}

	if v := r.Validation; v != nil {
		verdict := theme.Good.Render("agrees")
		if !v.Agrees {
			verdict = theme.Warn.Render("disagrees")
		}
		lines = append(lines, "", row("validator", verdict+theme.Hint.Render(" via "+r.Provider)))
		lines = append(lines, wrap(v.Reasoning))
		if v.Alternative != nil {
			lines = append(lines, row("alternative", *v.Alternative))
		}
	}

	if r.Description != "" {
		lines = append(lines, "", wrap(r.Description))
	}
	if len(r.Precautions) > 0 {
		lines = append(lines, "", theme.Hint.Render("precautions"))
		for _, p := range r.Precautions {
			lines = append(lines, "  • "+p)
		}
	}
	if len(r.UnmatchedSymptoms) > 0 {
		lines = append(lines, "", theme.Hint.Render("not recognized: "+strings.Join(r.UnmatchedSymptoms, ", ")))
	}
	if r.Approximate {
		lines = append(lines, theme.Hint.Render("confidence is approximate for this model"))
	}

	return theme.Card.Width(CardWidth + 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// ChatCard renders a routed chat reply.
func ChatCard(d *router.Decision) string {
	badge := theme.Good.Render("dialogue")
	if d.Source == router.SourceFallback {
		badge = theme.Warn.Render("fallback")
		if d.Provider != "" {
			badge += theme.Hint.Render(" via " + d.Provider)
		}
	}
	lines := []string{badge, "", wrap(d.Text)}
	for _, b := range d.Buttons {
		lines = append(lines, theme.Hint.Render("[ "+b.Title+" ]"))
	}
	if d.Reason != "" {
		lines = append(lines, "", theme.Hint.Render(d.Reason))
	}
	return theme.Card.Width(CardWidth + 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// AttemptLine summarizes a chain attempt log, one provider per line.
func AttemptLine(attempts chain.AttemptLog) string {
	var b strings.Builder
	for _, a := range attempts {
		style := theme.Bad
		if a.Outcome == chain.OutcomeSuccess {
			style = theme.Good
		}
		fmt.Fprintf(&b, "%s %s %s\n", theme.Label.Render(a.Provider), style.Render(string(a.Outcome)),
			theme.Hint.Render(fmt.Sprintf("%dms", a.Latency.Milliseconds())))
	}
	return strings.TrimRight(b.String(), "\n")
}

func wrap(s string) string {
	return lipgloss.NewStyle().Width(CardWidth).Render(s)
}
