package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/souchan25/virtualHealthAssistant/internal/ui/theme"
)

// ConfidenceBar displays a confidence value in [0, 1] as a horizontal bar.
type ConfidenceBar struct {
	Label   string
	Percent float64
	Width   int
}

// NewConfidenceBar creates a new confidence bar.
func NewConfidenceBar(label string, percent float64, width int) ConfidenceBar {
	return ConfidenceBar{
		Label:   label,
		Percent: percent,
		Width:   width,
	}
}

// View renders the bar followed by the percentage.
func (p ConfidenceBar) View() string {
	var result string

	if p.Label != "" {
		result += theme.Label.Render(p.Label)
	}

	labelWidth := lipgloss.Width(result)
	const percentWidth = 7 // "  100%"

	barWidth := p.Width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * p.Percent)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	empty := barWidth - filled

	result += theme.BarFilled.Render(strings.Repeat(" ", filled))
	result += theme.BarEmpty.Render(strings.Repeat(" ", empty))
	result += theme.Hint.Render(fmt.Sprintf("  %d%%", int(p.Percent*100+0.5)))

	return result
}
