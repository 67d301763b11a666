package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// autoLevel is where confidence rendering switches to the high style.
const autoLevel = 0.85

// FormatConfidence renders a confidence as a colored percentage.
func FormatConfidence(confidence float64) string {
	text := fmt.Sprintf("%.0f%%", confidence*100)
	if confidence >= autoLevel {
		return ConfidenceHighStyle.Render(text)
	}
	return ConfidenceLowStyle.Render(text)
}

// RenderPrediction renders one prediction for a payee.
func RenderPrediction(payee string, p model.Prediction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Payee:  %s\n", BoldStyle.Render(payee))

	switch p.Outcome() {
	case model.OutcomeDecided:
		category, _ := p.Category()
		fmt.Fprintf(&b, "Tag:    %s\n", SuccessStyle.Render(category))
		fmt.Fprintf(&b, "Score:  %s\n", FormatConfidence(p.Confidence()))
	case model.OutcomeUndecided:
		b.WriteString(WarningStyle.Render("Undecided, suggestions:") + "\n")
		for i, s := range p.Suggestions() {
			fmt.Fprintf(&b, "  %d. %-16s %s %s\n", i+1, s.Category,
				FormatConfidence(s.Confidence), SubtleStyle.Render(string(s.Source)))
		}
	default:
		b.WriteString(SubtleStyle.Render("No tag could be predicted") + "\n")
	}

	fmt.Fprintf(&b, "Source: %s", SubtleStyle.Render(string(p.Source())))

	return RenderBox(TagIcon+" Prediction", b.String())
}

// RenderTrace renders how the engine reached its answer.
func RenderTrace(trace engine.Trace) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Normalized: %q\n", trace.Normalized)

	b.WriteString(BoldStyle.Render("Memory") + "\n")
	switch {
	case trace.MemoryErr != nil:
		fmt.Fprintf(&b, "  %s\n", ErrorStyle.Render("unavailable: "+trace.MemoryErr.Error()))
	case trace.Memory == nil:
		b.WriteString("  no match\n")
	default:
		m := trace.Memory
		fmt.Fprintf(&b, "  %s match on %q -> %s (count %d)\n",
			m.Type, m.Record.PayeeNormalized, m.Record.Tag, m.Record.Count)
		if m.Type == engine.MatchFuzzy {
			fmt.Fprintf(&b, "  compared %q score %.3f threshold %.2f\n", m.Compared, m.Score, m.Threshold)
			fmt.Fprintf(&b, "  char %.2f jw %.2f substr %.2f freq %.2f\n",
				m.Signals.Character, m.Signals.JaroWinkler, m.Signals.Substring, m.Signals.Frequency)
		}
	}

	b.WriteString(BoldStyle.Render("Ensemble") + "\n")
	if trace.Ensemble == nil {
		b.WriteString("  not consulted\n")
	} else {
		for _, v := range trace.Ensemble.Votes {
			switch {
			case v.Error != "":
				fmt.Fprintf(&b, "  %-12s %s\n", v.Model, ErrorStyle.Render(v.Error))
			case v.Result == nil:
				fmt.Fprintf(&b, "  %-12s %s\n", v.Model, SubtleStyle.Render("abstained"))
			default:
				fmt.Fprintf(&b, "  %-12s %-16s %.3f\n", v.Model, v.Result.Tag, v.Result.Confidence)
			}
		}
		if trace.Ensemble.Tag != "" {
			fmt.Fprintf(&b, "  combined     %-16s %.3f\n", trace.Ensemble.Tag, trace.Ensemble.Confidence)
		}
	}

	b.WriteString(BoldStyle.Render("Keyword") + "\n")
	if trace.Keyword == nil {
		b.WriteString("  no match")
	} else {
		fmt.Fprintf(&b, "  %q -> %s %.3f", trace.Keyword.Keyword, trace.Keyword.Tag, trace.Keyword.Confidence)
	}

	return RenderBox("Trace", b.String())
}

// RenderMemory renders a user's tag memory as a table.
func RenderMemory(records []model.UserTagMemory) string {
	if len(records) == 0 {
		return SubtleStyle.Render("No remembered payees")
	}

	rows := make([]string, 0, len(records)+2)
	rows = append(rows, TitleStyle.Render(MemoryIcon+" Remembered payees"))
	rows = append(rows, TableHeaderStyle.Render(fmt.Sprintf("%-32s %-16s %6s", "Payee", "Tag", "Count")))
	for _, r := range records {
		rows = append(rows, TableCellStyle.Render(fmt.Sprintf("%-32s %-16s %6d", r.PayeeNormalized, r.Tag, r.Count)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderBatchSummary renders the statistics of a batch run.
func RenderBatchSummary(stats service.BatchStats) string {
	var b strings.Builder

	pct := func(n int) float64 {
		if stats.Total == 0 {
			return 0
		}
		return float64(n) / float64(stats.Total) * 100
	}

	fmt.Fprintf(&b, "Total payees: %d\n", stats.Total)
	fmt.Fprintf(&b, "  • Decided:   %d (%.1f%%)\n", stats.Decided, pct(stats.Decided))
	fmt.Fprintf(&b, "  • Undecided: %d (%.1f%%)\n", stats.Undecided, pct(stats.Undecided))
	fmt.Fprintf(&b, "  • Empty:     %d (%.1f%%)\n", stats.Empty, pct(stats.Empty))
	if stats.Confirmed > 0 {
		fmt.Fprintf(&b, "  • Remembered: %d\n", stats.Confirmed)
	}

	if len(stats.BySource) > 0 {
		b.WriteString("\nBy source:\n")
		for _, src := range model.Sources {
			if n := stats.BySource[src]; n > 0 {
				fmt.Fprintf(&b, "  %-20s %d\n", src, n)
			}
		}
	}

	if len(stats.ByCategory) > 0 {
		names := make([]string, 0, len(stats.ByCategory))
		for name := range stats.ByCategory {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.ByCategory[names[i]] != stats.ByCategory[names[j]] {
				return stats.ByCategory[names[i]] > stats.ByCategory[names[j]]
			}
			return names[i] < names[j]
		})
		b.WriteString("\nBy tag:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %-20s %d\n", name, stats.ByCategory[name])
		}
	}

	fmt.Fprintf(&b, "\nTime taken: %s", stats.Duration.Round(10*time.Millisecond))

	return RenderBox(ChartIcon+" Batch Complete", b.String())
}
