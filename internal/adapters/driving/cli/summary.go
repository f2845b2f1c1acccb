package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/services"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#45475A"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
)

// renderSummary formats a catalog breakdown. stats is nil for a single city.
func renderSummary(title string, stats *domain.RunStats, places []*domain.CanonicalPlace) string {
	summary := services.Summarize(places)

	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render(strings.ToUpper(title)) + "\n")

	if stats != nil {
		fmt.Fprintf(&b, "Duration: %.1f minutes\n", stats.DurationMinutes)
	}
	fmt.Fprintf(&b, "Total places: %s\n", countStyle.Render(fmt.Sprint(summary.TotalPlaces)))

	if summary.TotalPlaces == 0 && stats == nil {
		b.WriteString(mutedStyle.Render("No places found.") + "\n")
		return b.String()
	}

	if stats != nil {
		cities := append([]domain.CityStat(nil), stats.Cities...)
		sort.SliceStable(cities, func(i, j int) bool {
			return cities[i].Places > cities[j].Places
		})
		section(&b, "By city")
		for _, c := range cities {
			fmt.Fprintf(&b, "  %s: %d places %s\n", c.City, c.Places, mutedStyle.Render(fmt.Sprintf("(%d posts)", c.Posts)))
		}
	} else {
		writeCounts(&b, "By city", summary.ByCity)
	}

	writeCounts(&b, "By category", summary.ByCategory)
	writeCounts(&b, "Top tags", summary.TopTags)

	if len(summary.MultiMention) > 0 {
		section(&b, "Most mentioned")
		for _, p := range summary.MultiMention {
			fmt.Fprintf(&b, "  %s (%s) - %dx mentions\n", p.Name, p.City, p.MentionCount)
		}
	}

	if len(summary.Samples) > 0 {
		section(&b, "Samples")
		for _, p := range summary.Samples {
			fmt.Fprintf(&b, "  %s [%s] %s\n", p.Name, p.Category, mutedStyle.Render(strings.Join(p.Tags, ", ")))
			if p.Vibe != "" {
				fmt.Fprintf(&b, "    %s\n", p.Vibe)
			}
		}
	}

	return b.String()
}

func section(b *strings.Builder, name string) {
	b.WriteString("\n" + headingStyle.Render(strings.ToUpper(name)) + "\n")
}

func writeCounts(b *strings.Builder, name string, entries []services.CountEntry) {
	if len(entries) == 0 {
		return
	}
	section(b, name)
	for _, e := range entries {
		fmt.Fprintf(b, "  %s: %d\n", e.Key, e.Count)
	}
}
