package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Aman-CERP/docindex/internal/catalog"
)

// TableRenderer prints catalog listings and index status.
type TableRenderer struct {
	out    io.Writer
	styles Styles
}

// NewTableRenderer creates a table renderer.
func NewTableRenderer(out io.Writer, noColor bool) *TableRenderer {
	return &TableRenderer{out: out, styles: GetStyles(noColor)}
}

// RenderList prints one row per index.
func (r *TableRenderer) RenderList(list []catalog.Descriptor) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(r.out, "No indexes found.")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		name := d.Name
		if d.IsLegacy {
			name += " (legacy)"
		}
		rows = append(rows, []string{
			name,
			string(d.Variant),
			fmt.Sprintf("%d", d.DocumentCount),
			fmt.Sprintf("%d", d.VectorCount),
			d.EmbeddingModel,
			fmt.Sprintf("%.2f MB", d.SizeMB),
			formatTime(d.LastModified),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.styles.Dim).
		Headers("NAME", "TYPE", "DOCS", "VECTORS", "MODEL", "SIZE", "MODIFIED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	_, _ = fmt.Fprintln(r.out, t.Render())
}

// RenderStatus prints the health of one index.
func (r *TableRenderer) RenderStatus(st catalog.Status) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+st.Name))
	if !st.Exists {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Error.Render("✗ not found"))
		return
	}

	health := r.styles.Success.Render("✓ valid")
	if !st.Valid {
		health = r.styles.Error.Render("✗ invalid")
		if st.Error != "" {
			health += " " + r.styles.Dim.Render("("+st.Error+")")
		}
	}
	_, _ = fmt.Fprintf(r.out, "  Health:     %s\n", health)
	_, _ = fmt.Fprintf(r.out, "  Type:       %s\n", st.Variant)
	_, _ = fmt.Fprintf(r.out, "  Vectors:    %d\n", st.VectorCount)
	_, _ = fmt.Fprintf(r.out, "  Records:    %d\n", st.MetadataCount)
	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", st.DocumentCount)
	_, _ = fmt.Fprintf(r.out, "  Dimensions: %d\n", st.Dimensions)
	_, _ = fmt.Fprintf(r.out, "  Model:      %s\n", st.EmbeddingModel)
	_, _ = fmt.Fprintf(r.out, "  Size:       %.2f MB\n", st.SizeMB)
	if !st.LastModified.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Modified:   %s\n", formatTime(st.LastModified))
	}
}

// RenderSummary prints catalog-wide totals.
func (r *TableRenderer) RenderSummary(s catalog.Summary) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Storage Summary"))
	_, _ = fmt.Fprintf(r.out, "  Indexes:   %d\n", s.TotalIndexes)
	_, _ = fmt.Fprintf(r.out, "  Documents: %d\n", s.TotalDocuments)
	_, _ = fmt.Fprintf(r.out, "  Vectors:   %d\n", s.TotalVectors)
	_, _ = fmt.Fprintf(r.out, "  Size:      %.2f MB\n", s.TotalSizeMB)
}

// formatTime renders t relative to now.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
