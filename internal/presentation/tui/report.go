package tui

import (
	"fmt"
	"strings"
)

// Fact is one line of a report.
type Fact struct {
	Name  string
	Value any
}

// Report is the markdown summary of one analysis.
type Report struct {
	Title   string
	OK      bool
	Verdict string
	Facts   []Fact
	// Diagram, when set, is appended as a mermaid code block.
	Diagram string
}

// Add appends a fact and returns the report for chaining.
func (r *Report) Add(name string, value any) *Report {
	r.Facts = append(r.Facts, Fact{Name: name, Value: value})
	return r
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.Title)
	mark := "✅"
	if !r.OK {
		mark = "❌"
	}
	fmt.Fprintf(&sb, "%s **%s**\n\n", mark, r.Verdict)
	if len(r.Facts) > 0 {
		sb.WriteString("| | |\n|---|---|\n")
		for _, f := range r.Facts {
			fmt.Fprintf(&sb, "| %s | %s |\n", f.Name, formatValue(f.Value))
		}
		sb.WriteString("\n")
	}
	if r.Diagram != "" {
		fmt.Fprintf(&sb, "```mermaid\n%s```\n", r.Diagram)
	}
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "ε"
		}
		return "`" + strings.Join(x, " ") + "`"
	case string:
		if x == "" {
			return "-"
		}
		return strings.ReplaceAll(x, "|", "\\|")
	}
	return strings.ReplaceAll(fmt.Sprint(v), "|", "\\|")
}
