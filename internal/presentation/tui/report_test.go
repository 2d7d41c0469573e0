package tui_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Markdown(t *testing.T) {
	r := &tui.Report{Title: "Opacity", Verdict: "not opaque"}
	r.Add("witness", []string{"obs_a"}).Add("estimate", "{s1}").Add("empty", []string{}).Add("pipe", "a|b")

	md := r.Markdown()
	assert.True(t, strings.HasPrefix(md, "# Opacity\n\n❌ **not opaque**"))
	assert.Contains(t, md, "| witness | `obs_a` |")
	assert.Contains(t, md, "| empty | ε |")
	assert.Contains(t, md, `| pipe | a\|b |`)
	assert.NotContains(t, md, "```mermaid")

	r.OK, r.Diagram = true, "graph LR\n"
	assert.Contains(t, r.Markdown(), "✅")
	assert.Contains(t, r.Markdown(), "```mermaid\ngraph LR\n```")
}

func TestNewRenderer_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f))
	assert.Equal(t, 42, tui.Width(f, 42))

	render := tui.NewRenderer(f)
	out, err := render("# title")
	require.NoError(t, err)
	assert.Equal(t, "# title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}
