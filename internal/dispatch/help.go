package dispatch

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/plugin"
	"github.com/roach88/pluma/internal/tree"
)

// Styler colours dispatcher output. *style.Theme implements it.
type Styler interface {
	handler.Styler
	Command(s string) string
	Emphasis(s string) string
	Problem(s string) string
	Error(s string) string
	Success(s string) string
}

// Help renders the help page of a leaf:
//
//	Usage: pluma diversity alpha [OPTIONS]
//
//	  Alpha diversity
//
//	  Computes a vector of alpha diversity values.
//
//	Inputs:
//	  --i-table ARTIFACT FeatureTable[Frequency]
//	  ...
func Help(leaf *tree.Node, l handler.Layout, st Styler) string {
	l.Style = st
	width := l.Width
	if width <= 0 {
		width = handler.DefaultLayout.Width
	}

	var b strings.Builder
	b.WriteString("Usage: ")
	b.WriteString(st.Command(leaf.Path()))
	b.WriteString(" [OPTIONS]\n")

	summary := leaf.Summary
	if leaf.Action != nil && leaf.Action.Deprecated {
		summary += " [deprecated]"
	}
	for _, para := range []string{summary, leaf.Help} {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString("\n")
		for _, line := range strings.Split(ansi.Wordwrap(para, width-2, ""), "\n") {
			b.WriteString(strings.TrimRight("  "+line, " "))
			b.WriteString("\n")
		}
	}

	sections := []struct {
		title string
		ns    plugin.Namespace
	}{
		{"Inputs", plugin.NamespaceInput},
		{"Parameters", plugin.NamespaceParameter},
		{"Metadata", plugin.NamespaceMetadata},
		{"Outputs", plugin.NamespaceOutput},
	}
	for _, sec := range sections {
		var entries []string
		for _, h := range leaf.Handlers {
			if h.Option().Namespace == sec.ns {
				entries = append(entries, h.RenderHelp(l))
			}
		}
		writeSection(&b, st, sec.title, entries)
	}

	misc := make([]string, len(metaOptions))
	for i, m := range metaOptions {
		misc[i] = handler.RenderOption(l, m.opt, m.description, "")
	}
	writeSection(&b, st, "Miscellaneous", misc)

	return b.String()
}

func writeSection(b *strings.Builder, st Styler, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(st.Emphasis(title + ":"))
	b.WriteString("\n")
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
}

// Citations returns the citation text of a plugin.
func Citations(p *plugin.Plugin) string {
	if p == nil || strings.TrimSpace(p.Citation) == "" {
		return "No citations found."
	}
	return strings.TrimRight(p.Citation, "\n")
}
