package handler

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/roach88/pluma/internal/plugin"
)

// Styler colours help text. internal/style provides the themed
// implementation; Plain leaves text untouched.
type Styler interface {
	Option(s string) string
	Type(s string) string
	DefaultArg(s string) string
	Required(s string) string
}

// Plain is a Styler that adds no styling.
type Plain struct{}

func (Plain) Option(s string) string     { return s }
func (Plain) Type(s string) string       { return s }
func (Plain) DefaultArg(s string) string { return s }
func (Plain) Required(s string) string   { return s }

// Layout controls how help lines are rendered.
type Layout struct {
	// Width is the total line width.
	Width int
	// Indent is the column descriptions start at.
	Indent int
	Style  Styler
}

// DefaultLayout is an 80 column plain layout.
var DefaultLayout = Layout{Width: 80, Indent: 24, Style: Plain{}}

func (l Layout) normalized() Layout {
	if l.Width <= 0 {
		l.Width = DefaultLayout.Width
	}
	if l.Indent <= 0 || l.Indent >= l.Width {
		l.Indent = min(DefaultLayout.Indent, l.Width/2)
	}
	if l.Style == nil {
		l.Style = Plain{}
	}
	return l
}

// renderHelp lays out one option:
//
//	  --p-metric TEXT Choices("shannon", "simpson")
//	                        The alpha diversity metric.  [default: "shannon"]
//
// The requirement marker goes on the last description line when it fits,
// otherwise right-aligned on a line of its own.
func renderHelp(l Layout, opt Option, label, description, mark string) string {
	l = l.normalized()
	st := l.Style
	pad := strings.Repeat(" ", l.Indent)

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(st.Option(strings.Join(opt.Names(), " / ")))
	if opt.ValueHint != "" {
		b.WriteString(" ")
		b.WriteString(st.Type(opt.ValueHint))
	}
	if label != "" {
		b.WriteString(" ")
		b.WriteString(st.Type(label))
	}

	var lines []string
	if description != "" {
		wrapped := ansi.Wordwrap(description, l.Width-l.Indent, "")
		lines = strings.Split(wrapped, "\n")
	}

	if mark != "" {
		styledMark := styleMarker(st, mark)
		markWidth := ansi.StringWidth(mark)
		if n := len(lines); n > 0 && l.Indent+ansi.StringWidth(lines[n-1])+2+markWidth <= l.Width {
			lines[n-1] += "  " + styledMark
		} else {
			lines = append(lines, strings.Repeat(" ", max(l.Width-l.Indent-markWidth, 0))+styledMark)
		}
	}

	for _, line := range lines {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(pad+line, " "))
	}
	return b.String()
}

// RenderOption lays out an option that has no handler behind it, such as
// the dispatcher's own --output-dir. mark may be empty.
func RenderOption(l Layout, opt Option, description, mark string) string {
	return renderHelp(l, opt, "", description, mark)
}

func styleMarker(st Styler, mark string) string {
	if value, ok := strings.CutPrefix(mark, "[default: "); ok {
		return "[default: " + st.DefaultArg(strings.TrimSuffix(value, "]")) + "]"
	}
	if mark == "[required]" {
		return st.Required(mark)
	}
	return mark
}

// marker is the requirement annotation of a parameter.
func marker(p plugin.Param) string {
	switch {
	case p.Default == nil && p.Type.Kind != plugin.KindOptional:
		return "[required]"
	case p.Default == nil || p.Default.Kind == plugin.LiteralNone:
		return "[optional]"
	default:
		return "[default: " + p.Default.String() + "]"
	}
}

// typeLabel is the type annotation shown after the value hint.
func typeLabel(t plugin.Type) string {
	t = t.Base()
	switch t.Kind {
	case plugin.KindPrimitive:
		if t.Predicate == nil {
			return ""
		}
		return strings.TrimPrefix(t.String(), t.Name+" % ")
	case plugin.KindCollection, plugin.KindArtifact, plugin.KindUnion, plugin.KindMetadataColumn:
		return t.String()
	}
	return ""
}
