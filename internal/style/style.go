// Package style renders themed terminal text for help, diagnostics and
// command results.
package style

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/roach88/pluma/internal/config"
)

// Style names, in the order they are exported.
var Names = []string{
	"option",
	"type",
	"default_arg",
	"command",
	"emphasis",
	"problem",
	"warning",
	"error",
	"required",
	"success",
}

// Look is how one style renders.
type Look struct {
	Fg        string `yaml:"fg,omitempty"`
	Bold      bool   `yaml:"bold,omitempty"`
	Italic    bool   `yaml:"italic,omitempty"`
	Underline bool   `yaml:"underline,omitempty"`
}

// Looks maps style names to their look.
type Looks map[string]Look

// Defaults returns the built-in theme.
func Defaults() Looks {
	return Looks{
		"option":      {Fg: "6", Bold: true},
		"type":        {Fg: "5", Bold: true},
		"default_arg": {Bold: true},
		"command":     {Fg: "5", Bold: true},
		"emphasis":    {Bold: true, Underline: true},
		"problem":     {Fg: "3"},
		"warning":     {Fg: "3", Bold: true},
		"error":       {Fg: "1"},
		"required":    {Underline: true},
		"success":     {Fg: "2"},
	}
}

// Theme applies Looks to text written to one output.
type Theme struct {
	plain  bool
	styles map[string]lipgloss.Style
}

// New creates a theme for output w. mode is one of the config color modes;
// auto detects the terminal's capabilities.
func New(w io.Writer, mode string, looks Looks) *Theme {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case config.ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	}

	t := &Theme{
		plain:  r.ColorProfile() == termenv.Ascii,
		styles: make(map[string]lipgloss.Style, len(Names)),
	}
	merged := Defaults()
	for name, look := range looks {
		merged[name] = look
	}
	for name, look := range merged {
		s := r.NewStyle().Bold(look.Bold).Italic(look.Italic).Underline(look.Underline)
		if look.Fg != "" {
			s = s.Foreground(lipgloss.Color(look.Fg))
		}
		t.styles[name] = s
	}
	return t
}

// Plain returns a theme that never styles.
func Plain() *Theme {
	return &Theme{plain: true}
}

func (t *Theme) render(name, s string) string {
	if t.plain || s == "" {
		return s
	}
	return t.styles[name].Render(s)
}

func (t *Theme) Option(s string) string     { return t.render("option", s) }
func (t *Theme) Type(s string) string       { return t.render("type", s) }
func (t *Theme) DefaultArg(s string) string { return t.render("default_arg", s) }
func (t *Theme) Command(s string) string    { return t.render("command", s) }
func (t *Theme) Emphasis(s string) string   { return t.render("emphasis", s) }
func (t *Theme) Problem(s string) string    { return t.render("problem", s) }
func (t *Theme) Warning(s string) string    { return t.render("warning", s) }
func (t *Theme) Error(s string) string      { return t.render("error", s) }
func (t *Theme) Required(s string) string   { return t.render("required", s) }
func (t *Theme) Success(s string) string    { return t.render("success", s) }
