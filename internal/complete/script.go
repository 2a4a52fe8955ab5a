package complete

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"text/template"
)

//go:embed scripts/*.tmpl
var scriptFS embed.FS

var scripts = template.Must(template.ParseFS(scriptFS, "scripts/*.tmpl"))

// QueryCommand is the hidden command the scripts call back into.
const QueryCommand = "__complete-words"

// Shells lists the shells a script can be generated for.
var Shells = []string{"bash", "zsh"}

// WriteScript writes the completion script for shell, calling prog.
func WriteScript(w io.Writer, shell, prog string) error {
	t := scripts.Lookup(shell + ".tmpl")
	if t == nil {
		return fmt.Errorf("unsupported shell %q: must be one of %s", shell, strings.Join(Shells, ", "))
	}
	data := struct {
		Prog  string
		Func  string
		Query string
	}{
		Prog:  prog,
		Func:  strings.NewReplacer("-", "_", ".", "_").Replace(prog),
		Query: QueryCommand,
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("render %s completion: %w", shell, err)
	}
	return nil
}
