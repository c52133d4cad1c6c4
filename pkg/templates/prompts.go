package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"

	"tripmind/pkg/errors"
)

//go:embed assets/prompts/*.tmpl
var assets embed.FS

var funcs = template.FuncMap{
	"truncate": TruncateRunes,
	"join":     strings.Join,
	"orDefault": func(def, v string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	},
}

// Prompts is a parsed, read-only set of handler prompt templates. A template
// is addressed by its path without the .tmpl suffix, e.g. "prompts/general".
// Missing data keys fail the render instead of printing "<no value>".
type Prompts struct {
	set map[string]*template.Template
}

// Parse loads every .tmpl file under fsys
func Parse(fsys fs.FS) (*Prompts, error) {
	p := &Prompts{set: make(map[string]*template.Template)}

	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(name) != ".tmpl" {
			return err
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, "read prompt %s", name)
		}
		id := strings.TrimSuffix(name, ".tmpl")
		parsed, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return errors.Wrapf(err, "parse prompt %s", id)
		}
		p.set[id] = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

var (
	defaultOnce    sync.Once
	defaultPrompts *Prompts
	defaultErr     error
)

// Default returns the prompts embedded in the binary. A broken embedded
// template is a build defect, so it panics.
func Default() *Prompts {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(assets, "assets")
		if err != nil {
			defaultErr = err
			return
		}
		defaultPrompts, defaultErr = Parse(sub)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultPrompts
}

// Render executes the prompt id with data
func (p *Prompts) Render(id string, data any) (string, error) {
	tmpl, ok := p.set[id]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "prompt %s", id)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render prompt %s", id)
	}
	return buf.String(), nil
}
