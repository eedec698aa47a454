package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

//go:embed templates/digest.html
var templates embed.FS

const defaultTemplate = "templates/digest.html"

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("02-01-2006")
	},
	// Summaries are HTML taken from the feed
	"safe": func(s string) template.HTML {
		return template.HTML(s)
	},
}

// Body is a rendered digest
type Body struct {
	HTML string
	Text string
}

// Renderer turns a digest into an HTML body with a plain-text alternative
type Renderer struct {
	tmpl      *template.Template
	converter *md.Converter
}

// NewRenderer parses the template at path, or the built-in template when
// path is empty.
func NewRenderer(path string) (*Renderer, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if path == "" {
		tmpl, err = template.New(filepath.Base(defaultTemplate)).Funcs(funcs).ParseFS(templates, defaultTemplate)
	} else {
		tmpl, err = template.New(filepath.Base(path)).Funcs(funcs).ParseFiles(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest template: %w", err)
	}

	return &Renderer{
		tmpl:      tmpl,
		converter: md.NewConverter("", true, nil),
	}, nil
}

func (r *Renderer) Render(subject string, digest *Digest) (Body, error) {
	if digest == nil {
		return Body{}, fmt.Errorf("failed to render digest: %w", ErrNothingToSend)
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Subject string
		*Digest
	}{subject, digest})
	if err != nil {
		return Body{}, fmt.Errorf("failed to render digest: %w", err)
	}

	text, err := r.converter.ConvertString(buf.String())
	if err != nil {
		return Body{}, fmt.Errorf("failed to convert digest to text: %w", err)
	}

	return Body{HTML: buf.String(), Text: text}, nil
}
