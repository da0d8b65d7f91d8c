package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	texttmpl "text/template"

	"github.com/noah-isme/lms-call-api/internal/models"
)

//go:embed templates/*.gohtml templates/*.txt
var templateFS embed.FS

var templateNames = []string{
	models.EmailTemplateCallScheduled,
	models.EmailTemplateCallRescheduled,
	models.EmailTemplateCallCancelled,
	models.EmailTemplateCallReminder,
	models.EmailTemplateReportCardSubmitted,
}

type scheduleRow struct {
	Range  models.CallTimeRange
	Status string
}

func row(v interface{}, status string) scheduleRow {
	r, _ := v.(models.CallTimeRange)
	return scheduleRow{Range: r, Status: status}
}

type templateContext struct {
	Subject string
	Data    map[string]interface{}
}

// Rendered is the output of one template.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Renderer turns an EmailMessage into text and HTML bodies.
type Renderer struct {
	html map[string]*htmltmpl.Template
	text map[string]*texttmpl.Template
}

// NewRenderer parses every embedded template once.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		html: make(map[string]*htmltmpl.Template, len(templateNames)),
		text: make(map[string]*texttmpl.Template, len(templateNames)),
	}
	for _, name := range templateNames {
		h, err := htmltmpl.New(name).Funcs(htmltmpl.FuncMap{"row": row}).
			ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parse html template %s: %w", name, err)
		}
		t, err := texttmpl.New(name).ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse text template %s: %w", name, err)
		}
		r.html[name] = h
		r.text[name] = t
	}
	return r, nil
}

// Render executes msg.Template. The subject is prefixed with prefix.
func (r *Renderer) Render(msg models.EmailMessage, prefix string) (*Rendered, error) {
	h, ok := r.html[msg.Template]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", msg.Template)
	}
	data := msg.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	ctx := templateContext{Subject: prefix + msg.Subject, Data: data}

	var html, text bytes.Buffer
	if err := h.ExecuteTemplate(&html, "base", ctx); err != nil {
		return nil, fmt.Errorf("render html %s: %w", msg.Template, err)
	}
	if err := r.text[msg.Template].ExecuteTemplate(&text, "base", ctx); err != nil {
		return nil, fmt.Errorf("render text %s: %w", msg.Template, err)
	}
	return &Rendered{Subject: ctx.Subject, Text: text.String(), HTML: html.String()}, nil
}
