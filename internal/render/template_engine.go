package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateEngine holds the parsed document templates.
type TemplateEngine struct {
	templates *template.Template
}

func NewTemplateEngine() (*TemplateEngine, error) {
	tmpl, err := template.New("documents").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplateFailed, "failed to parse templates", err)
	}
	return &TemplateEngine{templates: tmpl}, nil
}

func (e *TemplateEngine) Execute(name string, data any) (string, error) {
	tmpl := e.templates.Lookup(name)
	if tmpl == nil {
		return "", NewRenderError(ErrCodeUnknownTemplate, "unknown template "+name, nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
		"upper":       strings.ToUpper,
		"join":        strings.Join,
		"inc":         func(i int) int { return i + 1 },
	}
}

// formatMoney formats an amount with thousands separators, e.g. 1234567.5 -> "1,234,567.50".
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.SplitN(d.StringFixed(2), ".", 2)
	intPart := parts[0]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + parts[1]
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	}
	return ""
}
