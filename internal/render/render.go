// Package render turns unit records into PDF documents.
package render

import (
	"context"
	"fmt"

	"github.com/handover/docbatch/internal/domain"
)

// Renderer produces a PDF for the named template and data.
type Renderer interface {
	Render(ctx context.Context, templateName string, data any) ([]byte, error)
}

// PDFConverter prints a complete HTML document to PDF.
type PDFConverter interface {
	ToPDF(ctx context.Context, html string) ([]byte, error)
}

// RenderError reports a failed render step.
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

const (
	ErrCodeUnknownTemplate = "UNKNOWN_TEMPLATE"
	ErrCodeTemplateFailed  = "TEMPLATE_FAILED"
	ErrCodeRenderTimeout   = "RENDER_TIMEOUT"
	ErrCodeRenderFailed    = "RENDER_FAILED"
)

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// TemplateName returns the template used for a document type.
func TemplateName(docType domain.DocumentType) string {
	return fmt.Sprintf("%s.html", docType.Slug())
}

// DocumentRenderer executes an HTML template and prints the result to PDF.
type DocumentRenderer struct {
	templates *TemplateEngine
	converter PDFConverter
}

func NewDocumentRenderer(templates *TemplateEngine, converter PDFConverter) (*DocumentRenderer, error) {
	if templates == nil {
		return nil, fmt.Errorf("template engine is required")
	}
	if converter == nil {
		return nil, fmt.Errorf("pdf converter is required")
	}
	return &DocumentRenderer{templates: templates, converter: converter}, nil
}

func (r *DocumentRenderer) Render(ctx context.Context, templateName string, data any) ([]byte, error) {
	html, err := r.templates.Execute(templateName, data)
	if err != nil {
		return nil, err
	}
	return r.converter.ToPDF(ctx, html)
}
