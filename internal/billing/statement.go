package billing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rentledger/rentledger/web"
)

// PDFRenderClient defines the minimal subset of the report client we use.
type PDFRenderClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// StatementRenderer turns a billing record into a printable statement.
// Receipts rendered here reference the record by its stable Reference, which
// is why updates merge charges instead of replacing the collection.
type StatementRenderer struct {
	tpl    *template.Template
	client PDFRenderClient
}

// NewStatementRenderer parses the embedded statement template.
func NewStatementRenderer(client PDFRenderClient) (*StatementRenderer, error) {
	funcMap := template.FuncMap{
		"money": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
	}
	tpl, err := template.New("statement.html").Funcs(funcMap).ParseFS(web.Templates, "templates/billing/statement.html")
	if err != nil {
		return nil, err
	}
	return &StatementRenderer{tpl: tpl, client: client}, nil
}

type statementData struct {
	Record    *BillingRecord
	Breakdown ComputeResult
}

// Render produces the statement PDF for a record and its breakdown.
func (r *StatementRenderer) Render(ctx context.Context, rec *BillingRecord, breakdown ComputeResult) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("statement renderer not configured")
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, statementData{Record: rec, Breakdown: breakdown}); err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, buf.String())
}
