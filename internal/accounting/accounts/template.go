// Package accounts loads chart-of-accounts templates and exposes the chart over
// HTTP.
package accounts

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// BuiltinPUC names the embedded commercial PUC template.
const BuiltinPUC = "puc"

//go:embed templates/*.toml
var builtinFS embed.FS

// Template is the TOML document of a chart template.
type Template struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Accounts    []TemplateAccount `toml:"accounts"`
}

// TemplateAccount is one [[accounts]] row.
type TemplateAccount struct {
	Code   string   `toml:"code" json:"code" validate:"required,numeric"`
	Name   string   `toml:"name" json:"name" validate:"required"`
	Type   string   `toml:"type" json:"type" validate:"required"`
	Nature string   `toml:"nature" json:"nature,omitempty"`
	Tags   []string `toml:"tags" json:"tags,omitempty"`
}

// Rows converts the document into ledger template rows. Names are NFC
// normalised so accented names compare byte-equal regardless of the editor
// that produced the file.
func (t Template) Rows() []accounting.AccountTemplate {
	rows := make([]accounting.AccountTemplate, 0, len(t.Accounts))
	for _, a := range t.Accounts {
		tags := make([]accounting.Tag, 0, len(a.Tags))
		for _, tag := range a.Tags {
			tags = append(tags, accounting.Tag(tag))
		}
		rows = append(rows, accounting.AccountTemplate{
			Code:   strings.TrimSpace(a.Code),
			Name:   norm.NFC.String(strings.TrimSpace(a.Name)),
			Type:   accounting.AccountType(strings.ToUpper(strings.TrimSpace(a.Type))),
			Nature: accounting.Nature(strings.ToUpper(strings.TrimSpace(a.Nature))),
			Tags:   accounting.NormalizeTags(tags),
		})
	}
	return rows
}

// Parse decodes a TOML template.
func Parse(data []byte) (Template, error) {
	var tpl Template
	if err := toml.Unmarshal(data, &tpl); err != nil {
		return Template{}, fmt.Errorf("%w: %v", accounting.ErrInvalidTemplate, err)
	}
	if len(tpl.Accounts) == 0 {
		return Template{}, fmt.Errorf("%w: no accounts", accounting.ErrInvalidTemplate)
	}
	return tpl, nil
}

// Builtin returns an embedded template by name.
func Builtin(name string) (Template, error) {
	data, err := builtinFS.ReadFile("templates/" + name + ".toml")
	if err != nil {
		return Template{}, fmt.Errorf("%w: unknown builtin %q", accounting.ErrInvalidTemplate, name)
	}
	return Parse(data)
}

// Load resolves ref as a builtin name first, then as a file path.
func Load(ref string) (Template, error) {
	if ref == "" {
		ref = BuiltinPUC
	}
	if !strings.ContainsAny(ref, `/\.`) {
		return Builtin(ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return Template{}, fmt.Errorf("accounts: read template: %w", err)
	}
	return Parse(data)
}
