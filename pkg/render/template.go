package render

import (
	"bytes"
	"fmt"
	"io"
	"text/template"
)

// DefaultTemplate renders a transcript as a plain-text dialogue.
const DefaultTemplate = `{{- if .System}}system: {{.System}}
{{end -}}
{{- range .History}}
{{- $m := .}}
{{- range .Parts}}
{{- if eq (print .Kind) "text"}}{{$m.Role}}: {{.Text}}
{{else if eq (print .Kind) "tool_request"}}{{$m.Role}} -> {{.ToolName}}({{.Input}})
{{else if eq (print .Kind) "tool_response"}}{{$m.Role}} <- {{.ToolName}}: {{.Output}}
{{end -}}
{{- end}}
{{- end}}
{{- if .UserMessage}}user: {{.UserMessage}}
{{end -}}`

// PromptData is the value a Template is executed against.
type PromptData struct {
	System      string
	History     []RenderMessage
	UserMessage string
}

// Template renders PromptData with a text/template.
type Template struct {
	tmpl *template.Template
}

// NewTemplate parses text. An empty text selects DefaultTemplate.
func NewTemplate(text string) (*Template, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

// Execute writes the rendered prompt to w.
func (t *Template) Execute(w io.Writer, data PromptData) error {
	return t.tmpl.Execute(w, data)
}

// String renders the prompt into a string.
func (t *Template) String(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
