package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/dlclark/regexp2"

	"voxcmd/pkg/voxtypes"
)

var placeholder = regexp2.MustCompile(`\{(\w+)\}`, regexp2.None)

// TemplateRunner answers with a fixed text in which `{name}` placeholders are
// replaced by parameter values. Absent parameters render as empty text.
type TemplateRunner struct {
	params   []string
	template string
}

// NewTemplateRunner creates a runner accepting params and rendering template.
func NewTemplateRunner(params []string, template string) *TemplateRunner {
	return &TemplateRunner{
		params:   append([]string(nil), params...),
		template: template,
	}
}

// Parameters implements voxtypes.Runner.
func (t *TemplateRunner) Parameters() []string {
	return append([]string(nil), t.params...)
}

// Template returns the response template.
func (t *TemplateRunner) Template() string {
	return t.template
}

// Run implements voxtypes.Runner.
func (t *TemplateRunner) Run(ctx context.Context, params *voxtypes.Params) (voxtypes.Response, error) {
	if err := ctx.Err(); err != nil {
		return voxtypes.Response{}, err
	}

	data := make(map[string]any, params.Len())
	for _, name := range params.Names() {
		if obj, _ := params.Get(name); obj != nil {
			data[name] = obj.Value
		} else {
			data[name] = nil
		}
	}

	text, err := placeholder.ReplaceFunc(t.template, func(m regexp2.Match) string {
		name := m.GroupByNumber(1).String()
		obj, ok := params.Get(name)
		if !ok && !slices.Contains(t.params, name) {
			return m.String()
		}
		if obj == nil {
			return ""
		}
		return fmt.Sprint(obj.Value)
	}, -1, -1)
	if err != nil {
		return voxtypes.Response{}, fmt.Errorf("rendering response: %w", err)
	}
	return voxtypes.Response{Text: text, Data: data}, nil
}
