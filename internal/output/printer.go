package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/goforj/godump"

	"voxcmd/internal/commands"
	"voxcmd/internal/search"
	"voxcmd/pkg/voxtypes"
)

// Printer writes CLI output in the configured mode. It is safe for
// concurrent use.
type Printer struct {
	styleProvider StyleProvider
	writer        io.Writer
	mode          Mode
	silent        bool

	mu sync.Mutex
}

// NewPrinter creates a printer writing to os.Stdout in ModeAuto.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Mode returns the output mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Println writes a plain line.
func (p *Printer) Println(text string) {
	p.line(SemanticPlain, text)
}

// Info writes an informational line.
func (p *Printer) Info(text string) {
	p.line(SemanticInfo, text)
}

// Success writes a success line.
func (p *Printer) Success(text string) {
	p.line(SemanticSuccess, text)
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	p.line(SemanticWarning, text)
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	p.line(SemanticError, text)
}

type resultView struct {
	Command  string                `json:"command"`
	Priority int                   `json:"priority"`
	Match    *voxtypes.MatchResult `json:"match"`
}

type recognitionView struct {
	Utterance string       `json:"utterance"`
	Results   []resultView `json:"results"`
}

// Results writes the commands recognized in utterance.
func (p *Printer) Results(utterance string, results []*search.SearchResult) {
	view := recognitionView{Utterance: utterance, Results: make([]resultView, 0, len(results))}
	for _, r := range results {
		view.Results = append(view.Results, resultView{Command: r.Name(), Priority: r.Priority, Match: r.Match})
	}
	if p.structured(view) {
		return
	}

	var b strings.Builder
	b.WriteString(p.style(SemanticSpan, utterance) + "\n")
	if len(results) == 0 {
		b.WriteString("  " + p.style(SemanticMuted, "no command recognized") + "\n")
	}
	for _, r := range results {
		fmt.Fprintf(&b, "  %s %s %q\n",
			p.style(SemanticCommand, r.Name()),
			p.style(SemanticMuted, fmt.Sprintf("[%d:%d]", r.Match.Start, r.Match.End)),
			r.Match.Substring)
		p.writeParams(&b, r.Match.Params, 2)
	}
	p.write(b.String())
}

func (p *Printer) writeParams(b *strings.Builder, params *voxtypes.Params, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range params.Names() {
		obj, _ := params.Get(name)
		if obj == nil {
			fmt.Fprintf(b, "%s%s %s\n", indent, p.style(SemanticParam, name), p.style(SemanticMuted, "(absent)"))
			continue
		}
		fmt.Fprintf(b, "%s%s = %v %s\n", indent,
			p.style(SemanticParam, name),
			obj.Value,
			p.style(SemanticMuted, fmt.Sprintf("(%s) [%d:%d]", obj.Type, obj.Start, obj.End)))
		p.writeParams(b, obj.Params, depth+1)
	}
}

// Response writes what a command runner answered.
func (p *Printer) Response(command string, resp voxtypes.Response) {
	if p.structured(struct {
		Command  string            `json:"command"`
		Response voxtypes.Response `json:"response"`
	}{command, resp}) {
		return
	}
	p.write(p.style(SemanticCommand, command) + ": " + resp.Text + "\n")
}

// Compiled writes a grammar and the expression it compiles to.
func (p *Printer) Compiled(origin, source string) {
	if p.structured(struct {
		Grammar string `json:"grammar"`
		Regexp  string `json:"regexp"`
	}{origin, source}) {
		return
	}
	p.write(p.style(SemanticSpan, origin) + "\n  " + source + "\n")
}

// Report writes a health check report.
func (p *Printer) Report(r *commands.Report) {
	if p.structured(r) {
		return
	}
	for _, w := range r.Warnings {
		p.Warning(w)
	}
	p.Success(fmt.Sprintf("%d commands, %d types", r.Commands, r.Types))
}

// Value writes v as JSON or a dump tree in those modes and with %+v otherwise.
func (p *Printer) Value(v any) {
	if p.structured(v) {
		return
	}
	p.write(fmt.Sprintf("%+v\n", v))
}

// structured writes v in JSON or dump mode and reports whether it did.
func (p *Printer) structured(v any) bool {
	switch p.mode {
	case ModeJSON:
		data, err := json.Marshal(v)
		if err != nil {
			p.Error(fmt.Sprintf("encoding output: %v", err))
			return true
		}
		p.write(string(data) + "\n")
		return true
	case ModeDump:
		if p.silent {
			return true
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		godump.Fdump(p.writer, v)
		return true
	}
	return false
}

func (p *Printer) line(semantic SemanticType, text string) {
	if p.mode == ModeJSON {
		data, err := json.Marshal(map[string]any{"type": semantic, "message": text})
		if err == nil {
			p.write(string(data) + "\n")
			return
		}
	}
	out := p.style(semantic, text)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	p.write(out)
}

// style renders text with the configured provider, or plain symbols when
// there is none.
func (p *Printer) style(semantic SemanticType, text string) string {
	if p.mode == ModeAuto && p.styleProvider != nil && p.styleProvider.IsAvailable() {
		return p.styleProvider.GetStyle(string(semantic)).Render(text)
	}
	return NewPlainStyleProvider().GetStyle(string(semantic)).Render(text)
}

func (p *Printer) write(text string) {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprint(p.writer, text) // Ignore write errors for output operations
}
