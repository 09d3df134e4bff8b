// Package matcher extracts typed parameters from text with compiled grammars.
//
// Matching runs in two phases. An initial scan finds candidate spans for the
// whole grammar. Each candidate is then refined one parameter at a time: the
// grammar is re-rendered with every resolved parameter fixed to its literal
// text, the candidate is scanned again, and the next parameter is parsed by
// recursively matching its type's own grammar. Narrow parameters are resolved
// before greedy ones so a greedy type cannot swallow its neighbours.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"

	"voxcmd/internal/grammar"
	"voxcmd/internal/logger"
	"voxcmd/pkg/voxtypes"
)

// Matcher runs compiled grammars against text. It holds no per-call state and
// is safe for concurrent use.
type Matcher struct {
	compiler *grammar.Compiler
	log      *log.Logger
}

// New creates a matcher that compiles grammars with compiler.
func New(compiler *grammar.Compiler) *Matcher {
	return &Matcher{
		compiler: compiler,
		log:      logger.NewStyledLogger("Matcher"),
	}
}

// Compiler returns the compiler the matcher renders grammars with.
func (m *Matcher) Compiler() *grammar.Compiler {
	return m.compiler
}

type span struct {
	start, end int
}

// found is one scan of a window: the match span and the spans of the
// top-level parameter groups that took part, all relative to the full text.
type found struct {
	span
	groups map[string]span
}

// Match returns every valid match of p in text, longest first and then by
// earliest start. Offsets are byte offsets into text. A nil state is replaced
// by a fresh one.
//
// Parse failures only discard the candidate they occur in. Errors returned
// are configuration errors, invariant violations of a registered type, regex
// timeouts and context cancellation.
func (m *Matcher) Match(ctx context.Context, p *grammar.Pattern, text string, st *State) ([]*voxtypes.MatchResult, error) {
	if st == nil {
		st = NewState(nil)
	}
	return m.match(ctx, p, text, st, 0)
}

func (m *Matcher) match(ctx context.Context, p *grammar.Pattern, text string, st *State, depth int) ([]*voxtypes.MatchResult, error) {
	if depth > m.compiler.MaxDepth() {
		return nil, fmt.Errorf("%w: matching %q", voxtypes.ErrDepthExceeded, p.Origin())
	}

	re, err := m.compiler.Regexp(p, grammar.RenderContext{})
	if err != nil {
		return nil, err
	}
	candidates, err := scan(re, text)
	if err != nil {
		return nil, fmt.Errorf("scanning for %q: %w", p.Origin(), err)
	}

	var results []*voxtypes.MatchResult
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := m.resolve(ctx, p, text, c, st, depth)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if li, lj := results[i].Len(), results[j].Len(); li != lj {
			return li > lj
		}
		return results[i].Start < results[j].Start
	})
	return results, nil
}

// resolve runs the refinement loop over one candidate span.
func (m *Matcher) resolve(ctx context.Context, p *grammar.Pattern, text string, candidate span, st *State, depth int) (*voxtypes.MatchResult, error) {
	params := p.Params()
	resolved := make(map[string]*voxtypes.Object, len(params))
	rc := grammar.RenderContext{
		Prefill: make(map[string]string, len(params)),
		Failed:  make(map[string]bool, len(params)),
	}

	window := candidate
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := m.find(p, text, window, rc, params)
		if err != nil {
			return nil, err
		}
		if f == nil {
			break
		}
		window = f.span

		next, ok, err := m.pick(params, f, text, resolved, rc.Failed)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		g := f.groups[next.Name]
		obj, err := m.parseParameter(ctx, next, text[g.start:g.end], g.start, st, depth)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			m.log.Debug("Parameter unresolved", "grammar", p.Origin(), "param", next.Name, "span", text[g.start:g.end])
			rc.Failed[next.Name] = true
			continue
		}
		m.log.Debug("Parameter resolved", "grammar", p.Origin(), "param", next.Name, "span", obj.Substring)
		resolved[next.Name] = obj
		rc.Prefill[next.Name] = obj.Substring
	}

	return m.assemble(p, text, window, rc, params, resolved)
}

// assemble builds the result from a final scan with every resolved parameter
// fixed. Required parameters without a value invalidate the candidate.
func (m *Matcher) assemble(p *grammar.Pattern, text string, window span, rc grammar.RenderContext, params []grammar.Parameter, resolved map[string]*voxtypes.Object) (*voxtypes.MatchResult, error) {
	f, err := m.find(p, text, window, rc, params)
	if err != nil {
		return nil, err
	}
	if f == nil {
		// Also reached when a hook shrank an interior parameter: the text it cut
		// off sits between the value and the literals. Candidates are not re-anchored.
		m.log.Debug("Candidate dropped", "grammar", p.Origin(), "span", text[window.start:window.end],
			"reason", "final scan with resolved parameters found nothing", "prefill", rc.Prefill)
		return nil, nil
	}

	res := &voxtypes.MatchResult{
		Substring: text[f.start:f.end],
		Start:     f.start,
		End:       f.end,
		Params:    voxtypes.NewParams(),
	}
	for _, param := range params {
		obj := resolved[param.Name]
		g, ok := f.groups[param.Name]
		if obj != nil && ok {
			// Re-anchor to where the literal sits in the final match.
			obj.Shift(g.start - obj.Start)
			obj.Substring = text[g.start:g.end]
			obj.End = g.end
			res.Params.Set(param.Name, obj)
			continue
		}
		if !param.Optional {
			logger.MatchStep(p.Origin(), "rejected", "missing", param.Name, "span", res.Substring)
			return nil, nil
		}
		res.Params.Set(param.Name, nil)
	}
	return res, nil
}

// find scans the window with p rendered under rc.
func (m *Matcher) find(p *grammar.Pattern, text string, window span, rc grammar.RenderContext, params []grammar.Parameter) (*found, error) {
	re, err := m.compiler.Regexp(p, rc)
	if err != nil {
		return nil, err
	}

	sub := text[window.start:window.end]
	mm, err := re.FindStringMatch(sub)
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", p.Origin(), err)
	}
	if mm == nil {
		return nil, nil
	}

	offs := grammar.NewOffsets(sub)
	s, e := offs.Span(mm.Capture)
	s, e = trimSpan(sub, s, e)
	if e <= s {
		return nil, nil
	}

	f := &found{
		span:   span{window.start + s, window.start + e},
		groups: make(map[string]span, len(params)),
	}
	for _, param := range params {
		g := mm.GroupByName(param.Name)
		if g == nil || len(g.Captures) == 0 {
			continue
		}
		gs, ge := offs.Span(g.Capture)
		f.groups[param.Name] = span{window.start + gs, window.start + ge}
	}
	return f, nil
}

// pick chooses the next parameter to resolve: an unresolved one whose group
// captured non-blank text, narrow before greedy, then leftmost.
func (m *Matcher) pick(params []grammar.Parameter, f *found, text string, resolved map[string]*voxtypes.Object, failed map[string]bool) (grammar.Parameter, bool, error) {
	var (
		best       grammar.Parameter
		bestGreedy bool
		bestStart  int
		ok         bool
	)
	for _, param := range params {
		if resolved[param.Name] != nil || failed[param.Name] {
			continue
		}
		g, present := f.groups[param.Name]
		if !present || strings.TrimSpace(text[g.start:g.end]) == "" {
			continue
		}
		typ, err := m.compiler.Resolver().Resolve(param.Type)
		if err != nil {
			return grammar.Parameter{}, false, voxtypes.NewConfigError(param.Name, err)
		}

		greedy := typ.Greedy()
		if !ok || (!greedy && bestGreedy) || (greedy == bestGreedy && g.start < bestStart) {
			best, bestGreedy, bestStart, ok = param, greedy, g.start, true
		}
	}
	return best, ok, nil
}

// parseParameter interprets raw, found at rawStart in the full text, as the
// parameter's type. A nil object without error means the text does not parse.
func (m *Matcher) parseParameter(ctx context.Context, param grammar.Parameter, raw string, rawStart int, st *State, depth int) (*voxtypes.Object, error) {
	typ, err := m.compiler.Resolver().Resolve(param.Type)
	if err != nil {
		return nil, voxtypes.NewConfigError(param.Name, err)
	}

	s, e := trimSpan(raw, 0, len(raw))
	raw, rawStart = raw[s:e], rawStart+s

	if obj, hit := st.memo.get(raw, typ.Name()); hit {
		obj.Shift(rawStart)
		return obj, nil
	}

	obj, err := m.parseFresh(ctx, typ, raw, st, depth)
	if err != nil {
		return nil, err
	}
	st.memo.put(raw, typ.Name(), obj)
	if obj != nil {
		obj.Shift(rawStart)
	}
	return obj, nil
}

// parseFresh parses raw as typ with offsets relative to raw.
func (m *Matcher) parseFresh(ctx context.Context, typ grammar.ParamType, raw string, st *State, depth int) (*voxtypes.Object, error) {
	if obj := st.entityFor(typ.Name(), raw); obj != nil {
		return obj, nil
	}

	results, err := m.match(ctx, typ.Pattern(), raw, st, depth+1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	best := results[0]

	obj := &voxtypes.Object{
		Type:      typ.Name(),
		Value:     best.Substring,
		Substring: best.Substring,
		Start:     best.Start,
		End:       best.End,
		Params:    best.Params,
	}
	in := obj.Substring
	out, err := typ.DidParse(ctx, obj, in)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case voxtypes.IsParseError(err):
			m.log.Debug("Parse rejected", "type", typ.Name(), "input", in, "error", err)
		default:
			m.log.Warn("Parse hook failed", "type", typ.Name(), "input", in, "error", err)
		}
		return nil, nil
	}

	idx := strings.Index(in, out)
	if out == "" || idx < 0 {
		return nil, &voxtypes.InvariantError{Type: typ.Name(), Input: in, Output: out}
	}
	if out != in {
		obj.Start += idx
		obj.End = obj.Start + len(out)
		obj.Substring = out
		dropOutside(obj)
	}
	return obj, nil
}

// dropOutside unsets nested parameters that no longer lie inside obj after
// its hook shrank it.
func dropOutside(obj *voxtypes.Object) {
	for _, name := range obj.Params.Names() {
		sub := obj.Param(name)
		if sub != nil && (sub.Start < obj.Start || sub.End > obj.End) {
			obj.Params.Set(name, nil)
		}
	}
}

// scan returns the non-blank spans of every match of re in text, trimmed and
// sorted by start.
func scan(re *regexp2.Regexp, text string) ([]span, error) {
	offs := grammar.NewOffsets(text)

	var spans []span
	mm, err := re.FindStringMatch(text)
	for ; mm != nil && err == nil; mm, err = re.FindNextMatch(mm) {
		s, e := offs.Span(mm.Capture)
		s, e = trimSpan(text, s, e)
		if e > s {
			spans = append(spans, span{s, e})
		}
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans, nil
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}
