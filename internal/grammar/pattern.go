// Package grammar compiles the command grammar DSL into regular expressions.
//
// A grammar is a line of literal words mixed with DSL syntax:
//
//	(a|b)      one of the alternatives
//	(a|b)?     optional alternatives
//	{a|b}      one or more alternatives, separated by whitespace
//	{a|b}?     zero or more alternatives
//	<all:a|b>  every item exactly once, in any order
//	<any:a|b>  one or more of the items, in any order
//	*word      word ending in "word" (also word*, wo*rd, and a bare *)
//	**         one or more words, **? zero or more
//	$name:Type named parameter parsed with the grammar of Type
//
// Compilation runs the rule table over the grammar text and embeds the compiled
// grammar of every referenced parameter type as a named capturing group.
package grammar

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"voxcmd/pkg/voxtypes"
)

// PatternCacheSize bounds the number of render contexts cached per pattern.
var PatternCacheSize = 256

// Private-use runes stand for generated regex fragments while rules run.
const (
	placeholderBase = 0xF0000
	placeholderMax  = 0xFFFFD
)

var paramToken = regexp2.MustCompile(`\$(\w+):(\w+)`, regexp2.None)

// Parameter is one `$name:Type` reference in a grammar.
type Parameter struct {
	Name string
	Type string
	// Optional is set when the parameter sits inside an optional group or one
	// branch of an alternation, so a match may leave it unset.
	Optional bool
	// Start and End are byte offsets of the token inside the origin.
	Start int
	End   int
}

// Pattern is a parsed grammar. Its parameter list is derived once from the
// origin and never changes; compiled renderings are cached lazily.
type Pattern struct {
	origin string
	params []Parameter
	index  map[string]int

	compiled *lru.Cache[string, string]
	tails    sync.Map
}

// NewPattern parses origin and validates its bracket structure and parameters.
func NewPattern(origin string) (*Pattern, error) {
	for _, r := range origin {
		if r >= placeholderBase && r <= 0xFFFFF {
			return nil, voxtypes.ConfigErrorf(origin, "grammar contains reserved rune %U", r)
		}
	}

	groups, err := scanGroups(origin)
	if err != nil {
		return nil, voxtypes.NewConfigError(origin, err)
	}

	cache, err := lru.New[string, string](PatternCacheSize)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		origin:   origin,
		index:    make(map[string]int),
		compiled: cache,
	}

	runeStart := NewOffsets(origin)
	m, err := paramToken.FindStringMatch(origin)
	for ; m != nil && err == nil; m, err = paramToken.FindNextMatch(m) {
		name := m.GroupByNumber(1).String()
		typeName := m.GroupByNumber(2).String()

		first, _ := firstRune(name)
		if first != '_' && !unicode.IsLetter(first) {
			return nil, voxtypes.ConfigErrorf(origin, "parameter name %q must start with a letter", name)
		}
		if _, dup := p.index[name]; dup {
			return nil, voxtypes.ConfigErrorf(origin, "parameter %q declared twice", name)
		}

		param := Parameter{
			Name:  name,
			Type:  typeName,
			Start: runeStart[m.Index],
			End:   runeStart[m.Index+m.Length],
		}
		param.Optional = groups.optionalAt(param.Start)

		p.index[name] = len(p.params)
		p.params = append(p.params, param)
	}
	if err != nil {
		return nil, voxtypes.NewConfigError(origin, err)
	}

	return p, nil
}

// MustPattern is like NewPattern but panics on error. It is meant for grammars
// that are constants in the source.
func MustPattern(origin string) *Pattern {
	p, err := NewPattern(origin)
	if err != nil {
		panic(err)
	}
	return p
}

// Origin returns the grammar text the pattern was built from.
func (p *Pattern) Origin() string {
	return p.origin
}

// Params returns the declared parameters in left-to-right order.
func (p *Pattern) Params() []Parameter {
	out := make([]Parameter, len(p.params))
	copy(out, p.params)
	return out
}

// Param returns the parameter called name.
func (p *Pattern) Param(name string) (Parameter, bool) {
	i, ok := p.index[name]
	if !ok {
		return Parameter{}, false
	}
	return p.params[i], true
}

// ParamNames returns the declared parameter names in left-to-right order.
func (p *Pattern) ParamNames() []string {
	names := make([]string, len(p.params))
	for i, param := range p.params {
		names[i] = param.Name
	}
	return names
}

func (p *Pattern) String() string {
	return p.origin
}

// group is a bracketed region of the origin, delimiters included.
type group struct {
	open, close int
	kind        rune
	optional    bool
	alternation bool
}

type groupSet []group

// optionalAt reports whether byte offset pos lies inside a group that may be
// skipped by a match.
func (gs groupSet) optionalAt(pos int) bool {
	for _, g := range gs {
		if pos > g.open && pos < g.close && (g.optional || g.alternation) {
			return true
		}
	}
	return false
}

var closers = map[rune]rune{')': '(', '}': '{'}

// scanGroups checks that parentheses and braces are balanced and records every
// group with its optional marker. Angle brackets only form groups as tags.
func scanGroups(origin string) (groupSet, error) {
	type open struct {
		kind rune
		pos  int
		pipe bool
	}
	var (
		stack  []open
		groups groupSet
	)

	for i, r := range origin {
		switch r {
		case '(', '{':
			stack = append(stack, open{kind: r, pos: i})
		case '<':
			if tagAt(origin, i) {
				stack = append(stack, open{kind: r, pos: i})
			}
		case '|':
			if len(stack) > 0 {
				stack[len(stack)-1].pipe = true
			}
		case ')', '}', '>':
			if r == '>' {
				if len(stack) == 0 || stack[len(stack)-1].kind != '<' {
					continue
				}
			} else if len(stack) == 0 || stack[len(stack)-1].kind != closers[r] {
				return nil, fmt.Errorf("unbalanced %q at offset %d", r, i)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			g := group{open: top.pos, close: i, kind: top.kind}
			g.optional = strings.HasPrefix(origin[i+1:], "?")
			switch top.kind {
			case '(', '{':
				g.alternation = top.pipe
			case '<':
				g.alternation = strings.HasPrefix(origin[top.pos:], "<any:")
			}
			groups = append(groups, g)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed %q at offset %d", stack[len(stack)-1].kind, stack[len(stack)-1].pos)
	}
	return groups, nil
}

// tagAt reports whether a `<name:` tag opens at byte offset i.
func tagAt(s string, i int) bool {
	j := i + 1
	for j < len(s) && (s[j] == '_' || s[j] >= 'a' && s[j] <= 'z' || s[j] >= 'A' && s[j] <= 'Z' || s[j] >= '0' && s[j] <= '9') {
		j++
	}
	return j > i+1 && j < len(s) && s[j] == ':'
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// tailParam reports whether everything after parameter name can match the
// empty string, so the parameter may extend to the end of a match. The memo
// is keyed by name alone: emptySuffix only compiles parameter-free fragments
// of the origin, so the answer is the same for every compiler.
func (p *Pattern) tailParam(c *Compiler, name string) bool {
	if v, ok := p.tails.Load(name); ok {
		return v.(bool)
	}
	param, ok := p.Param(name)
	if !ok {
		return false
	}
	tail := p.emptySuffix(c, param.End)
	p.tails.Store(name, tail)
	return tail
}

func (p *Pattern) emptySuffix(c *Compiler, pos int) bool {
	s := p.origin
	for pos < len(s) {
		switch s[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		case ')', '}', '>':
			pos++
			if pos < len(s) && s[pos] == '?' {
				pos++
			}
		case '|':
			// Sibling alternatives are skipped up to the closing bracket.
			pos = skipToCloser(s, pos+1)
		default:
			end := segmentEnd(s, pos)
			if !c.matchesEmpty(s[pos:end]) {
				return false
			}
			pos = end
		}
	}
	return true
}

// skipToCloser returns the offset of the first bracket closing the group that
// contains pos, or len(s).
func skipToCloser(s string, pos int) int {
	level := 0
	for ; pos < len(s); pos++ {
		switch s[pos] {
		case '(', '{':
			level++
		case '<':
			if tagAt(s, pos) {
				level++
			}
		case ')', '}', '>':
			if level == 0 {
				return pos
			}
			level--
		}
	}
	return pos
}

// segmentEnd returns the end of the balanced run starting at pos: it stops at
// an unmatched closer or a top-level '|'.
func segmentEnd(s string, pos int) int {
	level := 0
	for ; pos < len(s); pos++ {
		switch s[pos] {
		case '(', '{':
			level++
		case '<':
			if tagAt(s, pos) {
				level++
			}
		case ')', '}', '>':
			if level == 0 {
				return pos
			}
			level--
			if pos+1 < len(s) && s[pos+1] == '?' {
				pos++
			}
		case '|':
			if level == 0 {
				return pos
			}
		}
	}
	return pos
}
