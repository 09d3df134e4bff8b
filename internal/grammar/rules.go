package grammar

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"voxcmd/pkg/voxtypes"
)

// rule is one rewrite step of the rule table. Every match of Match in the
// grammar text is replaced by the output of Rewrite. Repeat rules run until the
// text stops changing, which resolves nested brackets innermost first.
type rule struct {
	Name    string
	Match   *regexp2.Regexp
	Rewrite func(c *compilation, m regexp2.Match) (string, error)
	Repeat  bool
}

// Fixed regex fragments emitted by the rules.
const (
	wordsOneOrMore = `\S+(?:\s+\S+)*`
	anyWord        = `\w*`
	optionalWord   = `(?:\s+\w+)?`
	whitespace     = `\s+`
)

// ruleTable lists the rules in application order. Output of a rule that is
// already regex syntax goes through compilation.protect, so later rules never
// see it as grammar syntax. It is assigned in init since rewriteParameter
// reaches back into run.
var ruleTable []rule

func init() {
	ruleTable = []rule{
		{
			Name:    "escape",
			Match:   regexp2.MustCompile(`[.+^\[\]\\]|(?<![)}>*])\?|\$(?!\w+:\w+)`, regexp2.None),
			Rewrite: rewriteEscape,
		},
		{
			Name:    "alternation",
			Match:   regexp2.MustCompile(`( ?)\(([^()]*)\)(\??)( ?)`, regexp2.None),
			Rewrite: rewriteAlternation,
			Repeat:  true,
		},
		{
			Name:    "repetition",
			Match:   regexp2.MustCompile(`( ?)\{([^{}]*)\}(\??)( ?)`, regexp2.None),
			Rewrite: rewriteRepetition,
			Repeat:  true,
		},
		{
			Name:    "tag",
			Match:   regexp2.MustCompile(`( ?)<(\w+):([^<>]*)>(\??)( ?)`, regexp2.None),
			Rewrite: rewriteTag,
		},
		{
			Name:    "double wildcard",
			Match:   regexp2.MustCompile(`( ?)\*\*(\??)( ?)`, regexp2.None),
			Rewrite: rewriteDoubleWildcard,
		},
		{
			Name:    "wildcard",
			Match:   regexp2.MustCompile(`( ?)(\w*)\*(\w*)`, regexp2.None),
			Rewrite: rewriteWildcard,
		},
		{
			Name:    "whitespace",
			Match:   regexp2.MustCompile(` +`, regexp2.None),
			Rewrite: func(c *compilation, _ regexp2.Match) (string, error) { return c.protect(whitespace), nil },
		},
		{
			Name:    "parameter",
			Match:   regexp2.MustCompile(`\$(\w+):(\w+)`, regexp2.None),
			Rewrite: rewriteParameter,
		},
	}
}

func groupText(m regexp2.Match, n int) string {
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

func rewriteEscape(c *compilation, m regexp2.Match) (string, error) {
	return c.protect(`\` + m.String()), nil
}

func rewriteAlternation(c *compilation, m regexp2.Match) (string, error) {
	body := strings.ReplaceAll(groupText(m, 2), "|", c.protect("|"))
	inner := c.protect("(?:") + body + c.protect(")")
	return c.optional(groupText(m, 1), inner, groupText(m, 4), groupText(m, 3) == "?"), nil
}

func rewriteRepetition(c *compilation, m regexp2.Match) (string, error) {
	body := strings.ReplaceAll(groupText(m, 2), "|", c.protect("|"))
	alt := c.protect("(?:") + body + c.protect(")")
	inner := c.protect("(?:") + alt + c.protect(`(?:\s+`) + alt + c.protect(")*)")
	return c.optional(groupText(m, 1), inner, groupText(m, 4), groupText(m, 3) == "?"), nil
}

func rewriteTag(c *compilation, m regexp2.Match) (string, error) {
	kind := groupText(m, 2)
	items := strings.Split(groupText(m, 3), "|")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
		if items[i] == "" {
			return "", fmt.Errorf("tag <%s:...> has an empty item", kind)
		}
	}
	extra := len(items) - 1
	alt := c.protect("(?:") + strings.Join(items, c.protect("|")) + c.protect(")")

	var inner string
	switch kind {
	case "all":
		// Each item must show up within the next len(items) words; together with
		// the fixed word count that makes every item appear exactly once.
		var b strings.Builder
		for _, item := range items {
			b.WriteString(c.protect(fmt.Sprintf(`(?=(?:\S+\s+){0,%d}(?:`, extra)))
			b.WriteString(item)
			b.WriteString(c.protect(`)(?!\S))`))
		}
		b.WriteString(alt)
		if extra > 0 {
			b.WriteString(c.protect(`(?:\s+`) + alt + c.protect(fmt.Sprintf(`){%d}`, extra)))
		}
		inner = b.String()
	case "any":
		inner = alt
		if extra > 0 {
			inner += c.protect(`(?:\s+`) + alt + c.protect(fmt.Sprintf(`){0,%d}`, extra))
		}
	default:
		return "", fmt.Errorf("unknown tag <%s:...>", kind)
	}
	return c.optional(groupText(m, 1), inner, groupText(m, 5), groupText(m, 4) == "?"), nil
}

func rewriteDoubleWildcard(c *compilation, m regexp2.Match) (string, error) {
	return c.optional(groupText(m, 1), c.protect(wordsOneOrMore), groupText(m, 3), groupText(m, 2) == "?"), nil
}

func rewriteWildcard(c *compilation, m regexp2.Match) (string, error) {
	lead, pre, post := groupText(m, 1), groupText(m, 2), groupText(m, 3)
	switch {
	case pre == "" && post == "":
		if lead != "" {
			return c.protect(optionalWord), nil
		}
		return c.protect(anyWord), nil
	case pre == "":
		return lead + c.protect(`\b\w*`) + post + c.protect(`\b`), nil
	case post == "":
		return lead + c.protect(`\b`) + pre + c.protect(`\w*`), nil
	default:
		return lead + c.protect(`\b`) + pre + c.protect(`\w*`) + post + c.protect(`\b`), nil
	}
}

func rewriteParameter(c *compilation, m regexp2.Match) (string, error) {
	return c.parameter(groupText(m, 1), groupText(m, 2))
}

// compilation is the state of one pass of the rule table over one grammar.
type compilation struct {
	compiler  *Compiler
	pattern   *Pattern
	ctx       RenderContext
	depth     int
	fragments []string
}

// protect stores a regex fragment and returns the single placeholder rune
// that stands for it until materialize.
func (c *compilation) protect(fragment string) string {
	r := rune(placeholderBase + len(c.fragments))
	c.fragments = append(c.fragments, fragment)
	return string(r)
}

// optional wraps body so it may be skipped together with one adjacent space.
func (c *compilation) optional(lead, body, trail string, optional bool) string {
	if !optional {
		return lead + body + trail
	}
	switch {
	case lead != "":
		return c.protect(`(?:\s+`) + body + c.protect(")?") + trail
	case trail != "":
		return c.protect("(?:") + body + c.protect(`\s+)?`)
	default:
		return c.protect("(?:") + body + c.protect(")?")
	}
}

func (c *compilation) parameter(name, typeName string) (string, error) {
	full := c.ctx.Prefix + name
	if lit, ok := c.ctx.Prefill[full]; ok {
		return c.protect("(?<" + full + ">" + regexp2.Escape(lit) + ")"), nil
	}
	if c.ctx.Failed[full] {
		return c.protect("(?<" + full + ">(?!))"), nil
	}
	if c.compiler == nil || c.compiler.resolver == nil {
		return "", fmt.Errorf("parameter $%s:%s cannot be resolved here", name, typeName)
	}

	typ, err := c.compiler.resolver.Resolve(typeName)
	if err != nil {
		return "", voxtypes.NewConfigError(c.pattern.Origin(), err)
	}

	sub, err := c.compiler.compile(typ.Pattern(), RenderContext{
		Prefix:  full + "__",
		Prefill: c.ctx.Prefill,
		Failed:  c.ctx.Failed,
	}, c.depth+1)
	if err != nil {
		return "", fmt.Errorf("$%s:%s: %w", name, typeName, err)
	}

	if typ.Greedy() && endsWithRepetition(sub) && !c.pattern.tailParam(c.compiler, name) {
		// Lazy in the initial scan; the matcher decides the final extent.
		sub += "?"
	}
	return c.protect("(?<" + full + ">" + sub + ")"), nil
}

// run applies the rule table to text and materializes the result.
func (c *compilation) run(text string) (string, error) {
	for _, r := range ruleTable {
		limit := len(text) + 1
		for i := 0; ; i++ {
			if i > limit {
				return "", fmt.Errorf("rule %s did not settle", r.Name)
			}

			var rewriteErr error
			out, err := r.Match.ReplaceFunc(text, func(m regexp2.Match) string {
				if rewriteErr != nil {
					return m.String()
				}
				s, err := r.Rewrite(c, m)
				if err != nil {
					rewriteErr = err
					return m.String()
				}
				return s
			}, -1, -1)
			if err != nil {
				return "", fmt.Errorf("rule %s: %w", r.Name, err)
			}
			if rewriteErr != nil {
				return "", rewriteErr
			}

			changed := out != text
			text = out
			if !r.Repeat || !changed {
				break
			}
		}
	}
	if len(c.fragments) > placeholderMax-placeholderBase {
		return "", fmt.Errorf("grammar too large")
	}
	return c.materialize(text), nil
}

// materialize replaces every placeholder with its fragment in a single pass.
func (c *compilation) materialize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if idx := int(r) - placeholderBase; idx >= 0 && idx < len(c.fragments) {
			b.WriteString(c.fragments[idx])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func endsWithRepetition(s string) bool {
	n := len(s)
	if n == 0 || !strings.ContainsRune("+*}", rune(s[n-1])) {
		return false
	}
	return n < 2 || s[n-2] != '\\'
}
