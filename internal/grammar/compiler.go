package grammar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"voxcmd/internal/logger"
	"voxcmd/pkg/voxtypes"
)

// ParamType is a parameter type as the compiler and matcher see it.
type ParamType interface {
	Name() string
	// Pattern is the type's own grammar.
	Pattern() *Pattern
	// Greedy types may span many words and are resolved after narrow ones.
	Greedy() bool
	// DidParse refines a matched object. It returns the substring the object
	// really covers, which must be a non-empty slice of substring, or a
	// voxtypes.ParseError to reject it.
	DidParse(ctx context.Context, obj *voxtypes.Object, substring string) (string, error)
}

// Resolver looks up parameter types by the name used in grammars.
type Resolver interface {
	Resolve(name string) (ParamType, error)
	// ID identifies the resolver instance in compile cache keys.
	ID() string
}

// RenderContext selects one rendering of a pattern.
type RenderContext struct {
	// Prefix is prepended to every capture group name.
	Prefix string
	// Prefill maps group names to literal text that replaces their grammar.
	Prefill map[string]string
	// Failed names groups that can never match.
	Failed map[string]bool
}

func (rc RenderContext) key(resolverID string, budget int) string {
	var b strings.Builder
	b.WriteString(resolverID)
	b.WriteByte(0)
	b.WriteString(rc.Prefix)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(budget))

	names := make([]string, 0, len(rc.Prefill))
	for name := range rc.Prefill {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("\x00=")
		b.WriteString(name)
		b.WriteByte(0)
		b.WriteString(strconv.Quote(rc.Prefill[name]))
	}

	failed := make([]string, 0, len(rc.Failed))
	for name, ok := range rc.Failed {
		if ok {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	for _, name := range failed {
		b.WriteString("\x00!")
		b.WriteString(name)
	}
	return b.String()
}

// Options configures a Compiler.
type Options struct {
	// MaxDepth bounds nesting of parameter types inside parameter types.
	MaxDepth int
	// CacheSize bounds the number of compiled regular expressions kept.
	CacheSize int
	// IgnoreCase compiles expressions case-insensitively.
	IgnoreCase bool
	// MatchTimeout aborts a single regex evaluation; zero means no limit.
	MatchTimeout time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxDepth:   16,
		CacheSize:  1024,
		IgnoreCase: true,
	}
}

// Compiler turns patterns into regular expressions using the parameter types
// of one resolver. It is safe for concurrent use.
type Compiler struct {
	resolver Resolver
	opts     Options
	regexps  *lru.Cache[string, *regexp2.Regexp]
}

// NewCompiler creates a compiler bound to resolver.
func NewCompiler(resolver Resolver, opts Options) (*Compiler, error) {
	defaults := DefaultOptions()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaults.CacheSize
	}

	cache, err := lru.New[string, *regexp2.Regexp](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create regexp cache: %w", err)
	}

	return &Compiler{
		resolver: resolver,
		opts:     opts,
		regexps:  cache,
	}, nil
}

// Resolver returns the resolver the compiler looks types up in.
func (c *Compiler) Resolver() Resolver {
	return c.resolver
}

// MaxDepth returns the configured nesting limit.
func (c *Compiler) MaxDepth() int {
	return c.opts.MaxDepth
}

// Compile renders p as regular expression source. The same pattern and render
// context always produce the same output.
func (c *Compiler) Compile(p *Pattern, rc RenderContext) (string, error) {
	return c.compile(p, rc, 0)
}

// Regexp compiles p and returns the executable expression.
func (c *Compiler) Regexp(p *Pattern, rc RenderContext) (*regexp2.Regexp, error) {
	src, err := c.Compile(p, rc)
	if err != nil {
		return nil, err
	}
	if re, ok := c.regexps.Get(src); ok {
		return re, nil
	}

	opts := regexp2.None
	if c.opts.IgnoreCase {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(src, opts)
	if err != nil {
		return nil, voxtypes.ConfigErrorf(p.Origin(), "compiled expression %q is invalid: %v", src, err)
	}
	if c.opts.MatchTimeout > 0 {
		re.MatchTimeout = c.opts.MatchTimeout
	}

	c.regexps.Add(src, re)
	return re, nil
}

func (c *Compiler) compile(p *Pattern, rc RenderContext, depth int) (string, error) {
	if depth > c.opts.MaxDepth {
		return "", fmt.Errorf("%w: grammar %q is nested more than %d levels deep",
			voxtypes.ErrDepthExceeded, p.Origin(), c.opts.MaxDepth)
	}

	key := rc.key(c.resolver.ID(), c.opts.MaxDepth-depth)
	if src, ok := p.compiled.Get(key); ok {
		return src, nil
	}

	comp := &compilation{compiler: c, pattern: p, ctx: rc, depth: depth}
	src, err := comp.run(normalizeSpace(p.Origin()))
	if err != nil {
		var cfgErr *voxtypes.ConfigError
		if errors.As(err, &cfgErr) {
			return "", err
		}
		return "", voxtypes.NewConfigError(p.Origin(), err)
	}

	if depth == 0 {
		logger.Debug("Compiled grammar", "grammar", p.Origin(), "prefix", rc.Prefix, "regex", src)
	}
	p.compiled.Add(key, src)
	return src, nil
}

// matchesEmpty reports whether a parameter-free grammar fragment can match
// the empty string.
func (c *Compiler) matchesEmpty(fragment string) bool {
	fragment = paramFree(fragment)
	comp := &compilation{compiler: c}
	src, err := comp.run(normalizeSpace(fragment))
	if err != nil {
		return false
	}
	re, err := regexp2.Compile(`^(?:`+src+`)$`, regexp2.None)
	if err != nil {
		return false
	}
	ok, err := re.MatchString("")
	return err == nil && ok
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func paramFree(s string) string {
	out, err := paramToken.Replace(s, "p", -1, -1)
	if err != nil {
		return s
	}
	return out
}
