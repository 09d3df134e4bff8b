// Package paramtypes holds parameter type descriptors and the registry that
// grammars resolve `$name:Type` references against.
package paramtypes

import (
	"context"
	"fmt"

	"voxcmd/internal/grammar"
	"voxcmd/pkg/voxtypes"
)

// ParseFunc refines an object matched by a type's grammar. It may set
// obj.Value, and returns the part of substring the object covers.
type ParseFunc func(ctx context.Context, obj *voxtypes.Object, substring string) (string, error)

// Type describes one parameter type: its grammar, greediness, declared
// fields and refine hook. Types are immutable once built.
type Type struct {
	name    string
	pattern *grammar.Pattern
	greedy  bool
	fields  []string
	parse   ParseFunc
}

// Option configures a Type.
type Option func(*Type)

// Greedy marks the type as able to span many words. Greedy parameters are
// resolved after every narrow parameter of the same grammar.
func Greedy() Option {
	return func(t *Type) {
		t.greedy = true
	}
}

// WithFields declares the named fields of the type. Every parameter in the
// type's grammar must be one of them.
func WithFields(fields ...string) Option {
	return func(t *Type) {
		t.fields = append([]string(nil), fields...)
	}
}

// WithParser sets the refine hook.
func WithParser(fn ParseFunc) Option {
	return func(t *Type) {
		t.parse = fn
	}
}

// New builds a type called name with the given grammar. Without WithFields the
// fields are the grammar's parameters.
func New(name, pattern string, opts ...Option) (*Type, error) {
	if name == "" {
		return nil, voxtypes.ConfigErrorf("parameter type", "type name cannot be empty")
	}
	p, err := grammar.NewPattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}

	t := &Type{name: name, pattern: p}
	for _, opt := range opts {
		opt(t)
	}
	if t.fields == nil {
		t.fields = p.ParamNames()
	}
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(name, pattern string, opts ...Option) *Type {
	t, err := New(name, pattern, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name implements grammar.ParamType.
func (t *Type) Name() string { return t.name }

// Pattern implements grammar.ParamType.
func (t *Type) Pattern() *grammar.Pattern { return t.pattern }

// Greedy implements grammar.ParamType.
func (t *Type) Greedy() bool { return t.greedy }

// Fields returns the declared field names.
func (t *Type) Fields() []string {
	return append([]string(nil), t.fields...)
}

// DidParse runs the refine hook. Types without one keep the whole substring
// as their value.
func (t *Type) DidParse(ctx context.Context, obj *voxtypes.Object, substring string) (string, error) {
	if t.parse == nil {
		obj.Value = substring
		return substring, nil
	}
	return t.parse(ctx, obj, substring)
}

// checkFields returns the grammar parameters that are not declared fields.
func (t *Type) checkFields() error {
	declared := make(map[string]bool, len(t.fields))
	for _, f := range t.fields {
		declared[f] = true
	}
	for _, name := range t.pattern.ParamNames() {
		if !declared[name] {
			return voxtypes.ConfigErrorf("type "+t.name, "grammar parameter %q is not a declared field", name)
		}
	}
	return nil
}
