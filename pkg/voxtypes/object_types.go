// Package voxtypes defines the values shared between the grammar compiler, the matcher
// and the command layer. This file contains the parameter object model produced by
// matching: objects, ordered parameter maps and match results.
package voxtypes

import (
	"encoding/json"

	"github.com/brunoga/deep"
	"github.com/iancoleman/orderedmap"
)

// Params holds named parameter values in the order the parameters appear in their
// grammar. A present name with a nil object marks an optional parameter that was
// not found in the input.
type Params struct {
	m *orderedmap.OrderedMap
}

// NewParams creates an empty parameter map.
func NewParams() *Params {
	return &Params{m: orderedmap.New()}
}

// Set stores obj under name, keeping the original position of an existing name.
func (p *Params) Set(name string, obj *Object) {
	p.m.Set(name, obj)
}

// Get returns the object stored under name. The boolean reports whether the name is
// present at all; the object is nil for absent optional parameters.
func (p *Params) Get(name string) (*Object, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.m.Get(name)
	if !ok {
		return nil, false
	}
	obj, _ := v.(*Object)
	return obj, true
}

// Names returns parameter names in grammar order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	return p.m.Keys()
}

// Len returns the number of names in the map.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.m.Keys())
}

// Clone returns a deep copy of the map and every object in it.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	out := NewParams()
	for _, name := range p.Names() {
		obj, _ := p.Get(name)
		out.Set(name, obj.Clone())
	}
	return out
}

func (p *Params) shift(delta int) {
	for _, name := range p.Names() {
		if obj, _ := p.Get(name); obj != nil {
			obj.Shift(delta)
		}
	}
}

// MarshalJSON encodes the map as a JSON object in grammar order.
func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return p.m.MarshalJSON()
}

// Object is the value produced by interpreting a substring as a parameter type.
// Offsets are byte offsets into the text the enclosing match was run against.
type Object struct {
	Type      string  `json:"type"`
	Value     any     `json:"value"`
	Substring string  `json:"substring"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Params    *Params `json:"params,omitempty"`
}

// Param returns the nested object called name, or nil.
func (o *Object) Param(name string) *Object {
	if o == nil {
		return nil
	}
	obj, _ := o.Params.Get(name)
	return obj
}

// Shift moves the object and all nested objects by delta bytes.
func (o *Object) Shift(delta int) {
	if o == nil || delta == 0 {
		return
	}
	o.Start += delta
	o.End += delta
	o.Params.shift(delta)
}

// Clone returns a deep copy of the object. Values that cannot be deep-copied
// (functions, channels) are shared with the original.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Value != nil {
		if v, err := deep.Copy(o.Value); err == nil {
			c.Value = v
		}
	}
	c.Params = o.Params.Clone()
	return &c
}

// MatchResult is one span of the input that satisfied a pattern, with its
// resolved parameters. Substring always equals text[Start:End].
type MatchResult struct {
	Substring string  `json:"substring"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Params    *Params `json:"params"`
}

// Param returns the object bound to name, or nil when absent.
func (m *MatchResult) Param(name string) *Object {
	if m == nil {
		return nil
	}
	obj, _ := m.Params.Get(name)
	return obj
}

// Len returns the length of the matched span in bytes.
func (m *MatchResult) Len() int {
	return m.End - m.Start
}

// Shift moves the result and its parameters by delta bytes.
func (m *MatchResult) Shift(delta int) {
	if delta == 0 {
		return
	}
	m.Start += delta
	m.End += delta
	m.Params.shift(delta)
}

// Overlaps reports whether the two spans share at least one byte.
func (m *MatchResult) Overlaps(other *MatchResult) bool {
	return m.Start < other.End && other.Start < m.End
}

// String returns the JSON form of the result, mostly for logging.
func (m *MatchResult) String() string {
	b, err := json.Marshal(m)
	if err != nil {
		return m.Substring
	}
	return string(b)
}

// Entity is a span recognized by an external recognizer (for example a named
// entity service). The matcher uses it as a ready-made value for parameters of
// the same type instead of running the type's grammar over that span.
type Entity struct {
	Substring string `json:"substring"`
	Type      string `json:"type"`
	Value     any    `json:"value,omitempty"`
}
