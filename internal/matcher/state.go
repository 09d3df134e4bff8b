package matcher

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"voxcmd/pkg/voxtypes"
)

// State is shared by every match run within one search call: the parse memo
// and the pre-recognized entities. It is safe for concurrent use and must not
// outlive the call.
type State struct {
	memo     *ParseCache
	entities []voxtypes.Entity
}

// NewState creates the state for one search over entities.
func NewState(entities []voxtypes.Entity) *State {
	return &State{
		memo:     NewParseCache(),
		entities: append([]voxtypes.Entity(nil), entities...),
	}
}

// Cache returns the parse memo.
func (s *State) Cache() *ParseCache {
	return s.memo
}

// entityFor returns an object for the first entity of typeName that equals
// raw or appears in it as whole words. Offsets are relative to raw.
func (s *State) entityFor(typeName, raw string) *voxtypes.Object {
	for _, e := range s.entities {
		if e.Type != typeName || e.Substring == "" {
			continue
		}
		idx := wordIndex(raw, e.Substring)
		if idx < 0 {
			continue
		}
		sub := raw[idx : idx+len(e.Substring)]
		value := e.Value
		if value == nil {
			value = sub
		}
		return &voxtypes.Object{
			Type:      typeName,
			Value:     value,
			Substring: sub,
			Start:     idx,
			End:       idx + len(sub),
		}
	}
	return nil
}

// wordIndex finds needle in s, ignoring case, where it is not part of a
// larger word. It returns -1 when there is no such occurrence.
func wordIndex(s, needle string) int {
	if len(needle) > len(s) {
		return -1
	}
	for i := 0; i+len(needle) <= len(s); i++ {
		if !strings.EqualFold(s[i:i+len(needle)], needle) {
			continue
		}
		if i > 0 {
			r, _ := utf8.DecodeLastRuneInString(s[:i])
			if isWordRune(r) {
				continue
			}
		}
		if end := i + len(needle); end < len(s) {
			r, _ := utf8.DecodeRuneInString(s[end:])
			if isWordRune(r) {
				continue
			}
		}
		return i
	}
	return -1
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type memoKey struct {
	substring string
	typeName  string
}

type memoEntry struct {
	obj *voxtypes.Object
}

// ParseCache memoizes parse results by (substring, type). Entries are
// written once and handed out as copies, so callers may modify what they get.
type ParseCache struct {
	mu      sync.Mutex
	entries map[memoKey]memoEntry
}

// NewParseCache creates an empty memo.
func NewParseCache() *ParseCache {
	return &ParseCache{entries: make(map[memoKey]memoEntry)}
}

// get returns a copy of the memoized object. A hit with a nil object means
// the substring is known not to parse as typeName.
func (c *ParseCache) get(substring, typeName string) (*voxtypes.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[memoKey{substring, typeName}]
	if !ok {
		return nil, false
	}
	return e.obj.Clone(), true
}

// put stores a copy of obj unless the key is already present.
func (c *ParseCache) put(substring, typeName string, obj *voxtypes.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memoKey{substring, typeName}
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = memoEntry{obj: obj.Clone()}
}

// Len returns the number of memoized entries.
func (c *ParseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
