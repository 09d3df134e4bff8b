package voxtypes

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every error a parameter type returns to reject its input.
var ErrParse = errors.New("parse failed")

// ErrDepthExceeded is returned when nested type grammars recurse past the
// configured limit.
var ErrDepthExceeded = errors.New("recursion depth exceeded")

// ParseError reports that a parameter type rejected the substring it was given.
// It is local to one candidate match and never escapes the matcher.
type ParseError struct {
	Type      string
	Substring string
	Reason    string
}

// NewParseError builds a ParseError for typeName.
func NewParseError(typeName, substring, reason string) *ParseError {
	return &ParseError{Type: typeName, Substring: substring, Reason: reason}
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: cannot parse %q", e.Type, e.Substring)
	}
	return fmt.Sprintf("%s: cannot parse %q: %s", e.Type, e.Substring, e.Reason)
}

// Unwrap lets errors.Is(err, ErrParse) succeed.
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// IsParseError reports whether err is a recoverable parse failure.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// ConfigError reports a grammar, type or command declaration that cannot be served.
// These errors are fatal at startup.
type ConfigError struct {
	Subject string
	Err     error
}

// NewConfigError wraps err as a configuration error about subject.
func NewConfigError(subject string, err error) *ConfigError {
	return &ConfigError{Subject: subject, Err: err}
}

// ConfigErrorf formats a configuration error about subject.
func ConfigErrorf(subject, format string, args ...any) *ConfigError {
	return &ConfigError{Subject: subject, Err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Subject, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InvariantError reports a registered type whose refine hook broke the engine
// contract: the returned substring must be a non-empty slice of its input.
type InvariantError struct {
	Type   string
	Input  string
	Output string
}

func (e *InvariantError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("type %s returned an empty substring for %q", e.Type, e.Input)
	}
	return fmt.Sprintf("type %s returned %q which is not contained in %q", e.Type, e.Output, e.Input)
}
