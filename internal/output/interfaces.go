// Package output renders recognition results, compiled grammars and health
// reports for the voxcmd CLI. Styling is injected through StyleProvider so the
// printer itself stays free of terminal concerns.
package output

// StyleProvider supplies text styles by semantic type.
type StyleProvider interface {
	// GetStyle returns the style for a semantic type such as "command" or "param".
	GetStyle(semantic string) TextStyle

	// IsAvailable reports whether the provider can style text. Printers fall
	// back to plain text otherwise.
	IsAvailable() bool
}

// TextStyle renders text.
type TextStyle interface {
	Render(text string) string
}

// Mode selects how a printer renders values.
type Mode int

const (
	// ModeAuto styles output when a provider is available.
	ModeAuto Mode = iota

	// ModePlain never styles output.
	ModePlain

	// ModeJSON writes one JSON document per value.
	ModeJSON

	// ModeDump writes a godump tree of every value.
	ModeDump
)

// SemanticType names the meaning of a piece of output.
type SemanticType string

const (
	// SemanticPlain is unstyled text.
	SemanticPlain SemanticType = "plain"
	// SemanticInfo is informational text.
	SemanticInfo SemanticType = "info"
	// SemanticSuccess marks a completed step.
	SemanticSuccess SemanticType = "success"
	// SemanticWarning marks a non-fatal problem.
	SemanticWarning SemanticType = "warning"
	// SemanticError marks a failure.
	SemanticError SemanticType = "error"
	// SemanticCommand is a command name.
	SemanticCommand SemanticType = "command"
	// SemanticParam is a parameter name.
	SemanticParam SemanticType = "param"
	// SemanticSpan is matched text.
	SemanticSpan SemanticType = "span"
	// SemanticMuted is secondary detail such as offsets and type names.
	SemanticMuted SemanticType = "muted"
)
