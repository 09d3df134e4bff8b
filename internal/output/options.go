package output

import "io"

// Option configures a Printer.
type Option func(*Printer)

// WithStyles styles output with provider. Nil or unavailable providers are ignored.
func WithStyles(provider StyleProvider) Option {
	return func(p *Printer) {
		if provider != nil && provider.IsAvailable() {
			p.styleProvider = provider
		}
	}
}

// WithWriter sends output to writer instead of os.Stdout.
func WithWriter(writer io.Writer) Option {
	return func(p *Printer) {
		if writer != nil {
			p.writer = writer
		}
	}
}

// WithMode sets the output mode.
func WithMode(mode Mode) Option {
	return func(p *Printer) {
		p.mode = mode
	}
}

// JSON writes structured JSON.
func JSON() Option {
	return WithMode(ModeJSON)
}

// Dump writes godump trees.
func Dump() Option {
	return WithMode(ModeDump)
}

// TestMode makes output deterministic: plain text, no terminal styling.
func TestMode() Option {
	return func(p *Printer) {
		p.mode = ModePlain
		p.styleProvider = nil
	}
}

// Silent suppresses all output.
func Silent() Option {
	return func(p *Printer) {
		p.silent = true
	}
}
