package output

import "os"

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) == os.ModeCharDevice
}

// SupportsColor reports whether styled output is wanted on stdout.
func SupportsColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTerminal()
}

// DefaultStyles returns lipgloss styles when stdout supports color and plain
// styles otherwise.
func DefaultStyles() StyleProvider {
	if SupportsColor() {
		return NewLipglossStyles()
	}
	return NewPlainStyleProvider()
}
