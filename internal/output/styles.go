package output

import "github.com/charmbracelet/lipgloss"

// LipglossStyles styles output for color terminals.
type LipglossStyles struct {
	styles map[SemanticType]lipgloss.Style
}

// NewLipglossStyles creates the default terminal palette.
func NewLipglossStyles() *LipglossStyles {
	return &LipglossStyles{
		styles: map[SemanticType]lipgloss.Style{
			SemanticInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
			SemanticSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
			SemanticWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			SemanticError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			SemanticCommand: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
			SemanticParam:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			SemanticSpan:    lipgloss.NewStyle().Foreground(lipgloss.Color("51")),
			SemanticMuted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

// GetStyle implements StyleProvider.
func (l *LipglossStyles) GetStyle(semantic string) TextStyle {
	if style, ok := l.styles[SemanticType(semantic)]; ok {
		return lipglossStyle{style}
	}
	return lipglossStyle{lipgloss.NewStyle()}
}

// lipglossStyle adapts the variadic lipgloss.Style.Render to TextStyle.
type lipglossStyle struct {
	style lipgloss.Style
}

func (s lipglossStyle) Render(text string) string {
	return s.style.Render(text)
}

// IsAvailable implements StyleProvider.
func (l *LipglossStyles) IsAvailable() bool {
	return true
}
