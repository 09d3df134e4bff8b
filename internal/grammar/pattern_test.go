package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcmd/pkg/voxtypes"
)

func TestNewPattern_Params(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected []Parameter
	}{
		{
			name:     "no parameters",
			origin:   "turn on the light",
			expected: []Parameter{},
		},
		{
			name:   "required and optional",
			origin: "turn on $device:Word (in $room:Word)?",
			expected: []Parameter{
				{Name: "device", Type: "Word", Start: 8, End: 20},
				{Name: "room", Type: "Word", Optional: true, Start: 25, End: 35},
			},
		},
		{
			name:   "alternation branches are optional",
			origin: "($a:Word|$b:Number)",
			expected: []Parameter{
				{Name: "a", Type: "Word", Optional: true, Start: 1, End: 8},
				{Name: "b", Type: "Number", Optional: true, Start: 9, End: 18},
			},
		},
		{
			name:   "plain group stays required",
			origin: "(set $level:Number) percent",
			expected: []Parameter{
				{Name: "level", Type: "Number", Start: 5, End: 18},
			},
		},
		{
			name:   "any tag items are optional",
			origin: "<any:red|$shade:Word>",
			expected: []Parameter{
				{Name: "shade", Type: "Word", Optional: true, Start: 9, End: 20},
			},
		},
		{
			name:     "dollar amount is not a parameter",
			origin:   "costs $5",
			expected: []Parameter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPattern(tt.origin)
			require.NoError(t, err)
			assert.Equal(t, tt.origin, p.Origin())
			assert.Equal(t, tt.expected, p.Params())

			for _, param := range tt.expected {
				got, ok := p.Param(param.Name)
				assert.True(t, ok)
				assert.Equal(t, param, got)
			}
		})
	}
}

func TestNewPattern_Errors(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		errContains string
	}{
		{name: "unclosed paren", origin: "turn (on", errContains: "unclosed"},
		{name: "stray closer", origin: "turn on)", errContains: "unbalanced"},
		{name: "mismatched", origin: "{on)", errContains: "unbalanced"},
		{name: "duplicate parameter", origin: "$a:Word and $a:Word", errContains: "declared twice"},
		{name: "name starts with digit", origin: "$1a:Word", errContains: "must start with a letter"},
		{name: "reserved rune", origin: "turn \U000F0001 on", errContains: "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPattern(tt.origin)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)

			var cfgErr *voxtypes.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestMustPattern_Panics(t *testing.T) {
	assert.Panics(t, func() { MustPattern("(") })
	assert.NotPanics(t, func() { MustPattern("()") })
}

func TestPattern_ParamNames(t *testing.T) {
	p := MustPattern("move $what:String to $where:Word")
	assert.Equal(t, []string{"what", "where"}, p.ParamNames())
	assert.Equal(t, "move $what:String to $where:Word", p.String())

	_, ok := p.Param("missing")
	assert.False(t, ok)
}
