package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcmd/internal/config"
	"voxcmd/internal/engine"
	"voxcmd/internal/output"
	"voxcmd/pkg/voxtypes"
)

const homeGrammar = `
version: "1.1.0"
types:
  - name: Room
    pattern: "(kitchen|bedroom|living room)"
commands:
  - name: lights
    pattern: "turn (on|off) the lights (in the $room:Room)?"
    response: "Lights: {room}"
  - name: volume
    pattern: "set volume to $level:Number"
    response: "Volume {level}"
`

func writeGrammar(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grammar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--test-mode"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRecognize(t *testing.T) {
	grammar := writeGrammar(t, homeGrammar)

	out, err := execute(t, "", "--grammar", grammar, "recognize", "--run", "turn on the lights in the kitchen")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "turn on the lights in the kitchen", lines[0])
	assert.Equal(t, `  lights [0:33] "turn on the lights in the kitchen"`, lines[1])
	assert.Equal(t, "    $room = kitchen (Room) [26:33]", lines[2])
	assert.Equal(t, "lights: Lights: kitchen", lines[3])
}

func TestRecognize_Stdin(t *testing.T) {
	grammar := writeGrammar(t, homeGrammar)

	stdin := "set volume to seven\n\nopen the door\n"
	out, err := execute(t, stdin, "--grammar", grammar, "recognize")
	require.NoError(t, err)

	assert.Contains(t, out, "set volume to seven\n  volume [0:19]")
	assert.Contains(t, out, "$level = 7 (Number) [14:19]")
	assert.Contains(t, out, "open the door\n  no command recognized\n")
	assert.NotContains(t, out, "Volume 7", "commands only run with --run")
}

func TestRecognize_JSON(t *testing.T) {
	grammar := writeGrammar(t, homeGrammar)

	out, err := execute(t, "", "--grammar", grammar, "recognize", "--json", "set volume to 11")
	require.NoError(t, err)

	var decoded struct {
		Utterance string `json:"utterance"`
		Results   []struct {
			Command string `json:"command"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "set volume to 11", decoded.Utterance)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "volume", decoded.Results[0].Command)
}

func TestRecognize_Errors(t *testing.T) {
	grammar := writeGrammar(t, homeGrammar)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "bad entity",
			args:   []string{"--grammar", grammar, "recognize", "--entity", "kitchen", "turn on"},
			errMsg: "expected text=Type",
		},
		{
			name:   "missing grammar",
			args:   []string{"--grammar", filepath.Join(t.TempDir(), "none.yaml"), "recognize", "stop"},
			errMsg: "failed to read grammar file",
		},
		{
			name:   "json and dump",
			args:   []string{"--grammar", grammar, "recognize", "--json", "--dump", "stop"},
			errMsg: "none of the others can be",
		},
		{
			name:   "invalid log level",
			args:   []string{"--log-level", "loud", "recognize", "stop"},
			errMsg: "log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCompile(t *testing.T) {
	out, err := execute(t, "", "compile", "turn on $device:Word")
	require.NoError(t, err)
	assert.Equal(t, "turn on $device:Word\n  turn\\s+on\\s+(?<device>\\w*)\n", out)

	_, err = execute(t, "", "compile", "open $door:Door")
	assert.ErrorContains(t, err, "unknown parameter type: Door")
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "", "--grammar", writeGrammar(t, homeGrammar), "check")
	require.NoError(t, err)
	assert.Equal(t, "✓ 2 commands, 4 types\n", out)

	broken := writeGrammar(t, `
types:
  - name: Colour
    pattern: "(red|blue)"
commands:
  - name: open
    pattern: "open the $door:Door"
    response: "Opening"
`)
	out, err = execute(t, "", "--grammar", broken, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command open: unknown parameter type Door for $door")
	assert.Contains(t, out, "⚠ type Colour is not used by any command")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "voxcmd v"))

	out, err = execute(t, "", "version", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, "Grammar Format: 1.1.0")

	out, err = execute(t, "", "version", "--json")
	require.NoError(t, err)
	var info struct {
		GrammarFormat string `json:"grammarFormat"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.1.0", info.GrammarFormat)
}

func TestParseEntities(t *testing.T) {
	tests := []struct {
		name     string
		specs    []string
		expected []voxtypes.Entity
		wantErr  bool
	}{
		{name: "none", expected: []voxtypes.Entity{}},
		{
			name:     "single",
			specs:    []string{"kitchen light=Device"},
			expected: []voxtypes.Entity{{Substring: "kitchen light", Type: "Device"}},
		},
		{
			name:     "text containing equals",
			specs:    []string{"a=b=Formula"},
			expected: []voxtypes.Entity{{Substring: "a=b", Type: "Formula"}},
		},
		{name: "missing type", specs: []string{"kitchen="}, wantErr: true},
		{name: "missing separator", specs: []string{"kitchen"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEntities(tt.specs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestShellSession_HandleLine(t *testing.T) {
	e, err := engine.Build(&config.Config{
		MaxDepth:    8,
		CacheSize:   16,
		IgnoreCase:  true,
		GrammarFile: writeGrammar(t, homeGrammar),
	})
	require.NoError(t, err)

	buffer := output.NewCaptureBuffer()
	session := &shellSession{
		ctx:     context.Background(),
		engine:  e,
		printer: output.NewPrinter(output.WithWriter(buffer), output.TestMode()),
		run:     true,
	}

	session.handleLine("# a comment")
	session.handleLine("   ")
	assert.Empty(t, buffer.String())

	session.handleLine("turn off the lights")
	assert.Equal(t, []string{
		"turn off the lights",
		`  lights [0:19] "turn off the lights"`,
		"    $room (absent)",
		"lights: Lights: ",
	}, buffer.Lines())
}
