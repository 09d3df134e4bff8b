package matcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcmd/internal/grammar"
	"voxcmd/internal/paramtypes"
	"voxcmd/pkg/voxtypes"
)

func newTestMatcher(t *testing.T, extra ...*paramtypes.Type) *Matcher {
	t.Helper()
	reg := paramtypes.NewDefaultRegistry()
	for _, typ := range extra {
		require.NoError(t, reg.Register(typ))
	}
	c, err := grammar.NewCompiler(reg, grammar.DefaultOptions())
	require.NoError(t, err)
	return New(c)
}

func matchOne(t *testing.T, m *Matcher, origin, text string, st *State) *voxtypes.MatchResult {
	t.Helper()
	results, err := m.Match(context.Background(), grammar.MustPattern(origin), text, st)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func TestMatch_SimpleParameter(t *testing.T) {
	m := newTestMatcher(t)
	text := "please turn on the kitchen light now"

	res := matchOne(t, m, "turn on the $device:Word light", text, nil)
	assert.Equal(t, "turn on the kitchen light", res.Substring)
	assert.Equal(t, res.Substring, text[res.Start:res.End])

	device := res.Param("device")
	require.NotNil(t, device)
	assert.Equal(t, "kitchen", device.Value)
	assert.Equal(t, "kitchen", device.Substring)
	assert.Equal(t, "kitchen", text[device.Start:device.End])
	assert.Equal(t, paramtypes.WordType, device.Type)
}

func TestMatch_NoMatch(t *testing.T) {
	m := newTestMatcher(t)
	results, err := m.Match(context.Background(), grammar.MustPattern("turn on the $device:Word light"), "switch it off", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_OptionalParameter(t *testing.T) {
	m := newTestMatcher(t)
	origin := "turn on $device:Word (in $room:Word)?"

	tests := []struct {
		name      string
		text      string
		substring string
		room      string
	}{
		{name: "absent", text: "turn on lamp", substring: "turn on lamp"},
		{name: "absent with trailing noise", text: "turn on lamp in", substring: "turn on lamp"},
		{name: "present", text: "turn on lamp in kitchen", substring: "turn on lamp in kitchen", room: "kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := matchOne(t, m, origin, tt.text, nil)
			assert.Equal(t, tt.substring, res.Substring)
			assert.Equal(t, "lamp", res.Param("device").Value)

			room, declared := res.Params.Get("room")
			assert.True(t, declared)
			if tt.room == "" {
				assert.Nil(t, room)
				return
			}
			require.NotNil(t, room)
			assert.Equal(t, tt.room, room.Value)
		})
	}
}

func TestMatch_GreedyBeforeAnchor(t *testing.T) {
	m := newTestMatcher(t)
	p := grammar.MustPattern("remind me to $task:String tomorrow")

	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d words", n), func(t *testing.T) {
			filler := strings.TrimSpace(strings.Repeat("buy milk ", n))
			text := "remind me to " + filler + " tomorrow please"

			results, err := m.Match(context.Background(), p, text, nil)
			require.NoError(t, err)
			require.Len(t, results, 1)

			task := results[0].Param("task")
			require.NotNil(t, task)
			assert.Equal(t, filler, task.Substring)
			assert.NotContains(t, task.Substring, "tomorrow")
			assert.Equal(t, "remind me to "+filler+" tomorrow", results[0].Substring)
		})
	}
}

func TestMatch_NarrowBeforeGreedy(t *testing.T) {
	m := newTestMatcher(t)
	res := matchOne(t, m, "send $message:String to $who:Word", "send see you at noon to alice", nil)

	assert.Equal(t, "see you at noon", res.Param("message").Value)
	assert.Equal(t, "alice", res.Param("who").Value)
}

func TestMatch_NestedTypes(t *testing.T) {
	fullName := paramtypes.MustNew("FullName", "$first:Word $second:Word")
	m := newTestMatcher(t, fullName)

	res := matchOne(t, m, "$name:FullName", "John Galt", nil)
	name := res.Param("name")
	require.NotNil(t, name)
	assert.Equal(t, "John Galt", name.Value)

	first, second := name.Param("first"), name.Param("second")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "John", first.Value)
	assert.Equal(t, "Galt", second.Value)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, 5, second.Start)

	// Nested offsets follow the parent into the outer text.
	res = matchOne(t, m, "call $name:FullName now", "please call John Galt now", nil)
	name = res.Param("name")
	assert.Equal(t, "John Galt", name.Substring)
	assert.Equal(t, 12, name.Start)
	assert.Equal(t, 12, name.Param("first").Start)
	assert.Equal(t, 17, name.Param("second").Start)
	assert.LessOrEqual(t, res.Start, name.Start)
	assert.GreaterOrEqual(t, res.End, name.End)
}

func TestMatch_ParseFailure(t *testing.T) {
	m := newTestMatcher(t)
	p := grammar.MustPattern("set volume to $level:Number")

	results, err := m.Match(context.Background(), p, "set volume to seven", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Param("level").Value)

	results, err = m.Match(context.Background(), p, "set volume to loud", nil)
	require.NoError(t, err)
	assert.Empty(t, results, "a required parameter that fails to parse discards the candidate")

	res := matchOne(t, m, "set volume (to $level:Number)?", "set volume to loud", nil)
	assert.Equal(t, "set volume", res.Substring)
	assert.Nil(t, res.Param("level"))
}

func TestMatch_HookShrinksSubstring(t *testing.T) {
	device := paramtypes.MustNew("Device", "**", paramtypes.Greedy(),
		paramtypes.WithParser(func(_ context.Context, obj *voxtypes.Object, s string) (string, error) {
			trimmed := strings.TrimSuffix(s, " please")
			obj.Value = strings.ToUpper(trimmed)
			return trimmed, nil
		}))
	m := newTestMatcher(t, device)

	text := "ok turn on the lamp please"
	res := matchOne(t, m, "turn on $d:Device", text, nil)
	d := res.Param("d")
	require.NotNil(t, d)
	assert.Equal(t, "the lamp", d.Substring)
	assert.Equal(t, "the lamp", text[d.Start:d.End])
	assert.Equal(t, "THE LAMP", d.Value)
	assert.Equal(t, "turn on the lamp", res.Substring)
}

func TestMatch_InteriorShrinkDropsCandidate(t *testing.T) {
	song := paramtypes.MustNew("Song", "**",
		paramtypes.WithParser(func(_ context.Context, _ *voxtypes.Object, s string) (string, error) {
			return strings.TrimPrefix(s, "the "), nil
		}))
	m := newTestMatcher(t, song)
	var buf bytes.Buffer
	m.log = log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	results, err := m.Match(context.Background(), grammar.MustPattern("turn on $dev:Song light"), "turn on the kitchen light", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, buf.String(), "Candidate dropped")
	assert.Contains(t, buf.String(), "turn on the kitchen light")
}

func TestMatch_InvariantViolation(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "empty substring", output: ""},
		{name: "not contained", output: "elsewhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := paramtypes.MustNew("Bad", "*", paramtypes.WithParser(
				func(context.Context, *voxtypes.Object, string) (string, error) {
					return tt.output, nil
				}))
			m := newTestMatcher(t, bad)

			_, err := m.Match(context.Background(), grammar.MustPattern("use $x:Bad"), "use thing", nil)
			require.Error(t, err)

			var invErr *voxtypes.InvariantError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, "Bad", invErr.Type)
			assert.Equal(t, "thing", invErr.Input)
			assert.False(t, voxtypes.IsParseError(err))
		})
	}
}

func TestMatch_HookErrorIsParseFailure(t *testing.T) {
	flaky := paramtypes.MustNew("Flaky", "*", paramtypes.WithParser(
		func(context.Context, *voxtypes.Object, string) (string, error) {
			return "", errors.New("dictionary unavailable")
		}))
	m := newTestMatcher(t, flaky)

	results, err := m.Match(context.Background(), grammar.MustPattern("find $x:Flaky"), "find thing", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_Entities(t *testing.T) {
	rejecting := paramtypes.MustNew("Device", "**", paramtypes.Greedy(), paramtypes.WithParser(
		func(_ context.Context, _ *voxtypes.Object, s string) (string, error) {
			return "", voxtypes.NewParseError("Device", s, "unknown device")
		}))
	m := newTestMatcher(t, rejecting)
	p := grammar.MustPattern("turn on $d:Device")

	results, err := m.Match(context.Background(), p, "turn on kitchen lamp", nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	st := NewState([]voxtypes.Entity{{Substring: "kitchen lamp", Type: "Device", Value: "lamp-1"}})
	res := matchOne(t, m, "turn on $d:Device", "turn on kitchen lamp", st)
	assert.Equal(t, "lamp-1", res.Param("d").Value)
	assert.Equal(t, "kitchen lamp", res.Param("d").Substring)

	// An entity inside the captured text narrows the parameter to it.
	res = matchOne(t, m, "$d:Device", "the kitchen lamp", st)
	assert.Equal(t, "kitchen lamp", res.Substring)
	assert.Equal(t, 4, res.Param("d").Start)

	// Entities of other types are ignored.
	st = NewState([]voxtypes.Entity{{Substring: "kitchen lamp", Type: "Room"}})
	results, err = m.Match(context.Background(), p, "turn on kitchen lamp", st)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_Memo(t *testing.T) {
	var calls atomic.Int32
	counted := paramtypes.MustNew("Counted", "*", paramtypes.WithParser(
		func(_ context.Context, obj *voxtypes.Object, s string) (string, error) {
			calls.Add(1)
			obj.Value = s
			return s, nil
		}))
	m := newTestMatcher(t, counted)
	st := NewState(nil)

	first := matchOne(t, m, "open $x:Counted", "open door", st)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, st.Cache().Len())

	second := matchOne(t, m, "please open $x:Counted", "please open door", st)
	assert.Equal(t, int32(1), calls.Load(), "memoized parse is reused")
	assert.Equal(t, 12, second.Param("x").Start)

	// Results never share objects with the memo or each other.
	first.Param("x").Value = "changed"
	assert.Equal(t, "door", second.Param("x").Value)
}

func TestMatch_MultipleCandidates(t *testing.T) {
	m := newTestMatcher(t)
	results, err := m.Match(context.Background(), grammar.MustPattern("lights (on|off)"), "lights on and then lights off", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "lights off", results[0].Substring, "longest first")
	assert.Equal(t, 19, results[0].Start)
	assert.Equal(t, "lights on", results[1].Substring)
	assert.Equal(t, 0, results[1].Start)

	results, err = m.Match(context.Background(), grammar.MustPattern("say $what:Word"), "say hi and say hello", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "say hello", results[0].Substring)
	assert.Equal(t, "say hi", results[1].Substring)
}

func TestMatch_Cancelled(t *testing.T) {
	m := newTestMatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, grammar.MustPattern("turn on $device:Word"), "turn on lamp", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWordIndex(t *testing.T) {
	tests := []struct {
		s, needle string
		want      int
	}{
		{"the kitchen lamp", "kitchen lamp", 4},
		{"the Kitchen Lamp", "kitchen lamp", 4},
		{"kitchenette lamp", "kitchen", -1},
		{"lamp", "kitchen lamp", -1},
		{"a lamp", "lamp", 2},
	}
	for _, tt := range tests {
		t.Run(tt.s+"/"+tt.needle, func(t *testing.T) {
			assert.Equal(t, tt.want, wordIndex(tt.s, tt.needle))
		})
	}
}
