package commands

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcmd/pkg/voxtypes"
)

// MockRunner implements voxtypes.Runner for testing
type MockRunner struct {
	params []string
	calls  int
	last   *voxtypes.Params
}

func NewMockRunner(params ...string) *MockRunner {
	return &MockRunner{params: params}
}

func (m *MockRunner) Parameters() []string {
	return m.params
}

func (m *MockRunner) Run(_ context.Context, params *voxtypes.Params) (voxtypes.Response, error) {
	m.calls++
	m.last = params
	return voxtypes.Response{Text: "ok"}, nil
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	assert.NotNil(t, manager)
	assert.NotNil(t, manager.byName)
	assert.Equal(t, 0, manager.Len())
}

func TestManager_Register(t *testing.T) {
	tests := []struct {
		name     string
		grammar  string
		runner   voxtypes.Runner
		opts     []Option
		wantName string
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "register valid command",
			grammar:  "turn on $device:Word",
			runner:   NewMockRunner("device"),
			wantName: "turn on $device:Word",
		},
		{
			name:     "register with name",
			grammar:  "lights off",
			runner:   NewMockRunner(),
			opts:     []Option{WithName("lights_off")},
			wantName: "lights_off",
		},
		{
			name:    "malformed grammar",
			grammar: "turn (on",
			runner:  NewMockRunner(),
			wantErr: true,
			errMsg:  "unclosed",
		},
		{
			name:    "nil runner",
			grammar: "stop",
			wantErr: true,
			errMsg:  "runner cannot be nil",
		},
		{
			name:    "empty name",
			grammar: "stop",
			runner:  NewMockRunner(),
			opts:    []Option{WithName("")},
			wantErr: true,
			errMsg:  "command name cannot be empty",
		},
	}

	manager := NewManager()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := manager.Register(tt.grammar, tt.runner, tt.opts...)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				var cfgErr *voxtypes.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, cmd.Name())
			assert.Equal(t, tt.grammar, cmd.Pattern().Origin())
			assert.Same(t, tt.runner, cmd.Runner())

			// Verify command was registered
			got, exists := manager.Get(tt.wantName)
			assert.True(t, exists)
			assert.Same(t, cmd, got)
		})
	}
}

func TestManager_Register_Duplicate(t *testing.T) {
	manager := NewManager()
	first, err := manager.Register("stop", NewMockRunner(), WithName("duplicate"))
	require.NoError(t, err)

	_, err = manager.Register("halt", NewMockRunner(), WithName("duplicate"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "command duplicate already registered")

	// Verify original command is still registered
	cmd, exists := manager.Get("duplicate")
	assert.True(t, exists)
	assert.Same(t, first, cmd)
	assert.Equal(t, 1, manager.Len())
}

func TestManager_RegistrationOrder(t *testing.T) {
	manager := NewManager()
	grammars := []string{"lights on", "lights off", "play $song:String", "stop"}
	for _, g := range grammars {
		_, err := manager.Register(g, NewMockRunner("song"))
		require.NoError(t, err)
	}

	all := manager.All()
	require.Len(t, all, len(grammars))
	for i, cmd := range all {
		assert.Equal(t, grammars[i], cmd.Name())
		assert.Equal(t, i, cmd.Index())
	}

	// The returned slice is a copy
	all[0] = nil
	assert.NotNil(t, manager.All()[0])
}

func TestManager_ConcurrentRegister(t *testing.T) {
	manager := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.Register("stop", NewMockRunner(), WithName(string(rune('a'+i))))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all := manager.All()
	require.Len(t, all, 20)
	seen := make(map[int]bool)
	for _, cmd := range all {
		seen[cmd.Index()] = true
	}
	assert.Len(t, seen, 20)
}

func TestManager_Execute(t *testing.T) {
	manager := NewManager()
	runner := NewMockRunner("device")
	_, err := manager.Register("turn on $device:Word", runner, WithName("turn_on"))
	require.NoError(t, err)

	params := voxtypes.NewParams()
	params.Set("device", &voxtypes.Object{Type: "Word", Value: "lamp", Substring: "lamp"})
	match := &voxtypes.MatchResult{Substring: "turn on lamp", End: 12, Params: params}

	resp, err := manager.Execute(context.Background(), "turn_on", match)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, runner.calls)
	assert.Same(t, params, runner.last)

	_, err = manager.Execute(context.Background(), "missing", match)
	assert.EqualError(t, err, "unknown command: missing")
}

func TestCommand_Run(t *testing.T) {
	manager := NewManager()
	runner := NewMockRunner()
	cmd, err := manager.Register("stop", runner)
	require.NoError(t, err)

	t.Run("nil match gets empty params", func(t *testing.T) {
		_, err := cmd.Run(context.Background(), nil)
		require.NoError(t, err)
		require.NotNil(t, runner.last)
		assert.Equal(t, 0, runner.last.Len())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := runner.calls
		_, err := cmd.Run(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, calls, runner.calls)
	})
}
