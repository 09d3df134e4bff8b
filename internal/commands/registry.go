// Package commands provides command registration for voxcmd.
// It keeps the commands in registration order, which is the priority order
// conflict resolution uses, and binds typed handlers to parameter names.
package commands

import (
	"context"
	"fmt"
	"sync"

	"voxcmd/internal/grammar"
	"voxcmd/pkg/voxtypes"
)

// Command is a registered grammar with the runner that handles its matches.
// Commands are immutable once registered.
type Command struct {
	name    string
	pattern *grammar.Pattern
	runner  voxtypes.Runner
	index   int
}

// Name returns the command name.
func (c *Command) Name() string { return c.name }

// Pattern returns the command grammar.
func (c *Command) Pattern() *grammar.Pattern { return c.pattern }

// Runner returns the handler attached to the command.
func (c *Command) Runner() voxtypes.Runner { return c.runner }

// Index returns the registration index. Lower indexes win conflicts.
func (c *Command) Index() int { return c.index }

// Run invokes the runner with the parameters of match.
func (c *Command) Run(ctx context.Context, match *voxtypes.MatchResult) (voxtypes.Response, error) {
	if err := ctx.Err(); err != nil {
		return voxtypes.Response{}, err
	}
	var params *voxtypes.Params
	if match != nil {
		params = match.Params
	}
	if params == nil {
		params = voxtypes.NewParams()
	}
	return c.runner.Run(ctx, params)
}

// Option configures a command at registration.
type Option func(*Command)

// WithName sets the command name. The default is the grammar text.
func WithName(name string) Option {
	return func(c *Command) {
		c.name = name
	}
}

// Manager manages command registration and lookup.
// It provides thread-safe registration and keeps registration order.
type Manager struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]*Command
}

// NewManager creates a manager with no commands.
func NewManager() *Manager {
	return &Manager{
		byName: make(map[string]*Command),
	}
}

// Register parses grammarText and records it with runner. Returns a
// configuration error if the grammar is malformed, the runner is nil or a
// command with the same name is already registered.
func (m *Manager) Register(grammarText string, runner voxtypes.Runner, opts ...Option) (*Command, error) {
	if runner == nil {
		return nil, voxtypes.ConfigErrorf("command "+grammarText, "runner cannot be nil")
	}
	pattern, err := grammar.NewPattern(grammarText)
	if err != nil {
		return nil, err
	}

	cmd := &Command{name: grammarText, pattern: pattern, runner: runner}
	for _, opt := range opts {
		opt(cmd)
	}
	if cmd.name == "" {
		return nil, voxtypes.ConfigErrorf("command "+grammarText, "command name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[cmd.name]; exists {
		return nil, voxtypes.ConfigErrorf("command "+cmd.name, "command %s already registered", cmd.name)
	}
	cmd.index = len(m.commands)
	m.commands = append(m.commands, cmd)
	m.byName[cmd.name] = cmd
	return cmd, nil
}

// Get retrieves a command by name.
func (m *Manager) Get(name string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cmd, exists := m.byName[name]
	return cmd, exists
}

// All returns the commands in registration order.
// The returned slice is a copy and can be safely modified.
func (m *Manager) All() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Command(nil), m.commands...)
}

// Len returns the number of registered commands.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.commands)
}

// Execute runs the named command with match.
func (m *Manager) Execute(ctx context.Context, name string, match *voxtypes.MatchResult) (voxtypes.Response, error) {
	cmd, exists := m.Get(name)
	if !exists {
		return voxtypes.Response{}, fmt.Errorf("unknown command: %s", name)
	}
	return cmd.Run(ctx, match)
}
