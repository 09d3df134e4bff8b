package commands

import (
	"errors"
	"fmt"
	"slices"

	"voxcmd/internal/grammar"
	"voxcmd/internal/logger"
	"voxcmd/internal/paramtypes"
	"voxcmd/pkg/voxtypes"
)

// Report summarizes a health check that found no fatal problems.
type Report struct {
	Commands int      `json:"commands"`
	Types    int      `json:"types"`
	Warnings []string `json:"warnings,omitempty"`
}

// HealthCheck verifies a registration before serving: every referenced
// parameter type is registered, every grammar compiles, and every command's
// parameters are accepted by its runner. Registered types that no command
// reaches are reported as warnings. All fatal problems are joined into one
// configuration error.
func HealthCheck(types *paramtypes.Registry, compiler *grammar.Compiler, cmds []*Command) (*Report, error) {
	var problems []error
	used := make(map[string]bool)

	var visit func(p *grammar.Pattern, owner string)
	visit = func(p *grammar.Pattern, owner string) {
		for _, param := range p.Params() {
			if used[param.Type] {
				continue
			}
			t, ok := types.Get(param.Type)
			if !ok {
				problems = append(problems, fmt.Errorf("%s: unknown parameter type %s for $%s", owner, param.Type, param.Name))
				continue
			}
			used[param.Type] = true
			visit(t.Pattern(), "type "+t.Name())
		}
	}

	for _, cmd := range cmds {
		owner := "command " + cmd.Name()
		visit(cmd.Pattern(), owner)

		if _, err := compiler.Compile(cmd.Pattern(), grammar.RenderContext{}); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", owner, err))
		}

		accepted := cmd.Runner().Parameters()
		for _, name := range cmd.Pattern().ParamNames() {
			if !slices.Contains(accepted, name) {
				problems = append(problems, fmt.Errorf("%s: runner does not accept parameter %s", owner, name))
			}
		}
	}

	report := &Report{Commands: len(cmds), Types: len(types.Names())}
	for _, name := range types.Names() {
		if used[name] || paramtypes.IsBuiltin(name) {
			continue
		}
		msg := fmt.Sprintf("type %s is not used by any command", name)
		logger.Warn("Health check", "warning", msg)
		report.Warnings = append(report.Warnings, msg)
	}

	if len(problems) > 0 {
		return report, voxtypes.NewConfigError("health check", errors.Join(problems...))
	}
	logger.Debug("Health check passed", "commands", report.Commands, "types", report.Types)
	return report, nil
}
