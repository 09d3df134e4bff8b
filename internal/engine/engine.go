// Package engine assembles the recognition pipeline from a configuration:
// type registry, command manager, compiler, matcher and searcher.
package engine

import (
	"context"
	"errors"
	"fmt"

	"voxcmd/internal/commands"
	"voxcmd/internal/config"
	"voxcmd/internal/grammar"
	"voxcmd/internal/grammarfile"
	"voxcmd/internal/logger"
	"voxcmd/internal/matcher"
	"voxcmd/internal/paramtypes"
	"voxcmd/internal/search"
	"voxcmd/pkg/voxtypes"
)

// Engine is a ready-to-serve recognizer. Its registries are frozen and its
// commands passed the health check.
type Engine struct {
	Types    *paramtypes.Registry
	Commands *commands.Manager
	Compiler *grammar.Compiler
	Matcher  *matcher.Matcher
	Searcher *search.Searcher
	Report   *commands.Report
}

// HealthError is returned by Build when the registered commands fail the
// health check. Report still lists the warnings found on the way.
type HealthError struct {
	Report *commands.Report
	Err    error
}

func (e *HealthError) Error() string { return e.Err.Error() }

func (e *HealthError) Unwrap() error { return e.Err }

// Build creates an engine holding the built-in types and whatever the
// configured grammar file declares. Registration hooks run before the
// registries are frozen. An engine is only returned once the health check
// passes; otherwise the error is a *HealthError wrapping the
// *voxtypes.ConfigError.
func Build(cfg *config.Config, register ...func(*paramtypes.Registry, *commands.Manager) error) (*Engine, error) {
	e := &Engine{
		Types:    paramtypes.NewDefaultRegistry(),
		Commands: commands.NewManager(),
	}

	if cfg.GrammarFile != "" {
		f, err := grammarfile.Load(cfg.GrammarFile)
		if err != nil {
			return nil, err
		}
		if err := f.Apply(e.Types, e.Commands); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.GrammarFile, err)
		}
		logger.Debug("Grammar file loaded", "path", cfg.GrammarFile, "types", len(f.Types), "commands", len(f.Commands))
	}
	for _, fn := range register {
		if err := fn(e.Types, e.Commands); err != nil {
			return nil, err
		}
	}
	e.Types.Freeze()

	compiler, err := grammar.NewCompiler(e.Types, cfg.GrammarOptions())
	if err != nil {
		return nil, err
	}
	e.Compiler = compiler
	e.Matcher = matcher.New(compiler)
	e.Searcher = search.New(e.Matcher, cfg.Concurrency)

	report, err := commands.HealthCheck(e.Types, e.Compiler, e.Commands.All())
	if err != nil {
		logger.Error("Refusing to serve", "error", err)
		return nil, &HealthError{Report: report, Err: err}
	}
	e.Report = report
	return e, nil
}

// Recognize searches utterance over every registered command in
// registration order.
func (e *Engine) Recognize(ctx context.Context, utterance string, entities []voxtypes.Entity) ([]*search.SearchResult, error) {
	return e.Searcher.Search(ctx, utterance, e.Commands.All(), entities)
}

// Compile renders a grammar against the engine's types.
func (e *Engine) Compile(text string) (string, error) {
	p, err := grammar.NewPattern(text)
	if err != nil {
		return "", err
	}
	return e.Compiler.Compile(p, grammar.RenderContext{})
}

// Reporter receives what Process recognizes and runs.
type Reporter interface {
	Results(utterance string, results []*search.SearchResult)
	Response(command string, resp voxtypes.Response)
	Warning(text string)
	Error(text string)
}

// Process recognizes utterance, reports the results and, when run is set,
// runs every recognized command in utterance order. Only cancellation
// aborts: failing types and runners are reported and processing goes on.
func (e *Engine) Process(ctx context.Context, r Reporter, utterance string, entities []voxtypes.Entity, run bool) error {
	results, err := e.Recognize(ctx, utterance, entities)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.Warning(err.Error())
	}
	r.Results(utterance, results)
	if !run {
		return nil
	}

	for _, res := range results {
		resp, err := res.Command.Run(ctx, res.Match)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("Command failed", "command", res.Name(), "error", err)
			r.Error(fmt.Sprintf("%s: %v", res.Name(), err))
			continue
		}
		r.Response(res.Name(), resp)
	}
	return nil
}
