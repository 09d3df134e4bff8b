// Package main provides the voxcmd CLI application entry point.
// voxcmd recognizes spoken commands in transcribed utterances using a
// grammar file of parameter types and command patterns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"voxcmd/internal/config"
	"voxcmd/internal/engine"
	"voxcmd/internal/logger"
	"voxcmd/internal/output"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	testMode   bool

	cfg    *config.Config
	engine *engine.Engine
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "voxcmd",
		Short: "voxcmd - spoken command recognizer",
		Long: `voxcmd finds the commands spoken in an utterance and extracts their parameters.
Commands and parameter types are declared in a YAML grammar file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("grammar", "", "Grammar file declaring types and commands")
	flags.Int("concurrency", 0, "Commands matched in parallel (0 uses all CPUs)")
	flags.StringVar(&a.configFile, "config", "", "Config file (default ./voxcmd.yaml)")
	flags.BoolVar(&a.testMode, "test-mode", false, "Run in deterministic test mode")

	for key, flag := range map[string]string{
		"log_level":    "log-level",
		"log_file":     "log-file",
		"grammar_file": "grammar",
		"concurrency":  "concurrency",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding %s flag: %v", flag, err))
		}
	}

	rootCmd.AddCommand(
		a.newRecognizeCmd(),
		a.newShellCmd(),
		a.newCompileCmd(),
		a.newCheckCmd(),
		a.newVersionCmd(),
	)
	return rootCmd
}

// initConfig loads the configuration and configures the logger before any
// subcommand runs.
func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{
		Viper:      a.v,
		ConfigFile: a.configFile,
		TestMode:   a.testMode,
	})
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile, a.testMode); err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	a.cfg = cfg
	return nil
}

// loadEngine builds the engine on first use.
func (a *app) loadEngine() (*engine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	e, err := engine.Build(a.cfg)
	if err != nil {
		return nil, err
	}
	a.engine = e
	logger.Debug("Engine ready", "commands", e.Commands.Len(), "types", len(e.Types.Names()))
	return e, nil
}

// printer creates a printer writing to the command's output stream.
func (a *app) printer(cmd *cobra.Command, jsonOut, dumpOut bool) *output.Printer {
	opts := []output.Option{output.WithWriter(cmd.OutOrStdout())}
	switch {
	case a.testMode:
		opts = append(opts, output.TestMode())
	default:
		opts = append(opts, output.WithStyles(output.DefaultStyles()))
	}
	switch {
	case jsonOut:
		opts = append(opts, output.JSON())
	case dumpOut:
		opts = append(opts, output.Dump())
	}
	return output.NewPrinter(opts...)
}
