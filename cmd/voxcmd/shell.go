package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"

	"voxcmd/internal/engine"
	"voxcmd/internal/logger"
	"voxcmd/internal/output"
	"voxcmd/internal/version"
)

func (a *app) newShellCmd() *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Recognize utterances typed interactively",
		Long: `Start an interactive prompt. Every line typed is an utterance; recognized
commands are run unless --run=false. Type 'exit' to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			session := &shellSession{
				ctx:     cmd.Context(),
				engine:  e,
				printer: a.printer(cmd, false, false),
				run:     run,
			}

			logger.Info("Starting voxcmd shell", "version", version.GetVersion(), "commands", e.Commands.Len())

			sh := ishell.New()
			sh.SetPrompt("vox> ")
			// Utterances such as "help" must reach the recognizer
			sh.DeleteCmd("help")
			sh.Println(fmt.Sprintf("voxcmd v%s - %d commands loaded", version.GetVersion(), e.Commands.Len()))
			sh.Println("Type an utterance, or 'exit' to quit.")
			sh.NotFound(session.process)
			sh.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&run, "run", true, "Run recognized commands")
	return cmd
}

type shellSession struct {
	ctx     context.Context
	engine  *engine.Engine
	printer *output.Printer
	run     bool
}

func (s *shellSession) process(c *ishell.Context) {
	if len(c.RawArgs) == 0 {
		return
	}
	s.handleLine(strings.Join(c.RawArgs, " "))
}

// handleLine recognizes one line. Lines starting with '#' are comments.
func (s *shellSession) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	if err := s.engine.Process(s.ctx, s.printer, line, nil, s.run); err != nil {
		s.printer.Error(err.Error())
	}
}
