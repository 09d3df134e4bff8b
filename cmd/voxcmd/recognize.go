package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voxcmd/pkg/voxtypes"
)

type recognizeOptions struct {
	entities []string
	run      bool
	json     bool
	dump     bool
}

func (a *app) newRecognizeCmd() *cobra.Command {
	var opts recognizeOptions

	cmd := &cobra.Command{
		Use:   "recognize [utterance]",
		Short: "Recognize the commands in an utterance",
		Long: `Recognize the commands spoken in an utterance and print their parameters.
Without an argument every non-empty line of standard input is an utterance.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			entities, err := parseEntities(opts.entities)
			if err != nil {
				return err
			}
			p := a.printer(cmd, opts.json, opts.dump)

			if len(args) == 1 {
				return e.Process(cmd.Context(), p, args[0], entities, opts.run)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := e.Process(cmd.Context(), p, line, entities, opts.run); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringArrayVar(&opts.entities, "entity", nil, "Known entity as text=Type (repeatable)")
	cmd.Flags().BoolVar(&opts.run, "run", false, "Run recognized commands and print their responses")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Write JSON output")
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "Dump matched values as trees")
	cmd.MarkFlagsMutuallyExclusive("json", "dump")
	return cmd
}

// parseEntities reads text=Type pairs. The last '=' separates the type so
// entity text may contain '='.
func parseEntities(specs []string) ([]voxtypes.Entity, error) {
	entities := make([]voxtypes.Entity, 0, len(specs))
	for _, spec := range specs {
		i := strings.LastIndex(spec, "=")
		if i < 0 {
			return nil, fmt.Errorf("invalid entity %q: expected text=Type", spec)
		}
		text, typ := strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i+1:])
		if text == "" || typ == "" {
			return nil, fmt.Errorf("invalid entity %q: expected text=Type", spec)
		}
		entities = append(entities, voxtypes.Entity{Substring: text, Type: typ})
	}
	return entities, nil
}
