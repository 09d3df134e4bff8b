package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voxcmd/internal/engine"
	"voxcmd/internal/version"
)

func (a *app) newCompileCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "compile <grammar>",
		Short: "Show the regular expression a grammar compiles to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			src, err := e.Compile(args[0])
			if err != nil {
				return err
			}
			a.printer(cmd, jsonOut, false).Compiled(args[0], src)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}

func (a *app) newCheckCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that every command and type in the grammar resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.printer(cmd, jsonOut, false)
			e, err := a.loadEngine()
			if err != nil {
				var health *engine.HealthError
				if errors.As(err, &health) {
					for _, w := range health.Report.Warnings {
						p.Warning(w)
					}
				}
				return err
			}
			p.Report(e.Report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}

func (a *app) newVersionCmd() *cobra.Command {
	var detailed, jsonOut bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOut {
				info, err := version.GetInfo()
				if err != nil {
					return err
				}
				a.printer(cmd, true, false).Value(info)
				return nil
			}
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "Show detailed version information")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write version information as JSON")
	return cmd
}
