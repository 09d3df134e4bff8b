// Package cli provides command-line interface setup for voxtest.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxcmd/cmd/voxtest/internal/golden"
	"voxcmd/internal/logger"
	"voxcmd/internal/version"
)

// App represents the voxtest CLI application
type App struct {
	Config *golden.Config
}

// NewApp creates a new voxtest CLI application
func NewApp() *App {
	return &App{Config: golden.NewConfig()}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voxtest",
		Short: "Golden file testing tool for voxcmd grammars",
		Long: `voxtest runs utterance lists against grammar files and compares the
recognition transcript with recorded golden files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Golden transcripts are plain; logs stay quiet unless verbose
			level := "error"
			if app.Config.Verbose {
				level = "debug"
			}
			return logger.Configure(level, "", false)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.Config.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&app.Config.TestDir, "test-dir", golden.DefaultTestDir, "Test directory")
	rootCmd.PersistentFlags().DurationVar(&app.Config.Timeout, "timeout", golden.DefaultTimeout, "Timeout per test case")

	app.addGoldenFileCommands(rootCmd)
	app.addVersionCommand(rootCmd)
	return rootCmd
}

func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			detailed, _ := cmd.Flags().GetBool("detailed")
			if detailed {
				fmt.Fprintf(cmd.OutOrStdout(), "voxtest %s\n", version.GetDetailedVersion())
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "voxtest %s\n", version.GetVersion())
		},
	}
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
	rootCmd.AddCommand(versionCmd)
}
