package cli

import (
	"github.com/spf13/cobra"

	"voxcmd/cmd/voxtest/internal/golden"
)

// addGoldenFileCommands adds golden file testing commands
func (app *App) addGoldenFileCommands(rootCmd *cobra.Command) {
	runner := func(cmd *cobra.Command) *golden.Runner {
		return golden.NewRunner(app.Config, cmd.OutOrStdout())
	}

	recordCmd := &cobra.Command{
		Use:   "record <testname>",
		Short: "Record a new test case",
		Long: `Record a new test case by recognizing every utterance of <testname>.txt with
the grammar <testname>.yaml and saving the transcript as <testname>.expected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner(cmd).RecordTest(cmd.Context(), args[0])
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <testname>",
		Short: "Run a specific test case",
		Long: `Run a specific test case and compare its output with the expected golden file.
Returns exit code 0 if the test passes, non-zero if it fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner(cmd).RunTest(cmd.Context(), args[0])
		},
	}

	runAllCmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run all test cases",
		Long: `Run all test cases in the test directory and report the results.
Returns exit code 0 if all tests pass, non-zero if any fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner(cmd).RunAllTests(cmd.Context())
		},
	}

	acceptCmd := &cobra.Command{
		Use:   "accept <testname>",
		Short: "Accept current output as golden",
		Long: `Update the golden file for a test case with the current output.
Use this after verifying that the new behavior is correct.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner(cmd).AcceptTest(cmd.Context(), args[0])
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <testname>",
		Short: "Show differences between expected and actual output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner(cmd).ShowDiff(cmd.Context(), args[0])
		},
	}

	rootCmd.AddCommand(recordCmd, runCmd, runAllCmd, acceptCmd, diffCmd)
}
