// Package golden provides golden file testing functionality.
//
// A test case <name> is a grammar file <name>.yaml and a list of utterances
// <name>.txt, one per line. Its output is the plain recognition transcript of
// every utterance with recognized commands run, kept in <name>.expected.
package golden

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voxcmd/internal/config"
	"voxcmd/internal/engine"
	"voxcmd/internal/output"
)

// Default configuration values
const (
	DefaultTestDir = "test/golden"
	DefaultTimeout = 30 * time.Second
)

// ErrMismatch reports output that differs from the golden file.
var ErrMismatch = errors.New("output doesn't match expected")

// Config holds the settings shared by every golden operation.
type Config struct {
	TestDir string
	Verbose bool
	Timeout time.Duration
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		TestDir: DefaultTestDir,
		Timeout: DefaultTimeout,
	}
}

// Runner records, runs and diffs golden test cases.
type Runner struct {
	config *Config
	out    io.Writer
}

// NewRunner creates a runner reporting to out.
func NewRunner(config *Config, out io.Writer) *Runner {
	return &Runner{config: config, out: out}
}

// Output runs a test case and returns its transcript without trailing newlines.
func (r *Runner) Output(ctx context.Context, testName string) (string, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cfg := config.Default()
	cfg.GrammarFile = r.path(testName, ".yaml")
	e, err := engine.Build(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to load test grammar: %w", err)
	}

	utterances, err := os.ReadFile(r.path(testName, ".txt"))
	if err != nil {
		return "", fmt.Errorf("test utterances not found: %w", err)
	}

	var buf bytes.Buffer
	printer := output.NewPrinter(output.WithWriter(&buf), output.TestMode())
	for _, line := range strings.Split(string(utterances), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := e.Process(ctx, printer, line, nil, true); err != nil {
			return "", fmt.Errorf("utterance %q: %w", line, err)
		}
	}
	return cleanOutput(buf.String()), nil
}

// RecordTest runs a test case and saves its output as the golden file.
func (r *Runner) RecordTest(ctx context.Context, testName string) error {
	if r.config.Verbose {
		fmt.Fprintf(r.out, "Recording test: %s\n", testName)
	}

	actual, err := r.Output(ctx, testName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path(testName, ".expected"), []byte(actual+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write expected file: %w", err)
	}

	if r.config.Verbose {
		fmt.Fprintf(r.out, "Recorded expected output for test: %s\n", testName)
	}
	return nil
}

// AcceptTest updates the golden file of a test case with its current output.
func (r *Runner) AcceptTest(ctx context.Context, testName string) error {
	return r.RecordTest(ctx, testName)
}

// RunTest runs a test case and compares its output with the golden file.
func (r *Runner) RunTest(ctx context.Context, testName string) error {
	if r.config.Verbose {
		fmt.Fprintf(r.out, "Running test: %s\n", testName)
	}

	expected, actual, err := r.compare(ctx, testName)
	if err != nil {
		return err
	}
	if expected != actual {
		return fmt.Errorf("test %s failed: %w", testName, ErrMismatch)
	}

	if r.config.Verbose {
		fmt.Fprintf(r.out, "Test passed: %s\n", testName)
	}
	return nil
}

// RunAllTests runs every test case in the test directory.
func (r *Runner) RunAllTests(ctx context.Context) error {
	tests, err := FindAll(r.config.TestDir)
	if err != nil {
		return fmt.Errorf("failed to find tests: %w", err)
	}

	var failedTests []string
	for _, test := range tests {
		if err := r.RunTest(ctx, test); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failedTests = append(failedTests, test)
			fmt.Fprintf(r.out, "FAIL %s: %v\n", test, err)
			continue
		}
		fmt.Fprintf(r.out, "PASS %s\n", test)
	}

	fmt.Fprintf(r.out, "\nResults: %d passed, %d failed\n", len(tests)-len(failedTests), len(failedTests))
	if len(failedTests) > 0 {
		return fmt.Errorf("tests failed: %v", failedTests)
	}
	return nil
}

// ShowDiff prints the differences between the golden file and the current
// output of a test case.
func (r *Runner) ShowDiff(ctx context.Context, testName string) error {
	expected, actual, err := r.compare(ctx, testName)
	if err != nil {
		return err
	}
	WriteDiff(r.out, testName, expected, actual)
	return nil
}

func (r *Runner) compare(ctx context.Context, testName string) (expected, actual string, err error) {
	actual, err = r.Output(ctx, testName)
	if err != nil {
		return "", "", err
	}
	expectedPath := r.path(testName, ".expected")
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read expected file %s: %w", expectedPath, err)
	}
	return cleanOutput(string(content)), actual, nil
}

func (r *Runner) path(testName, ext string) string {
	return filepath.Join(r.config.TestDir, testName+ext)
}

// FindAll lists the test cases of dir in name order.
func FindAll(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	tests := make([]string, 0, len(matches))
	for _, match := range matches {
		tests = append(tests, strings.TrimSuffix(filepath.Base(match), ".txt"))
	}
	sort.Strings(tests)
	return tests, nil
}

// cleanOutput drops trailing newlines only; trailing spaces within lines
// are meaningful (for example "lights: Lights: " with an absent room).
func cleanOutput(s string) string {
	return strings.TrimRight(s, "\n")
}
