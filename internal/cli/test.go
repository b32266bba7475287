package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run reconciliation scenarios",
		Long: `Run YAML scenarios against an in-memory engine and check their
assertions. A scenario whose golden file exists in the "golden" directory
next to it must also reproduce that trace byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  mapsync test ./scenarios
  mapsync test ./scenarios --filter "fault_*"
  mapsync test ./scenarios --update
  mapsync test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, scenarioPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := harness.FindScenarios(scenarioPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	suite, err := harness.RunFiles(cmd.Context(), paths, opts.goldenCheck)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	text := func(w io.Writer) { writeSuiteResult(w, suite) }
	if suite.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
		if err := formatter.Failure(suite, ErrCodeScenario, msg, text); err != nil {
			return err
		}
		return reportedExit(ExitFailure, msg)
	}
	return formatter.Success(suite, text)
}

// filterScenarios keeps the paths whose file name, without extension,
// matches the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, path := range paths {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, path)
		}
	}
	return out, nil
}

// goldenCheck compares or rewrites the scenario's golden trace.
func (o *TestOptions) goldenCheck(path string, scenario *harness.Scenario, result *harness.Result) []string {
	goldenPath := goldenFilePath(path, scenario.Name)

	current, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		return []string{fmt.Sprintf("failed to marshal trace: %v", err)}
	}

	if o.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return []string{fmt.Sprintf("failed to create golden directory: %v", err)}
		}
		if err := os.WriteFile(goldenPath, current, 0o644); err != nil {
			return []string{fmt.Sprintf("failed to write golden file: %v", err)}
		}
		return nil
	}

	golden, err := os.ReadFile(goldenPath)
	if errors.Is(err, fs.ErrNotExist) {
		// No golden file: assertions alone decide.
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("failed to read golden file: %v", err)}
	}
	if !bytes.Equal(bytes.TrimSpace(golden), current) {
		return []string{"trace does not match golden file (run with --update to regenerate)"}
	}
	return nil
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeSuiteResult(w io.Writer, suite *harness.SuiteResult) {
	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, r := range suite.Results {
		if r.Pass {
			fmt.Fprintf(w, "\u2713 %s\n", r.Name)
		}
	}
	for _, f := range suite.Failures {
		name := f.Name
		if name == "" {
			name = filepath.Base(f.Path)
		}
		fmt.Fprintf(w, "\u2717 %s\n", name)
		for _, e := range f.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	if suite.Failed == 0 {
		fmt.Fprintln(w, "\u2713 All scenarios passed")
	}
}
