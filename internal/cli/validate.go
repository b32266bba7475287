package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Sources     int                        `json:"sources"`
	Layers      int                        `json:"layers"`
	Annotations int                        `json:"annotations"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene>",
		Short: "Validate a scene without applying it",
		Long: `Compile the CUE scene in a directory or .cue file and check it for problems the
reconciler would silently skip: empty or duplicate ids, layers drawing from
undeclared sources, positions out of range, zoom and paint values out of range.

Exit codes:
  0 - Scene is valid
  1 - Scene has validation errors
  2 - Scene could not be loaded or compiled`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenePath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadScene(scenePath)
	if err != nil {
		return formatter.fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, scenePath)

	result := ValidationResult{
		Sources:     len(loaded.Scene.Sources),
		Layers:      len(loaded.Scene.Layers),
		Annotations: len(loaded.Scene.Annotations),
		Errors:      compiler.Validate(loaded.Scene),
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		return formatter.Success(result, func(w io.Writer) {
			fmt.Fprintf(w, "Scene is valid: %d source(s), %d layer(s), %d annotation(s)\n",
				result.Sources, result.Layers, result.Annotations)
		})
	}

	if err := formatter.Failure(result, result.Errors[0].Code, fmt.Sprintf("%d validation error(s)", len(result.Errors)), func(w io.Writer) {
		writeValidationErrors(w, result.Errors)
	}); err != nil {
		return err
	}
	return reportedExit(ExitFailure, "scene has validation errors")
}

func writeValidationErrors(w io.Writer, errs []compiler.ValidationError) {
	fmt.Fprintf(w, "Validation failed with %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}
