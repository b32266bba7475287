package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/compiler"
	"github.com/roach88/mapsync/internal/feed"
)

// PlannedEvent describes one change-feed event produced by apply.
type PlannedEvent struct {
	Collection string   `json:"collection,omitempty"`
	Action     string   `json:"action"`
	IDs        []string `json:"ids,omitempty"`
	StyleURL   string   `json:"style_url,omitempty"`
}

// ApplyResult is the outcome of applying a scene.
type ApplyResult struct {
	Events    []PlannedEvent `json:"events"`
	DryRun    bool           `json:"dry_run"`
	Committed bool           `json:"committed"`
	LastSeq   int64          `json:"last_seq"`
	Faults    []string       `json:"faults,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <scene>",
		Short: "Reconcile the engine with a CUE scene",
		Long: `Compile the scene in a directory or .cue file, diff it against the last committed
scene and deliver the difference to the engine as change-feed events.

The scene is committed only when every engine operation succeeded, so a
re-run after a fault retries the same difference. Applying the committed
scene again delivers nothing.

Exit codes:
  0 - Scene applied (or nothing to do)
  1 - One or more engine operations failed
  2 - Scene invalid, or the database could not be used`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], dryRun, cmd)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned events without delivering them")

	return cmd
}

func runApply(opts *RootOptions, scenePath string, dryRun bool, cmd *cobra.Command) (err error) {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	loaded, err := LoadScene(scenePath)
	if err != nil {
		return formatter.fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}
	if verrs := compiler.Validate(loaded.Scene); len(verrs) > 0 {
		if ferr := formatter.Failure(ValidationResult{Errors: verrs}, verrs[0].Code,
			fmt.Sprintf("%d validation error(s)", len(verrs)), func(w io.Writer) {
				writeValidationErrors(w, verrs)
			}); ferr != nil {
			return ferr
		}
		return reportedExit(ExitCommandError, "scene has validation errors")
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer func() {
		if cerr := s.close(ctx); cerr != nil && err == nil {
			err = formatter.fail(ExitCommandError, ErrCodeStore, cerr.Error(), nil)
		}
	}()

	events, err := feed.Plan(s.committed, loaded.Scene)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}

	result := ApplyResult{Events: describeEvents(events), DryRun: dryRun}
	formatter.VerboseLog("Planned %d event(s) from %d CUE file(s)", len(events), loaded.FileCount)

	if !dryRun {
		derr := s.deliver(ctx, events...)
		result.Faults = faultMessages(derr)
		if derr == nil {
			if err := s.commit(ctx, loaded.Scene); err != nil {
				return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			result.Committed = true
		} else if !isEngineFault(derr) {
			return formatter.fail(ExitCommandError, ErrCodeStore, derr.Error(), nil)
		}
	}
	result.LastSeq = s.lastSeq()

	text := func(w io.Writer) { writeApplyResult(w, result) }
	if len(result.Faults) > 0 {
		if err := formatter.Failure(result, ErrCodeEngineFault,
			fmt.Sprintf("%d engine operation(s) failed", len(result.Faults)), text); err != nil {
			return err
		}
		return reportedExit(ExitFailure, "engine operations failed")
	}
	return formatter.Success(result, text)
}

func describeEvents(events []feed.Event) []PlannedEvent {
	out := make([]PlannedEvent, 0, len(events))
	for _, ev := range events {
		pe := PlannedEvent{
			Collection: string(ev.Collection),
			Action:     string(ev.Action),
			StyleURL:   ev.StyleURL,
		}
		if ev.New != nil {
			pe.IDs = batchIDs(ev.New)
		} else if ev.Old != nil {
			pe.IDs = batchIDs(ev.Old)
		}
		out = append(out, pe)
	}
	return out
}

func writeApplyResult(w io.Writer, r ApplyResult) {
	if len(r.Events) == 0 {
		fmt.Fprintln(w, "Nothing to apply: engine matches the committed scene")
		return
	}
	verb := "Applied"
	if r.DryRun {
		verb = "Planned"
	}
	fmt.Fprintf(w, "%s %d event(s):\n", verb, len(r.Events))
	for _, ev := range r.Events {
		switch {
		case ev.StyleURL != "":
			fmt.Fprintf(w, "  %s %s\n", ev.Action, ev.StyleURL)
		default:
			fmt.Fprintf(w, "  %s %s %s\n", ev.Collection, ev.Action, strings.Join(ev.IDs, ", "))
		}
	}
	if len(r.Faults) > 0 {
		fmt.Fprintf(w, "%d engine operation(s) failed; scene not committed:\n", len(r.Faults))
		for _, f := range r.Faults {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
