package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/ir"
)

// MutationResult is the outcome of a single-target update command.
type MutationResult struct {
	Action  string   `json:"action"`
	Targets []string `json:"targets"`
	LastSeq int64    `json:"last_seq"`
	Faults  []string `json:"faults,omitempty"`
}

// NewVisibilityCommand creates the visibility command.
func NewVisibilityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visibility <layer-id> on|off",
		Short: "Show or hide a committed layer",
		Long: `Set the visibility of one layer of the committed scene without
re-applying the whole scene. The change is journaled like any other event
and recorded in the committed scene.

Exit codes:
  0 - Visibility updated
  1 - The engine reported a fault
  2 - Unknown layer, bad argument or database error`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisibility(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runVisibility(opts *RootOptions, layerID, state string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var visible bool
	switch state {
	case "on", "true", "visible":
		visible = true
	case "off", "false", "hidden":
		visible = false
	default:
		return formatter.fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("visibility must be on or off, got %q", state), nil)
	}

	id := ir.LogicalID(layerID)
	return runMutation(opts, cmd, string(feed.ActionVisibility), []string{layerID},
		func(ctx context.Context, s *session) ([]feed.Event, ir.Scene, error) {
			i := slices.IndexFunc(s.committed.Layers, func(l ir.Layer) bool { return l.Base().ID == id })
			if i < 0 {
				return nil, ir.Scene{}, fmt.Errorf("layer %q: %w", id, errNotCommitted)
			}
			eid := s.rec.Namespace().ToEngineID(id)
			if _, found, err := s.store.Layer(ctx, eid); err != nil {
				return nil, ir.Scene{}, fmt.Errorf("lookup layer %s: %w", eid, err)
			} else if !found {
				return nil, ir.Scene{}, fmt.Errorf("layer %q: %w", id, errNotInEngine)
			}
			next := s.committed
			next.Layers = slices.Clone(next.Layers)
			next.Layers[i] = feed.WithVisibility(next.Layers[i], visible)
			return []feed.Event{feed.VisibilityChanged(next.Layers[i])}, next, nil
		})
}

var (
	errNotCommitted = errors.New("not found in the committed scene")
	errNotInEngine  = errors.New("not found in the engine, reset and apply to restore it")
)

// runMutation delivers the events built from the committed scene and
// commits the updated scene when the engine accepted it.
// build fails with errNotCommitted or errNotInEngine when a target is
// missing; nothing is journaled or committed then.
func runMutation(opts *RootOptions, cmd *cobra.Command, action string, targets []string,
	build func(ctx context.Context, s *session) ([]feed.Event, ir.Scene, error)) (err error) {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer func() {
		if cerr := s.close(ctx); cerr != nil && err == nil {
			err = formatter.fail(ExitCommandError, ErrCodeStore, cerr.Error(), nil)
		}
	}()

	events, next, err := build(ctx, s)
	switch {
	case errors.Is(err, errNotCommitted), errors.Is(err, errNotInEngine):
		return formatter.fail(ExitCommandError, ErrCodeUnknownID, err.Error(), nil)
	case err != nil:
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result, err := deliverAndCommit(ctx, s, events, next)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	result.Action = action
	result.Targets = targets

	text := func(w io.Writer) { writeMutationResult(w, result) }
	if len(result.Faults) > 0 {
		if err := formatter.Failure(result, ErrCodeEngineFault,
			fmt.Sprintf("%d engine operation(s) failed", len(result.Faults)), text); err != nil {
			return err
		}
		return reportedExit(ExitFailure, "engine operations failed")
	}
	return formatter.Success(result, text)
}

// deliverAndCommit returns a non-nil error only for failures other than
// engine faults, which are reported in the result instead.
func deliverAndCommit(ctx context.Context, s *session, events []feed.Event, next ir.Scene) (MutationResult, error) {
	var result MutationResult
	derr := s.deliver(ctx, events...)
	result.LastSeq = s.lastSeq()
	if derr != nil {
		result.Faults = faultMessages(derr)
		if !isEngineFault(derr) {
			return result, derr
		}
		return result, nil
	}
	if err := s.commit(ctx, next); err != nil {
		return result, err
	}
	return result, nil
}

func writeMutationResult(w io.Writer, r MutationResult) {
	if len(r.Faults) > 0 {
		fmt.Fprintf(w, "%s %v failed:\n", r.Action, r.Targets)
		for _, f := range r.Faults {
			fmt.Fprintf(w, "  %s\n", f)
		}
		return
	}
	fmt.Fprintf(w, "%s %v (seq %d)\n", r.Action, r.Targets, r.LastSeq)
}
