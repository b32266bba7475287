package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
	"github.com/roach88/mapsync/internal/reconcile"
	"github.com/roach88/mapsync/internal/store"
)

// ReplayResult holds the replay verdict.
type ReplayResult struct {
	Events        int    `json:"events"`
	Until         int64  `json:"until,omitempty"`
	ReplayDigest  string `json:"replay_digest"`
	StoreDigest   string `json:"store_digest,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Matches       bool   `json:"matches"`
	// Faults counts events the in-memory engine rejected.
	Faults int `json:"faults"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var until int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify the engine state",
		Long: `Re-deliver every journaled change-feed event, in sequence order, to a
fresh in-memory engine. The replay runs twice and both runs must reach the
same state digest. The result is then compared with the state held in the
database; a mismatch means some journaled event never took effect, for
example because the engine reported a fault that was not retried.

With --until, only events up to that sequence number are replayed and the
comparison with the database is skipped.

Exit codes:
  0 - Replay is deterministic and matches the database
  1 - Replay diverged
  2 - Command error (database unreadable, undecodable event, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, until, cmd)
		},
	}

	cmd.Flags().Int64Var(&until, "until", 0, "replay events up to this sequence number only")

	return cmd
}

func runReplay(opts *RootOptions, until int64, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)
	cfg := opts.Config()

	ns, err := cfg.NamespaceValue()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	records, err := st.Events(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	events := make([]feed.Event, 0, len(records))
	for _, rec := range records {
		if until > 0 && rec.Seq > until {
			break
		}
		ev, err := feed.DecodeEvent(rec.Seq, rec.Collection, rec.Action, rec.Payload)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("event %d: %v", rec.Seq, err), nil)
		}
		events = append(events, ev)
	}
	formatter.VerboseLog("Replaying %d of %d journaled event(s)", len(events), len(records))

	logger := opts.Logger()
	first, faults, err := replayDigest(ctx, ns, logger, events)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	second, _, err := replayDigest(ctx, ns, logger, events)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := ReplayResult{
		Events:        len(events),
		Until:         until,
		ReplayDigest:  first,
		Deterministic: first == second,
		Matches:       true,
		Faults:        faults,
	}

	if until == 0 {
		snap, err := mapengine.Capture(ctx, st)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		if result.StoreDigest, err = snap.Digest(); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Matches = result.StoreDigest == first
	}

	text := func(w io.Writer) { writeReplayResult(w, result) }
	if !result.Deterministic || !result.Matches {
		msg := "replayed state diverged"
		if !result.Deterministic {
			msg = "replay is not deterministic"
		}
		if err := formatter.Failure(result, ErrCodeDivergence, msg, text); err != nil {
			return err
		}
		return reportedExit(ExitFailure, msg)
	}
	return formatter.Success(result, text)
}

// replayDigest delivers events to a fresh in-memory engine through the
// same adapter path live events take, and returns the resulting state
// digest with the number of events that faulted.
func replayDigest(ctx context.Context, ns namespace.Namespace, logger *slog.Logger, events []feed.Event) (string, int, error) {
	engine := mapengine.NewMemory(mapengine.NewSequentialGenerator("replay"))
	rec := reconcile.New(engine, reconcile.WithNamespace(ns), reconcile.WithLogger(logger))
	d := feed.NewDispatcher(feed.WithDispatchLogger(logger))
	adapter := feed.NewAdapter(rec, d, logger)
	defer adapter.Close()

	faults := 0
	for _, ev := range events {
		if err := adapter.OnCollectionChanged(ctx, ev); err != nil {
			if !reconcile.IsEngineFault(err) {
				return "", 0, fmt.Errorf("replay event %d: %w", ev.Seq, err)
			}
			faults++
		}
	}

	snap, err := mapengine.Capture(ctx, engine)
	if err != nil {
		return "", 0, err
	}
	digest, err := snap.Digest()
	if err != nil {
		return "", 0, err
	}
	return digest, faults, nil
}

func writeReplayResult(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "Replay Summary: %d event(s)\n", r.Events)
	fmt.Fprintf(w, "  Replay digest: %s\n", r.ReplayDigest)
	if r.StoreDigest != "" {
		fmt.Fprintf(w, "  Store digest:  %s\n", r.StoreDigest)
	}
	if r.Faults > 0 {
		fmt.Fprintf(w, "  %d event(s) faulted during replay\n", r.Faults)
	}
	fmt.Fprintln(w)

	switch {
	case !r.Deterministic:
		fmt.Fprintln(w, "\u2717 Replay is not deterministic")
	case !r.Matches:
		fmt.Fprintln(w, "\u2717 Replayed state differs from the database")
	default:
		fmt.Fprintln(w, "\u2713 Replay verified")
	}
}
