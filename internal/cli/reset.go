package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
)

// resetOrder tears layers down before the sources they draw from.
var resetOrder = []reconcile.Collection{
	reconcile.CollectionLayers,
	reconcile.CollectionSources,
	reconcile.CollectionAnnotations,
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <sources|layers|annotations|all>",
		Short: "Remove everything mapsync owns in a collection",
		Long: `Tear down every engine entity inside the namespace for one collection,
or for all of them. Entities outside the namespace are left alone. The
collection is cleared from the committed scene, so the next apply adds
it back.

Resetting sources also removes the owned layers drawn from them.

Exit codes:
  0 - Collection reset
  1 - The engine reported a fault
  2 - Unknown collection or database error`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"sources", "layers", "annotations", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runReset(opts *RootOptions, target string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var colls []reconcile.Collection
	switch target {
	case "all":
		colls = resetOrder
	case string(reconcile.CollectionSources), string(reconcile.CollectionLayers), string(reconcile.CollectionAnnotations):
		colls = []reconcile.Collection{reconcile.Collection(target)}
	default:
		return formatter.fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("unknown collection %q, want sources, layers, annotations or all", target), nil)
	}

	targets := make([]string, len(colls))
	for i, c := range colls {
		targets[i] = string(c)
	}

	return runMutation(opts, cmd, string(feed.ActionReset), targets,
		func(_ context.Context, s *session) ([]feed.Event, ir.Scene, error) {
			next := s.committed
			events := make([]feed.Event, len(colls))
			for i, c := range colls {
				events[i] = feed.Reset(c)
				switch c {
				case reconcile.CollectionSources:
					next.Sources = nil
				case reconcile.CollectionLayers:
					next.Layers = nil
				case reconcile.CollectionAnnotations:
					next.Annotations = nil
				}
			}
			return events, next, nil
		})
}
