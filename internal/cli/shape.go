package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/geo"
	"github.com/roach88/mapsync/internal/ir"
)

// NewShapeCommand creates the shape command.
func NewShapeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shape <source-id> [geojson-file]",
		Short: "Replace the shape of a committed source",
		Long: `Set the shape of one source of the committed scene from a GeoJSON
file. The file may hold a FeatureCollection with at most one feature, a
Feature or a bare geometry. Use "-" to read standard input. Without a file
the shape is cleared.

Exit codes:
  0 - Shape updated
  1 - The engine reported a fault
  2 - Unknown source, unreadable GeoJSON or database error`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runShape(rootOpts, args[0], path, cmd)
		},
	}

	return cmd
}

func runShape(opts *RootOptions, sourceID, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var shape ir.Geometry
	if path != "" {
		data, err := readInput(cmd, path)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
		}
		if shape, err = geo.Decode(data); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
		}
	}

	id := ir.LogicalID(sourceID)
	return runMutation(opts, cmd, string(feed.ActionShape), []string{sourceID},
		func(ctx context.Context, s *session) ([]feed.Event, ir.Scene, error) {
			i := slices.IndexFunc(s.committed.Sources, func(src ir.Source) bool { return src.ID == id })
			if i < 0 {
				return nil, ir.Scene{}, fmt.Errorf("source %q: %w", id, errNotCommitted)
			}
			eid := s.rec.Namespace().ToEngineID(id)
			if _, found, err := s.store.Source(ctx, eid); err != nil {
				return nil, ir.Scene{}, fmt.Errorf("lookup source %s: %w", eid, err)
			} else if !found {
				return nil, ir.Scene{}, fmt.Errorf("source %q: %w", id, errNotInEngine)
			}
			next := s.committed
			next.Sources = slices.Clone(next.Sources)
			next.Sources[i].Shape = shape
			return []feed.Event{feed.ShapeUpdated(next.Sources[i])}, next, nil
		})
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
