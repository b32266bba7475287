package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/geo"
	"github.com/roach88/mapsync/internal/mapengine"
)

// LayerInfo describes one engine layer.
// LogicalID is empty for layers outside the namespace.
type LayerInfo struct {
	ID        string `json:"id"`
	LogicalID string `json:"logical_id,omitempty"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Visible   bool   `json:"visible"`
}

// InspectResult summarizes the engine state held in the database.
type InspectResult struct {
	StyleURL        string      `json:"style_url"`
	Sources         []string    `json:"sources"`
	Layers          []LayerInfo `json:"layers"`
	Annotations     int         `json:"annotations"`
	Registry        int         `json:"registry"`
	Registered      []string    `json:"registered"`
	LastSeq         int64       `json:"last_seq"`
	StateDigest     string      `json:"state_digest"`
	Committed       bool        `json:"committed"`
	CommittedDigest string      `json:"committed_digest,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var geojson bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the engine state held in the database",
		Long: `Print the style, sources, layers in render order, annotation and
registry counts, the last journaled sequence number and the state digest.

With --geojson, print the committed source shapes as one GeoJSON
FeatureCollection instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, geojson, cmd)
		},
	}

	cmd.Flags().BoolVar(&geojson, "geojson", false, "Export committed source shapes as GeoJSON")

	return cmd
}

func runInspect(opts *RootOptions, geojson bool, cmd *cobra.Command) (err error) {
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

	if geojson {
		data, err := geo.Collection(s.committed.Sources).MarshalJSON()
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	snap, err := mapengine.Capture(ctx, s.store)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	digest, err := snap.Digest()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := InspectResult{
		StyleURL:        snap.StyleURL,
		Sources:         make([]string, 0, len(snap.Sources)),
		Layers:          make([]LayerInfo, 0, len(snap.Layers)),
		Annotations:     len(snap.Annotations),
		Registry:        s.rec.Registry().Len(),
		Registered:      make([]string, 0, s.rec.Registry().Len()),
		LastSeq:         s.lastSeq(),
		StateDigest:     digest,
		Committed:       s.hasScene,
		CommittedDigest: s.committedDigest,
	}
	for _, src := range snap.Sources {
		result.Sources = append(result.Sources, string(src.ID))
	}
	ns := s.rec.Namespace()
	for _, l := range snap.Layers {
		logical, _ := ns.ToLogicalID(l.ID)
		result.Layers = append(result.Layers, LayerInfo{
			ID:        string(l.ID),
			LogicalID: string(logical),
			Type:      l.Type,
			Source:    string(l.SourceID),
			Visible:   l.Visible,
		})
	}
	for _, id := range s.rec.Registry().IDs() {
		result.Registered = append(result.Registered, string(id))
	}

	return formatter.Success(result, func(w io.Writer) { writeInspectResult(w, result) })
}

func writeInspectResult(w io.Writer, r InspectResult) {
	style := r.StyleURL
	if style == "" {
		style = "(none)"
	}
	fmt.Fprintf(w, "Style:       %s\n", style)
	fmt.Fprintf(w, "Sources:     %d\n", len(r.Sources))
	for _, id := range r.Sources {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "Layers:      %d\n", len(r.Layers))
	for _, l := range r.Layers {
		vis := "visible"
		if !l.Visible {
			vis = "hidden"
		}
		owner := ""
		if l.LogicalID == "" {
			owner = ", foreign"
		}
		fmt.Fprintf(w, "  %s (%s on %s, %s%s)\n", l.ID, l.Type, l.Source, vis, owner)
	}
	fmt.Fprintf(w, "Annotations: %d (%d registered)\n", r.Annotations, r.Registry)
	for _, id := range r.Registered {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "Last seq:    %d\n", r.LastSeq)
	fmt.Fprintf(w, "Digest:      %s\n", r.StateDigest)
	if !r.Committed {
		fmt.Fprintln(w, "No scene committed")
	}
}
