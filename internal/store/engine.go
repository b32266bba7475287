package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

const metaStyleURL = "style_url"

// SetStyleURL implements mapengine.Engine.
func (s *Store) SetStyleURL(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaStyleURL, url)
	if err != nil {
		return fmt.Errorf("set style url: %w", err)
	}
	return nil
}

// StyleURL implements mapengine.Engine. An unset style reads as "".
func (s *Store) StyleURL(ctx context.Context) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM engine_meta WHERE key = ?`, metaStyleURL).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read style url: %w", err)
	}
	return url, nil
}

// Source implements mapengine.Engine.
func (s *Store) Source(ctx context.Context, id namespace.EngineID) (mapengine.SourceState, bool, error) {
	var shape sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT shape FROM sources WHERE id = ?`, string(id)).Scan(&shape)
	if errors.Is(err, sql.ErrNoRows) {
		return mapengine.SourceState{}, false, nil
	}
	if err != nil {
		return mapengine.SourceState{}, false, fmt.Errorf("read source %s: %w", id, err)
	}
	g, err := unmarshalShape(shape)
	if err != nil {
		return mapengine.SourceState{}, false, fmt.Errorf("read source %s: %w", id, err)
	}
	return mapengine.SourceState{ID: id, Shape: g}, true, nil
}

// Sources implements mapengine.Engine. Sources are returned in creation order.
func (s *Store) Sources(ctx context.Context) ([]mapengine.SourceState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, shape FROM sources ORDER BY ord ASC`)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	defer rows.Close()

	out := []mapengine.SourceState{}
	for rows.Next() {
		var id string
		var shape sql.NullString
		if err := rows.Scan(&id, &shape); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		g, err := unmarshalShape(shape)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", id, err)
		}
		out = append(out, mapengine.SourceState{ID: namespace.EngineID(id), Shape: g})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// AddSource implements mapengine.Engine.
func (s *Store) AddSource(ctx context.Context, id namespace.EngineID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sources WHERE id = ?`, string(id)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("add source %s: %w", id, err)
		}
		if exists > 0 {
			return fmt.Errorf("add source %s: %w", id, mapengine.ErrSourceExists)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sources (id, shape, ord)
			VALUES (?, NULL, (SELECT COALESCE(MAX(ord), 0) + 1 FROM sources))
		`, string(id))
		if err != nil {
			return fmt.Errorf("add source %s: %w", id, err)
		}
		return nil
	})
}

// SetSourceShape implements mapengine.Engine. An absent source is a no-op.
func (s *Store) SetSourceShape(ctx context.Context, id namespace.EngineID, shape ir.Geometry) error {
	data, err := marshalShape(shape)
	if err != nil {
		return fmt.Errorf("set shape %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sources SET shape = ? WHERE id = ?`, data, string(id)); err != nil {
		return fmt.Errorf("set shape %s: %w", id, err)
	}
	return nil
}

// RemoveSource implements mapengine.Engine.
func (s *Store) RemoveSource(ctx context.Context, id namespace.EngineID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("remove source %s: %w", id, err)
	}
	return nil
}

const layerColumns = `id, type, source_id, visible, min_zoom, max_zoom, paint, layout`

type scanner interface {
	Scan(dest ...any) error
}

func scanLayer(row scanner) (mapengine.NativeLayer, error) {
	var (
		l             mapengine.NativeLayer
		id, sourceID  string
		visible       int
		paint, layout string
	)
	if err := row.Scan(&id, &l.Type, &sourceID, &visible, &l.MinZoom, &l.MaxZoom, &paint, &layout); err != nil {
		return mapengine.NativeLayer{}, err
	}
	l.ID = namespace.EngineID(id)
	l.SourceID = namespace.EngineID(sourceID)
	l.Visible = visible == 1

	var err error
	if l.Paint, err = unmarshalProps(paint); err != nil {
		return mapengine.NativeLayer{}, fmt.Errorf("layer %s paint: %w", id, err)
	}
	if l.Layout, err = unmarshalProps(layout); err != nil {
		return mapengine.NativeLayer{}, fmt.Errorf("layer %s layout: %w", id, err)
	}
	return l, nil
}

// Layer implements mapengine.Engine.
func (s *Store) Layer(ctx context.Context, id namespace.EngineID) (mapengine.NativeLayer, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+layerColumns+` FROM layers WHERE id = ?`, string(id))
	l, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mapengine.NativeLayer{}, false, nil
	}
	if err != nil {
		return mapengine.NativeLayer{}, false, fmt.Errorf("read layer %s: %w", id, err)
	}
	return l, true, nil
}

// Layers implements mapengine.Engine.
func (s *Store) Layers(ctx context.Context) ([]mapengine.NativeLayer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+layerColumns+` FROM layers ORDER BY z ASC`)
	if err != nil {
		return nil, fmt.Errorf("read layers: %w", err)
	}
	defer rows.Close()

	out := []mapengine.NativeLayer{}
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layers: %w", err)
	}
	return out, nil
}

// AddLayer implements mapengine.Engine. New layers draw on top.
func (s *Store) AddLayer(ctx context.Context, layer mapengine.NativeLayer) error {
	paint, err := marshalProps(layer.Paint)
	if err != nil {
		return fmt.Errorf("add layer %s: %w", layer.ID, err)
	}
	layout, err := marshalProps(layer.Layout)
	if err != nil {
		return fmt.Errorf("add layer %s: %w", layer.ID, err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM layers WHERE id = ?`, string(layer.ID)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("add layer %s: %w", layer.ID, err)
		}
		if exists > 0 {
			return fmt.Errorf("add layer %s: %w", layer.ID, mapengine.ErrLayerExists)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO layers (id, type, source_id, visible, min_zoom, max_zoom, paint, layout, z)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(z), 0) + 1 FROM layers))
		`, string(layer.ID), layer.Type, string(layer.SourceID), boolToInt(layer.Visible),
			layer.MinZoom, layer.MaxZoom, paint, layout)
		if err != nil {
			return fmt.Errorf("add layer %s: %w", layer.ID, err)
		}
		return nil
	})
}

// RemoveLayer implements mapengine.Engine.
func (s *Store) RemoveLayer(ctx context.Context, id namespace.EngineID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("remove layer %s: %w", id, err)
	}
	return nil
}

// SetLayerVisibility implements mapengine.Engine.
func (s *Store) SetLayerVisibility(ctx context.Context, id namespace.EngineID, visible bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE layers SET visible = ? WHERE id = ?`, boolToInt(visible), string(id)); err != nil {
		return fmt.Errorf("set visibility %s: %w", id, err)
	}
	return nil
}

// AddMarker implements mapengine.Engine.
func (s *Store) AddMarker(ctx context.Context, opts mapengine.MarkerOptions) (mapengine.Handle, error) {
	a := mapengine.AnnotationState{
		Handle:  s.handles.Generate(),
		Type:    mapengine.AnnotationMarker,
		Title:   opts.Title,
		Snippet: opts.Snippet,
		Points:  []ir.Coordinate{opts.Position},
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertAnnotation(ctx, tx, a)
	})
	if err != nil {
		return "", fmt.Errorf("add marker: %w", err)
	}
	return a.Handle, nil
}

// AddPolyline implements mapengine.Engine.
func (s *Store) AddPolyline(ctx context.Context, opts mapengine.PolylineOptions) (mapengine.Handle, error) {
	handles, err := s.addPolylines(ctx, []mapengine.PolylineOptions{opts})
	if err != nil {
		return "", fmt.Errorf("add polyline: %w", err)
	}
	return handles[0], nil
}

// AddPolylines implements mapengine.Engine.
// All polylines are inserted in one transaction: either every handle is
// returned or none is stored.
func (s *Store) AddPolylines(ctx context.Context, opts []mapengine.PolylineOptions) ([]mapengine.Handle, error) {
	handles, err := s.addPolylines(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("add polylines: %w", err)
	}
	return handles, nil
}

func (s *Store) addPolylines(ctx context.Context, opts []mapengine.PolylineOptions) ([]mapengine.Handle, error) {
	handles := make([]mapengine.Handle, len(opts))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, o := range opts {
			handles[i] = s.handles.Generate()
			a := mapengine.AnnotationState{
				Handle: handles[i],
				Type:   mapengine.AnnotationPolyline,
				Points: o.Points,
			}
			if err := insertAnnotation(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

func insertAnnotation(ctx context.Context, tx *sql.Tx, a mapengine.AnnotationState) error {
	points, err := marshalPoints(a.Points)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO annotations (handle, type, title, snippet, points, ord)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(ord), 0) + 1 FROM annotations))
	`, string(a.Handle), string(a.Type), a.Title, a.Snippet, points)
	if err != nil {
		return fmt.Errorf("insert annotation %s: %w", a.Handle, err)
	}
	return nil
}

// RemoveAnnotations implements mapengine.Engine. Unknown handles are ignored.
func (s *Store) RemoveAnnotations(ctx context.Context, handles []mapengine.Handle) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM annotations WHERE handle = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, h := range handles {
			if _, err := stmt.ExecContext(ctx, string(h)); err != nil {
				return fmt.Errorf("delete %s: %w", h, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove annotations: %w", err)
	}
	return nil
}

// RemoveAllAnnotations implements mapengine.Engine.
func (s *Store) RemoveAllAnnotations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM annotations`); err != nil {
		return fmt.Errorf("remove all annotations: %w", err)
	}
	return nil
}

// Annotations implements mapengine.Engine.
func (s *Store) Annotations(ctx context.Context) ([]mapengine.AnnotationState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, type, title, snippet, points
		FROM annotations
		ORDER BY ord ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	defer rows.Close()

	out := []mapengine.AnnotationState{}
	for rows.Next() {
		var handle, typ, points string
		var a mapengine.AnnotationState
		if err := rows.Scan(&handle, &typ, &a.Title, &a.Snippet, &points); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Handle = mapengine.Handle(handle)
		a.Type = mapengine.AnnotationType(typ)
		if a.Points, err = unmarshalPoints(points); err != nil {
			return nil, fmt.Errorf("annotation %s: %w", handle, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}

var _ mapengine.Engine = (*Store)(nil)
