package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
)

// CommittedScene is the last scene applied to the store.
type CommittedScene struct {
	Scene  ir.Scene
	Digest string
}

// SaveScene records s as the committed scene, replacing any previous one.
func (s *Store) SaveScene(ctx context.Context, scene ir.Scene) error {
	data, err := ir.MarshalScene(scene)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	digest, err := ir.DocumentDigest(ir.SceneDocument(scene))
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO committed_scene (id, scene, digest) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET scene = excluded.scene, digest = excluded.digest
	`, string(data), digest)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	return nil
}

// LoadScene returns the committed scene. ok is false when nothing has been
// committed yet; the zero CommittedScene then stands for the empty scene.
func (s *Store) LoadScene(ctx context.Context) (CommittedScene, bool, error) {
	var data, digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT scene, digest FROM committed_scene WHERE id = 1`).Scan(&data, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return CommittedScene{}, false, nil
	}
	if err != nil {
		return CommittedScene{}, false, fmt.Errorf("load scene: %w", err)
	}
	scene, err := ir.UnmarshalScene([]byte(data))
	if err != nil {
		return CommittedScene{}, false, fmt.Errorf("load scene: %w", err)
	}
	return CommittedScene{Scene: scene, Digest: digest}, true, nil
}

// SaveRegistry replaces the persisted annotation registry with snap.
// Handles keep their position so multi-polyline entries reload in order.
func (s *Store) SaveRegistry(ctx context.Context, snap map[ir.LogicalID][]mapengine.Handle) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM registry`); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO registry (logical_id, position, handle) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ids := make([]ir.LogicalID, 0, len(snap))
		for id := range snap {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			for pos, h := range snap[id] {
				if _, err := stmt.ExecContext(ctx, string(id), pos, string(h)); err != nil {
					return fmt.Errorf("insert %s: %w", id, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// LoadRegistry returns the persisted annotation registry.
func (s *Store) LoadRegistry(ctx context.Context) (map[ir.LogicalID][]mapengine.Handle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT logical_id, handle FROM registry
		ORDER BY logical_id COLLATE BINARY ASC, position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	snap := make(map[ir.LogicalID][]mapengine.Handle)
	for rows.Next() {
		var id, handle string
		if err := rows.Scan(&id, &handle); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		lid := ir.LogicalID(id)
		snap[lid] = append(snap[lid], mapengine.Handle(handle))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry: %w", err)
	}
	return snap, nil
}
