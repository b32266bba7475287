package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrSeqConflict is returned when a journal sequence number is reused with a
// different event.
var ErrSeqConflict = errors.New("journal sequence number already used")

// EventRecord is one journaled change-feed event.
// Payload is the canonical JSON produced by feed.EncodePayload.
type EventRecord struct {
	Seq        int64
	Collection string
	Action     string
	Payload    []byte
}

// AppendEvent journals a dispatched event.
//
// Appending the same (seq, event) twice is a no-op, so a dispatcher that
// retries after a crash does not duplicate history. Reusing a seq for a
// different event returns ErrSeqConflict.
func (s *Store) AppendEvent(ctx context.Context, seq int64, collection, action string, payload []byte) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_events (seq, collection, action, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, seq, collection, action, string(payload))
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	if n == 1 {
		return nil
	}

	var existing EventRecord
	var body string
	err = s.db.QueryRowContext(ctx, `
		SELECT collection, action, payload FROM feed_events WHERE seq = ?
	`, seq).Scan(&existing.Collection, &existing.Action, &body)
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	if existing.Collection != collection || existing.Action != action || !bytes.Equal([]byte(body), payload) {
		return fmt.Errorf("append event %d: %w", seq, ErrSeqConflict)
	}
	return nil
}

// Events returns the journal in sequence order.
func (s *Store) Events(ctx context.Context) ([]EventRecord, error) {
	return s.EventsAfter(ctx, 0)
}

// EventsAfter returns journaled events with seq > after, in sequence order.
func (s *Store) EventsAfter(ctx context.Context, after int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, collection, action, payload
		FROM feed_events
		WHERE seq > ?
		ORDER BY seq ASC
	`, after)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	out := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		var body string
		if err := rows.Scan(&rec.Seq, &rec.Collection, &rec.Action, &body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = []byte(body)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest journaled sequence number, or 0 when the
// journal is empty. A dispatcher clock resumed with NewClockAt(LastSeq)
// continues the sequence without gaps.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM feed_events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}
