// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/google/uuid"
)

// Session is one capture run
type Session struct {
	ID        uuid.UUID
	Source    string
	Note      string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is open
	Frames    int       // filled by Sessions and Session
}

// Open reports whether the session has not been ended
func (s Session) Open() bool {
	return s.EndedAt.IsZero()
}

// Duration returns the session length, or zero while it is open
func (s Session) Duration() time.Duration {
	if s.Open() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Record is one stored sample
type Record struct {
	Seq           uint64
	Time          time.Time
	Elapsed       time.Duration
	Frame         fs9922.Frame
	Value         float64 // +Inf on overflow
	ValueUnscaled float64
	Overflow      bool
	Unit          string
	Prefix        string
	Power         string
	MinMax        string
	Status        []string
	Anomalies     []string
}

// Measurement decodes the stored frame
func (r Record) Measurement() fs9922.Measurement {
	return fs9922.Decode(r.Frame)
}

// CreateSession starts a new session
func (s *Store) CreateSession(ctx context.Context, source, note string, startedAt time.Time) (Session, error) {
	sess := Session{
		ID:        uuid.New(),
		Source:    source,
		Note:      note,
		StartedAt: startedAt.Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, source, note, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID.String(), sess.Source, sess.Note, sess.StartedAt.UnixMilli())
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	s.log.WithField("session", sess.ID).Info("session created")
	return sess, nil
}

// EndSession records the end time of a session
func (s *Store) EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		endedAt.UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteSession removes a session and its samples
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return requireRow(res, id)
}

const sessionColumns = `s.session_id, s.source, s.note, s.started_at, s.ended_at,
	(SELECT COUNT(*) FROM samples WHERE samples.session_id = s.session_id)`

// Session returns one session
func (s *Store) Session(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// Sessions lists all sessions, most recent first
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC, s.session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		id      string
		sess    Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&id, &sess.Source, &sess.Note, &started, &ended, &sess.Frames); err != nil {
		return Session{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Session{}, fmt.Errorf("corrupt session id %q: %w", id, err)
	}
	sess.ID = parsed
	sess.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		sess.EndedAt = time.UnixMilli(ended.Int64)
	}
	return sess, nil
}

// InsertSample stores one captured sample
func (s *Store) InsertSample(ctx context.Context, id uuid.UUID, sample capture.Sample) error {
	m := sample.Measurement
	var value, unscaled sql.NullFloat64
	if !m.Overflow() {
		value = sql.NullFloat64{Float64: m.Value(), Valid: true}
		unscaled = sql.NullFloat64{Float64: m.ValueUnscaled(), Valid: true}
	}
	anomalies := make([]string, len(sample.Anomalies))
	for i, a := range sample.Anomalies {
		anomalies[i] = a.Type.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (session_id, seq, ts_ms, elapsed_ms, raw, value, value_unscaled,
			overflow, unit, prefix, power, minmax, status, anomalies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), sample.Seq, sample.Time.UnixMilli(), sample.Elapsed.Milliseconds(),
		sample.Frame.Bytes(), value, unscaled, m.Overflow(),
		m.Unit().String(), m.Prefix().String(), m.Power().String(), m.MinMax().String(),
		strings.Join(m.StatusWords(), " "), strings.Join(anomalies, " "))
	if err != nil {
		return fmt.Errorf("failed to insert sample %d: %w", sample.Seq, err)
	}
	return nil
}

// Samples returns every sample of a session in capture order
func (s *Store) Samples(ctx context.Context, id uuid.UUID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts_ms, elapsed_ms, raw, value, value_unscaled, overflow,
			unit, prefix, power, minmax, status, anomalies
		FROM samples WHERE session_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                 Record
			ts, elapsed       int64
			raw               []byte
			value, unscaled   sql.NullFloat64
			status, anomalies string
		)
		if err := rows.Scan(&r.Seq, &ts, &elapsed, &raw, &value, &unscaled, &r.Overflow,
			&r.Unit, &r.Prefix, &r.Power, &r.MinMax, &status, &anomalies); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		frame, err := fs9922.NewFrame(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt frame in sample %d: %w", r.Seq, err)
		}
		r.Frame = frame
		r.Time = time.UnixMilli(ts)
		r.Elapsed = time.Duration(elapsed) * time.Millisecond
		r.Value, r.ValueUnscaled = math.Inf(1), math.Inf(1)
		if value.Valid {
			r.Value = value.Float64
		}
		if unscaled.Valid {
			r.ValueUnscaled = unscaled.Float64
		}
		r.Status = strings.Fields(status)
		r.Anomalies = strings.Fields(anomalies)
		records = append(records, r)
	}
	return records, rows.Err()
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Recorder stores every sample of a capture into one session
type Recorder struct {
	ctx     context.Context
	store   *Store
	session Session
}

var _ capture.Consumer = (*Recorder)(nil)

// NewRecorder returns a capture consumer that writes into session
func (s *Store) NewRecorder(ctx context.Context, session Session) *Recorder {
	return &Recorder{ctx: ctx, store: s, session: session}
}

// Consume implements capture.Consumer
func (r *Recorder) Consume(sample capture.Sample) error {
	return r.store.InsertSample(r.ctx, r.session.ID, sample)
}

// Session returns the session being recorded
func (r *Recorder) Session() Session {
	return r.session
}
