// Package store persists match state to SQL and keeps a transactional outbox
// of match and tick events for the event bus.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/msg"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned by lookups for unknown rows
var ErrNotFound = errors.New("not found")

// Store writes matches, seats and ticks, each alongside an outbox event
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OutboxEvent is an event waiting to be published
type OutboxEvent struct {
	ID                  int64
	MatchID             string
	EventID             string
	Topic               string
	Key                 string
	PayloadJSON         string
	CreatedUnixMillis   int64
	PublishedUnixMillis sql.NullInt64
}

// MatchRecord is a persisted match row
type MatchRecord struct {
	MatchID        string
	Phase          string
	TickIntervalMs int
	MaxTicks       int
	StartPrice     float64
	UpdatedMillis  int64
}

// TickRecord is a persisted tick row
type TickRecord struct {
	MatchID string
	Tick    int
	TsMilli int64
	Price   float64
	Rows    []protocol.LeaderboardRow
}

// Open creates or opens a SQLite store at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenDriver(DriverSQLite, path)
}

// OpenDriver opens a store for driver ("sqlite" or "postgres")
func OpenDriver(driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer avoids SQLITE_BUSY between the worker and the publisher
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	outboxID := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		outboxID = "id BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			tick_interval_ms INTEGER NOT NULL,
			max_ticks INTEGER NOT NULL,
			start_price DOUBLE PRECISION NOT NULL,
			updated_unix_millis BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seats (
			match_id TEXT NOT NULL,
			seat_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			strategy TEXT NOT NULL,
			credits DOUBLE PRECISION NOT NULL,
			target DOUBLE PRECISION NOT NULL,
			note TEXT NOT NULL,
			PRIMARY KEY (match_id, seat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ticks (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			ts_unix_millis BIGINT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			rows_json TEXT NOT NULL,
			PRIMARY KEY (match_id, tick)
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			` + outboxID + `,
			match_id TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL,
			key TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis BIGINT NOT NULL,
			published_unix_millis BIGINT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
			ON outbox_events(published_unix_millis)
			WHERE published_unix_millis IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	return tx.ExecContext(ctx, s.rebind(query), args...)
}

// insertOutbox appends an event unless one with the same id exists
func (s *Store) insertOutbox(ctx context.Context, tx *sql.Tx, matchID, eventID, topic string, payload interface{}, now int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}
	_, err = s.exec(ctx, tx,
		`INSERT INTO outbox_events (match_id, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT (event_id) DO NOTHING`,
		matchID, eventID, topic, matchID, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// UpsertMatch records a match's config and phase
func (s *Store) UpsertMatch(ctx context.Context, cfg arena.MatchConfig, phase arena.Phase) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	_, err = s.exec(ctx, tx,
		`INSERT INTO matches (match_id, phase, tick_interval_ms, max_ticks, start_price, updated_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (match_id) DO UPDATE SET phase = excluded.phase, updated_unix_millis = excluded.updated_unix_millis`,
		cfg.ID, string(phase), cfg.TickIntervalMs(), cfg.MaxTicks, cfg.StartPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}

	ev := msg.MatchEventMsg{
		EventID:        "match-" + cfg.ID + "-" + string(phase),
		MatchID:        cfg.ID,
		Phase:          string(phase),
		TickIntervalMs: cfg.TickIntervalMs(),
		MaxTicks:       cfg.MaxTicks,
		StartPrice:     cfg.StartPrice,
		TsUnixMillis:   now,
	}
	if err := s.insertOutbox(ctx, tx, cfg.ID, ev.EventID, msg.TopicMatches, ev, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertSeat records a seat's latest state
func (s *Store) UpsertSeat(ctx context.Context, matchID string, seat arena.Seat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	_, err = s.exec(ctx, tx,
		`INSERT INTO seats (match_id, seat_id, agent_name, strategy, credits, target, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (match_id, seat_id) DO UPDATE SET
			credits = excluded.credits, target = excluded.target, note = excluded.note`,
		matchID, seat.ID, seat.AgentName, string(seat.Strategy), seat.Credits, seat.Target, seat.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert seat: %w", err)
	}

	ev := msg.MatchEventMsg{
		EventID: "seat-" + uuid.New().String(),
		MatchID: matchID,
		Seat: &msg.SeatMsg{
			SeatID:    seat.ID,
			AgentName: seat.AgentName,
			Strategy:  string(seat.Strategy),
			Credits:   seat.Credits,
			Target:    seat.Target,
			Note:      seat.Note,
		},
		TsUnixMillis: now,
	}
	if err := s.insertOutbox(ctx, tx, matchID, ev.EventID, msg.TopicMatches, ev, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InsertTick records a tick once; replays of the same tick are ignored
func (s *Store) InsertTick(ctx context.Context, matchID string, tick int, ts time.Time, price float64, rows []protocol.LeaderboardRow) error {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := s.exec(ctx, tx,
		`INSERT INTO ticks (match_id, tick, ts_unix_millis, price, rows_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (match_id, tick) DO NOTHING`,
		matchID, tick, ts.UnixMilli(), price, string(rowsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	seats := make([]msg.SeatMsg, len(rows))
	for i, r := range rows {
		seats[i] = msg.SeatMsg{SeatID: r.SeatID, AgentName: r.AgentName, Credits: r.Credits, Target: r.Target, Note: r.Note}
	}
	ev := msg.TickEventMsg{
		EventID:      msg.TickEventID(matchID, tick),
		MatchID:      matchID,
		Tick:         tick,
		Price:        price,
		Rows:         seats,
		TsUnixMillis: ts.UnixMilli(),
	}
	if err := s.insertOutbox(ctx, tx, matchID, ev.EventID, msg.TopicTicks, ev, s.now().UnixMilli()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMatch loads a match row
func (s *Store) GetMatch(ctx context.Context, matchID string) (MatchRecord, error) {
	var m MatchRecord
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT match_id, phase, tick_interval_ms, max_ticks, start_price, updated_unix_millis
		 FROM matches WHERE match_id = ?`), matchID,
	).Scan(&m.MatchID, &m.Phase, &m.TickIntervalMs, &m.MaxTicks, &m.StartPrice, &m.UpdatedMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return MatchRecord{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return MatchRecord{}, fmt.Errorf("failed to load match: %w", err)
	}
	return m, nil
}

// Seats loads a match's seats in seat order
func (s *Store) Seats(ctx context.Context, matchID string) ([]arena.Seat, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT seat_id, agent_name, strategy, credits, target, note
		 FROM seats WHERE match_id = ?`), matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer rows.Close()

	var seats []arena.Seat
	for rows.Next() {
		var st arena.Seat
		var strategy string
		if err := rows.Scan(&st.ID, &st.AgentName, &strategy, &st.Credits, &st.Target, &st.Note); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		st.Strategy = arena.Strategy(strategy)
		seats = append(seats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(seats, func(i, j int) bool { return seatLess(seats[i], seats[j]) })
	return seats, nil
}

// seatLess orders numeric seat ids numerically
func seatLess(a, b arena.Seat) bool {
	ai, aerr := strconv.Atoi(a.ID)
	bi, berr := strconv.Atoi(b.ID)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a.ID < b.ID
}

// Ticks loads a match's ticks in order
func (s *Store) Ticks(ctx context.Context, matchID string) ([]TickRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT match_id, tick, ts_unix_millis, price, rows_json
		 FROM ticks WHERE match_id = ? ORDER BY tick ASC`), matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []TickRecord
	for rows.Next() {
		var t TickRecord
		var rowsJSON string
		if err := rows.Scan(&t.MatchID, &t.Tick, &t.TsMilli, &t.Price, &rowsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		if err := json.Unmarshal([]byte(rowsJSON), &t.Rows); err != nil {
			return nil, fmt.Errorf("failed to decode tick %d rows: %w", t.Tick, err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// ListUnpublished returns unpublished outbox events, oldest first
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, match_id, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis
		 FROM outbox_events
		 WHERE published_unix_millis IS NULL
		 ORDER BY id ASC
		 LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.MatchID, &e.EventID, &e.Topic, &e.Key,
			&e.PayloadJSON, &e.CreatedUnixMillis, &e.PublishedUnixMillis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkPublished marks an event as published
func (s *Store) MarkPublished(ctx context.Context, eventID string, nowMillis int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		"UPDATE outbox_events SET published_unix_millis = ? WHERE event_id = ?"),
		nowMillis, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
