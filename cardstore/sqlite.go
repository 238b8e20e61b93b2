package cardstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gocardgate/cardid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is a Store backed by a modernc.org/sqlite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "./data/gocardgate.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

type migration struct {
	version int
	name    string
	sql     string
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ms INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var ms []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		v, err := strconv.Atoi(strings.SplitN(e.Name(), "_", 2)[0])
		if err != nil {
			return fmt.Errorf("migration %s: bad version prefix", e.Name())
		}
		b, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		ms = append(ms, migration{version: v, name: e.Name(), sql: string(b)})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })

	for _, m := range ms {
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM schema_migrations WHERE version = ?;", m.version,
		).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if n > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations(version, applied_at_ms) VALUES(?, ?);",
			m.version, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (Card, error) {
	var (
		c                  Card
		id                 string
		authorized         int
		createdMs, updated int64
	)
	if err := row.Scan(&id, &c.Name, &authorized, &createdMs, &updated); err != nil {
		return Card{}, err
	}
	c.ID = cardid.ID(id)
	c.Authorized = authorized != 0
	c.CreatedAt = fromMs(createdMs)
	c.UpdatedAt = fromMs(updated)
	return c, nil
}

const cardColumns = "card_id, name, authorized, created_at_ms, updated_at_ms"

func (s *SQLite) Lookup(ctx context.Context, id cardid.ID) (Card, error) {
	c, err := scanCard(s.db.QueryRowContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE card_id = ?;", string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, fmt.Errorf("Lookup: %w", err)
	}
	return c, nil
}

func (s *SQLite) List(ctx context.Context) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+cardColumns+" FROM cards ORDER BY card_id;")
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Add(ctx context.Context, c Card) (Card, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO cards(card_id, name, authorized, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(card_id) DO NOTHING;`,
		string(c.ID), c.Name, boolInt(c.Authorized), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Card{}, fmt.Errorf("Add: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Card{}, ErrExists
	}
	c.CreatedAt = fromMs(now.UnixMilli())
	c.UpdatedAt = c.CreatedAt
	return c, nil
}

func (s *SQLite) Delete(ctx context.Context, id cardid.ID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE card_id = ?;", string(id))
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) SetAuthorized(ctx context.Context, id cardid.ID, authorized bool) (Card, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cards SET authorized = ?, updated_at_ms = ? WHERE card_id = ?;",
		boolInt(authorized), s.now().UnixMilli(), string(id))
	if err != nil {
		return Card{}, fmt.Errorf("SetAuthorized: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Card{}, ErrNotFound
	}
	return s.Lookup(ctx, id)
}

func (s *SQLite) RecordAccess(ctx context.Context, ev AccessEvent) (AccessEvent, error) {
	ev = prepareEvent(ev, s.now())
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO access_events(event_id, card_id, authorized, remote, at_ms)
VALUES (?, ?, ?, ?, ?);`,
		ev.ID, ev.CardID, boolInt(ev.Authorized), ev.Remote, ev.At.UnixMilli()); err != nil {
		return AccessEvent{}, fmt.Errorf("RecordAccess: %w", err)
	}
	ev.At = fromMs(ev.At.UnixMilli())
	return ev, nil
}

func (s *SQLite) RecentAccess(ctx context.Context, limit int) ([]AccessEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, card_id, authorized, remote, at_ms
FROM access_events
ORDER BY at_ms DESC, rowid DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentAccess: %w", err)
	}
	defer rows.Close()

	var out []AccessEvent
	for rows.Next() {
		var (
			ev         AccessEvent
			authorized int
			atMs       int64
		)
		if err := rows.Scan(&ev.ID, &ev.CardID, &authorized, &ev.Remote, &atMs); err != nil {
			return nil, fmt.Errorf("RecentAccess scan: %w", err)
		}
		ev.Authorized = authorized != 0
		ev.At = fromMs(atMs)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) ClearAccess(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM access_events;"); err != nil {
		return fmt.Errorf("ClearAccess: %w", err)
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(authorized), 0) FROM cards;",
	).Scan(&st.Cards, &st.AuthorizedCard); err != nil {
		return Stats{}, fmt.Errorf("Stats cards: %w", err)
	}

	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(authorized), 0), MAX(at_ms) FROM access_events;",
	).Scan(&st.Accesses, &st.Granted, &last); err != nil {
		return Stats{}, fmt.Errorf("Stats events: %w", err)
	}
	st.Denied = st.Accesses - st.Granted
	if last.Valid {
		t := fromMs(last.Int64)
		st.LastAccess = &t
	}
	return st, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
