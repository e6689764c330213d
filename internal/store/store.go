// Package store persists Enola's durable state in SQLite: the anime
// watchlist, alarms, and the dedup ledgers used by the background jobs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Anime is one watchlist entry, keyed by its AniList id.
type Anime struct {
	ID       int
	Title    string
	ImageURL string
	Episodes int
	Status   string
	AddedAt  time.Time
}

// Alarm is a Spotify wake-up alarm. Days is a comma-separated list of
// lowercase French day names; empty means one-shot. LastFired guards
// against double-firing within the same day.
type Alarm struct {
	ID        int64
	Time      string // HH:MM
	Playlist  string
	Days      string
	Active    bool
	LastFired string // YYYY-MM-DD, empty if never
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		image_url TEXT,
		episodes INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'en cours',
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS alarms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TEXT NOT NULL,
		playlist TEXT NOT NULL DEFAULT 'Titres Likés',
		days TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		last_fired TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS seen_episodes (
		anime_id INTEGER NOT NULL,
		episode INTEGER NOT NULL,
		seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (anime_id, episode)
	);

	CREATE TABLE IF NOT EXISTS seen_codes (
		game TEXT NOT NULL,
		code TEXT NOT NULL,
		seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (game, code)
	);

	CREATE INDEX IF NOT EXISTS idx_alarms_time ON alarms(time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddAnime inserts a watchlist entry. Adding an id already present is
// an error so the caller can tell the user it is a duplicate.
func (s *Store) AddAnime(ctx context.Context, a Anime) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watchlist (id, title, image_url, episodes, status) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.ImageURL, a.Episodes, statusOrDefault(a.Status))
	if err != nil {
		return fmt.Errorf("add anime: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add anime: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("anime %d déjà dans la watchlist", a.ID)
	}
	return nil
}

func statusOrDefault(status string) string {
	if status == "" {
		return "en cours"
	}
	return status
}

// RemoveAnime deletes a watchlist entry, reporting whether it existed.
func (s *Store) RemoveAnime(ctx context.Context, id int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove anime: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove anime: %w", err)
	}
	return n > 0, nil
}

// SetAnimeStatus updates an entry's status, reporting whether it existed.
func (s *Store) SetAnimeStatus(ctx context.Context, id int, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE watchlist SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return false, fmt.Errorf("set anime status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set anime status: %w", err)
	}
	return n > 0, nil
}

// ListAnime returns the watchlist in insertion order.
func (s *Store) ListAnime(ctx context.Context) ([]Anime, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, image_url, episodes, status, added_at FROM watchlist ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list anime: %w", err)
	}
	defer rows.Close()

	var out []Anime
	for rows.Next() {
		var a Anime
		if err := rows.Scan(&a.ID, &a.Title, &a.ImageURL, &a.Episodes, &a.Status, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan anime: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAnime fetches one watchlist entry.
func (s *Store) GetAnime(ctx context.Context, id int) (Anime, bool, error) {
	var a Anime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, image_url, episodes, status, added_at FROM watchlist WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.ImageURL, &a.Episodes, &a.Status, &a.AddedAt)
	if err == sql.ErrNoRows {
		return Anime{}, false, nil
	}
	if err != nil {
		return Anime{}, false, fmt.Errorf("get anime: %w", err)
	}
	return a, true, nil
}

// AddAlarm schedules an alarm and returns its id.
func (s *Store) AddAlarm(ctx context.Context, a Alarm) (int64, error) {
	if a.Playlist == "" {
		a.Playlist = "Titres Likés"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (time, playlist, days) VALUES (?, ?, ?)`,
		a.Time, a.Playlist, a.Days)
	if err != nil {
		return 0, fmt.Errorf("add alarm: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add alarm: %w", err)
	}
	return id, nil
}

// ActiveAlarms lists alarms still armed, earliest time first.
func (s *Store) ActiveAlarms(ctx context.Context) ([]Alarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, playlist, days, active, last_fired FROM alarms WHERE active = 1 ORDER BY time`)
	if err != nil {
		return nil, fmt.Errorf("active alarms: %w", err)
	}
	defer rows.Close()

	var out []Alarm
	for rows.Next() {
		var a Alarm
		if err := rows.Scan(&a.ID, &a.Time, &a.Playlist, &a.Days, &a.Active, &a.LastFired); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlarmFired records that an alarm rang today. One-shot alarms
// (empty Days) are disarmed.
func (s *Store) MarkAlarmFired(ctx context.Context, id int64, day string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET last_fired = ?, active = CASE WHEN days = '' THEN 0 ELSE active END WHERE id = ?`,
		day, id)
	if err != nil {
		return fmt.Errorf("mark alarm fired: %w", err)
	}
	return nil
}

// RemoveAlarm disarms an alarm, reporting whether it existed.
func (s *Store) RemoveAlarm(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alarms SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("remove alarm: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove alarm: %w", err)
	}
	return n > 0, nil
}

// MarkEpisodeSeen records an episode notification. Returns true the
// first time a given (anime, episode) pair is seen.
func (s *Store) MarkEpisodeSeen(ctx context.Context, animeID, episode int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_episodes (anime_id, episode) VALUES (?, ?)`, animeID, episode)
	if err != nil {
		return false, fmt.Errorf("mark episode seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark episode seen: %w", err)
	}
	return n > 0, nil
}

// MarkCodeSeen records a promo code sighting. Returns true the first
// time a (game, code) pair is seen. The ledger is pruned so it cannot
// grow without bound.
func (s *Store) MarkCodeSeen(ctx context.Context, game, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_codes (game, code) VALUES (?, ?)`, game, code)
	if err != nil {
		return false, fmt.Errorf("mark code seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark code seen: %w", err)
	}
	if n > 0 {
		if err := s.pruneCodes(ctx, game, 200); err != nil {
			return true, err
		}
	}
	return n > 0, nil
}

// pruneCodes keeps only the most recent entries per game.
func (s *Store) pruneCodes(ctx context.Context, game string, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_codes WHERE game = ? AND code NOT IN (
			SELECT code FROM seen_codes WHERE game = ? ORDER BY seen_at DESC, code LIMIT ?
		)`, game, game, keep)
	if err != nil {
		return fmt.Errorf("prune codes: %w", err)
	}
	return nil
}
