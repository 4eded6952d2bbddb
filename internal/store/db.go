package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/crypto/bcrypt"
)

// DB implements Store on an embedded DuckDB database file.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// An empty path opens an in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR PRIMARY KEY,
			password VARCHAR NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS profiles_seq`,
		`CREATE TABLE IF NOT EXISTS profiles (
			seq BIGINT DEFAULT nextval('profiles_seq'),
			user_id VARCHAR NOT NULL,
			profile_id VARCHAR NOT NULL,
			picture_id VARCHAR,
			PRIMARY KEY (user_id, profile_id)
		)`,
		`CREATE TABLE IF NOT EXISTS collections (
			id VARCHAR PRIMARY KEY,
			collection_title VARCHAR,
			medias VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS media (
			id VARCHAR PRIMARY KEY,
			title VARCHAR,
			description VARCHAR,
			producer VARCHAR,
			rating DOUBLE,
			chunk_dir VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS watch_state (
			user_id VARCHAR NOT NULL,
			profile_id VARCHAR NOT NULL,
			media_id VARCHAR NOT NULL,
			percentage_watched DOUBLE NOT NULL CHECK (percentage_watched BETWEEN 0 AND 100),
			language_chosen VARCHAR,
			subtitles_chosen VARCHAR,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, profile_id, media_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a user with a bcrypt-hashed secret.
func (db *DB) CreateUser(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO users (id, password) VALUES (?, ?)`, userID, string(hash))
	return mapWriteErr(err)
}

func (db *DB) UserSecrets(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, password FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	secrets := make(map[string]string)
	for rows.Next() {
		var id, secret string
		if err := rows.Scan(&id, &secret); err != nil {
			return nil, err
		}
		secrets[id] = secret
	}
	return secrets, rows.Err()
}

func (db *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE id = ?`, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) AddProfile(ctx context.Context, userID, profileID, pictureID string) error {
	exists, err := db.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id, profile_id, picture_id) VALUES (?, ?, ?)`,
		userID, profileID, pictureID)
	return mapWriteErr(err)
}

func (db *DB) DeleteProfile(ctx context.Context, userID, profileID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM profiles WHERE user_id = ? AND profile_id = ?`, userID, profileID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) Profiles(ctx context.Context, userID string) ([]Profile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT profile_id, picture_id FROM profiles WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		var picture sql.NullString
		if err := rows.Scan(&p.ProfileID, &picture); err != nil {
			return nil, err
		}
		p.PictureID = picture.String
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// InsertMedia writes one catalog entry. Used by the import tooling and tests.
func (db *DB) InsertMedia(ctx context.Context, m Media) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO media (id, title, description, producer, rating, chunk_dir) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Description, m.Producer, m.Rating, m.ChunkDir)
	return mapWriteErr(err)
}

// InsertCollection writes one collection row; mediaIDs is stored as a JSON
// array in the medias column.
func (db *DB) InsertCollection(ctx context.Context, id, title string, mediaIDs []string) error {
	medias, err := encodeMediaIDs(mediaIDs)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO collections (id, collection_title, medias) VALUES (?, ?, ?)`,
		id, title, medias)
	return mapWriteErr(err)
}

func (db *DB) MediaByID(ctx context.Context, id string) (Media, error) {
	var m Media
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, description, producer, rating, chunk_dir FROM media WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.Producer, &m.Rating, &m.ChunkDir)
	if errors.Is(err, sql.ErrNoRows) {
		return Media{}, fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Media{}, err
	}
	return m, nil
}

// CoverExists checks collections first, then media, matching how cover art
// is keyed on disk.
func (db *DB) CoverExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM collections WHERE id = ?) + (SELECT count(*) FROM media WHERE id = ?)`,
		id, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) UpsertWatchState(ctx context.Context, ws WatchState) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO watch_state (user_id, profile_id, media_id, percentage_watched, language_chosen, subtitles_chosen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, profile_id, media_id) DO UPDATE SET
			percentage_watched = excluded.percentage_watched,
			language_chosen = excluded.language_chosen,
			subtitles_chosen = excluded.subtitles_chosen,
			updated_at = excluded.updated_at`,
		ws.UserID, ws.ProfileID, ws.MediaID, ws.PercentageWatched, ws.LanguageChosen, ws.SubtitlesChosen, time.Now())
	return mapWriteErr(err)
}

func (db *DB) WatchStatesByMedia(ctx context.Context, mediaID string) ([]WatchState, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, profile_id, media_id, percentage_watched, language_chosen, subtitles_chosen
		FROM watch_state
		WHERE media_id = ?
		QUALIFY row_number() OVER (PARTITION BY user_id ORDER BY updated_at DESC) = 1`,
		mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make([]WatchState, 0)
	for rows.Next() {
		var ws WatchState
		if err := rows.Scan(&ws.UserID, &ws.ProfileID, &ws.MediaID, &ws.PercentageWatched, &ws.LanguageChosen, &ws.SubtitlesChosen); err != nil {
			return nil, err
		}
		states = append(states, ws)
	}
	return states, rows.Err()
}

// mapWriteErr folds driver-level write rejections into ErrConstraint so no
// DuckDB error types leak upward.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "constraint") || strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
	}
	return err
}
