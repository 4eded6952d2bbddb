package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
)

// The catalog and watch-state exports are column-driven: they select every
// column the table currently has and key the JSON by column name, so schema
// additions show up in the dumps without code changes.

// Catalog returns every collection row with its media rows nested under
// "medias". The medias column holds a JSON array of media IDs; IDs that do
// not resolve to a media row are skipped.
func (db *DB) Catalog(ctx context.Context) ([]map[string]any, error) {
	collections, err := db.queryMaps(ctx, `SELECT * FROM collections ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, c := range collections {
		ids := decodeMediaIDs(c["medias"])
		medias := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			rows, err := db.queryMaps(ctx, `SELECT * FROM media WHERE id = ?`, id)
			if err != nil {
				return nil, err
			}
			medias = append(medias, rows...)
		}
		c["medias"] = medias
	}
	return collections, nil
}

func (db *DB) WatchStatesByProfile(ctx context.Context, userID, profileID string) ([]map[string]any, error) {
	return db.queryMaps(ctx,
		`SELECT * FROM watch_state WHERE user_id = ? AND profile_id = ?`, userID, profileID)
}

// queryMaps runs a query and scans every row into a column-name-keyed map.
func (db *DB) queryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			m[col] = normalizeValue(vals[i])
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case sql.RawBytes:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func encodeMediaIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMediaIDs(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil
	}
	return ids
}
