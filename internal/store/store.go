// Package store is the persistence client for the gateway. It owns every
// SQL statement; callers see typed calls and sentinel errors only.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConstraint reports a rejected write (duplicate key, check violation).
	ErrConstraint = errors.New("constraint violation")
)

// Profile is one viewing profile under a user account.
type Profile struct {
	ProfileID string `json:"profileID"`
	PictureID string `json:"pictureID"`
}

// Media is one catalog entry. ChunkDir keys the on-disk segment directory.
type Media struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Producer    string  `json:"producer"`
	Rating      float64 `json:"rating"`
	ChunkDir    string  `json:"chunk_dir"`
}

// WatchState is per-(user,profile,media) playback progress and preferences.
// Upserts replace the whole record.
type WatchState struct {
	UserID            string  `json:"userID"`
	ProfileID         string  `json:"profileID"`
	MediaID           string  `json:"mediaID"`
	PercentageWatched float64 `json:"percentageWatched"`
	LanguageChosen    string  `json:"languageChosen"`
	SubtitlesChosen   string  `json:"subtitlesChosen"`
}

// Store is the narrow persistence surface the handlers depend on.
type Store interface {
	// UserSecrets returns the full userID->secret map for the credential
	// snapshot build.
	UserSecrets(ctx context.Context) (map[string]string, error)
	UserExists(ctx context.Context, userID string) (bool, error)

	// AddProfile returns ErrNotFound when the user does not exist and
	// ErrConstraint on a duplicate (userID, profileID) pair.
	AddProfile(ctx context.Context, userID, profileID, pictureID string) error
	// DeleteProfile reports false when no matching row existed.
	DeleteProfile(ctx context.Context, userID, profileID string) (bool, error)
	// Profiles lists a user's profiles in insertion order.
	Profiles(ctx context.Context, userID string) ([]Profile, error)

	MediaByID(ctx context.Context, id string) (Media, error)
	// CoverExists reports whether id names a collection or a media row.
	CoverExists(ctx context.Context, id string) (bool, error)
	// Catalog returns one map per collection, columns taken from the live
	// schema, each with a "medias" array of media row maps.
	Catalog(ctx context.Context) ([]map[string]any, error)

	UpsertWatchState(ctx context.Context, ws WatchState) error
	// WatchStatesByProfile returns the raw column maps for one profile.
	WatchStatesByProfile(ctx context.Context, userID, profileID string) ([]map[string]any, error)
	// WatchStatesByMedia returns the latest state per distinct user for
	// one media.
	WatchStatesByMedia(ctx context.Context, mediaID string) ([]WatchState, error)
}
