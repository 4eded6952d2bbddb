package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ghoststream/internal/auth"
	"ghoststream/internal/manifest"
	"ghoststream/internal/metrics"
	"ghoststream/internal/store"
	"ghoststream/internal/stream"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

// internalError hides the underlying failure from the client and logs it
// under a correlation id the client can quote back.
func internalError(w http.ResponseWriter, log zerolog.Logger, r *http.Request, err error) {
	id := uuid.NewString()
	log.Error().Err(err).Str("error_id", id).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"status":   "error",
		"message":  "internal error",
		"error_id": id,
	})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeFileError maps the stream package's failure modes onto HTTP codes.
func writeFileError(w http.ResponseWriter, log zerolog.Logger, r *http.Request, err error) {
	switch {
	case errors.Is(err, stream.ErrInvalidPath):
		errorJSON(w, http.StatusBadRequest, "invalid media path")
	case os.IsNotExist(err):
		errorJSON(w, http.StatusNotFound, "not found")
	default:
		internalError(w, log, r, err)
	}
}

func handleLogin(authSvc *auth.Service, log zerolog.Logger) http.HandlerFunc {
	type request struct {
		UserID   string `json:"userID"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, err := authSvc.Login(r.Context(), req.UserID, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				log.Warn().Str("user_id", req.UserID).Msg("rejected login")
				errorJSON(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			internalError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func handleManifest(chunksRoot, baseURL string, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		data, err := stream.ReadManifest(chunksRoot, id)
		if err != nil {
			writeFileError(w, log, r, err)
			return
		}
		content := manifest.Rewrite(string(data), baseURL, id)
		if langs := stream.SubtitleLanguages(chunksRoot, id); len(langs) > 0 {
			subBase := baseURL + "/" + id + "/subtitles"
			content = manifest.InjectSubtitleTracks(content, subBase, langs)
		}
		w.Header().Set("Content-Type", "application/dash+xml")
		_, _ = w.Write([]byte(content))
	}
}

func handleChunk(chunksRoot string, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		name := chi.URLParam(r, "name")
		data, err := stream.ReadChunk(chunksRoot, id, name)
		if err != nil {
			writeFileError(w, log, r, err)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(data)
	}
}

func handleSubtitles(chunksRoot string, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		name := chi.URLParam(r, "lang")
		if filepath.Ext(name) == "" {
			name += ".vtt"
		}
		data, err := stream.ReadSubtitles(chunksRoot, id, name)
		if err != nil {
			writeFileError(w, log, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
		_, _ = w.Write(data)
	}
}

func handleCover(st store.Store, coversRoot string, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		known, err := st.CoverExists(r.Context(), id)
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		if !known {
			errorJSON(w, http.StatusNotFound, "unknown media id")
			return
		}
		data, err := stream.ReadCover(coversRoot, id)
		if err != nil {
			writeFileError(w, log, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}
}

func handleMediaData(st store.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collections, err := st.Catalog(r.Context())
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
	}
}

// handleMediaWatchData exports one denormalized watch-state row per
// distinct user for a media, the feed the catalog views aggregate from.
func handleMediaWatchData(st store.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := st.MediaByID(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				errorJSON(w, http.StatusNotFound, "unknown media id")
				return
			}
			internalError(w, log, r, err)
			return
		}
		states, err := st.WatchStatesByMedia(r.Context(), id)
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"watchStates": states})
	}
}

func handleUserMetadata(st store.Store, log zerolog.Logger) http.HandlerFunc {
	type request struct {
		ProfileID string `json:"profileID"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserFromContext(r.Context())
		var req request
		if err := decodeBody(r, &req); err != nil || req.ProfileID == "" {
			errorJSON(w, http.StatusBadRequest, "profileID is required")
			return
		}
		rows, err := st.WatchStatesByProfile(r.Context(), userID, req.ProfileID)
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mediaMetadata": rows})
	}
}

func handleProfileAdd(st store.Store, log zerolog.Logger) http.HandlerFunc {
	type request struct {
		ProfileID string `json:"profileID"`
		PictureID string `json:"pictureID"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserFromContext(r.Context())
		var req request
		if err := decodeBody(r, &req); err != nil || req.ProfileID == "" {
			errorJSON(w, http.StatusBadRequest, "profileID is required")
			return
		}
		err := st.AddProfile(r.Context(), userID, req.ProfileID, req.PictureID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			errorJSON(w, http.StatusNotFound, "user does not exist")
		case errors.Is(err, store.ErrConstraint):
			errorJSON(w, http.StatusBadRequest, "profile already exists")
		case err != nil:
			internalError(w, log, r, err)
		default:
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "success",
				"message": "profile created",
			})
		}
	}
}

func handleProfileDelete(st store.Store, log zerolog.Logger) http.HandlerFunc {
	type request struct {
		ProfileID string `json:"profileID"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserFromContext(r.Context())
		var req request
		if err := decodeBody(r, &req); err != nil || req.ProfileID == "" {
			errorJSON(w, http.StatusBadRequest, "profileID is required")
			return
		}
		deleted, err := st.DeleteProfile(r.Context(), userID, req.ProfileID)
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		if !deleted {
			errorJSON(w, http.StatusNotFound, "profile not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "profile deleted",
		})
	}
}

func handleProfileList(st store.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserFromContext(r.Context())
		profiles, err := st.Profiles(r.Context(), userID)
		if err != nil {
			internalError(w, log, r, err)
			return
		}
		if profiles == nil {
			profiles = []store.Profile{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
	}
}

func handleUpdateWatchState(st store.Store, log zerolog.Logger) http.HandlerFunc {
	type request struct {
		ProfileID         string  `json:"profileID"`
		MediaID           string  `json:"mediaID"`
		PercentageWatched float64 `json:"percentageWatched"`
		LanguageChosen    string  `json:"languageChosen"`
		SubtitlesChosen   string  `json:"subtitlesChosen"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserFromContext(r.Context())
		var req request
		if err := decodeBody(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProfileID == "" || req.MediaID == "" {
			errorJSON(w, http.StatusBadRequest, "profileID and mediaID are required")
			return
		}
		if req.PercentageWatched < 0 || req.PercentageWatched > 100 {
			errorJSON(w, http.StatusBadRequest, "percentageWatched must be between 0 and 100")
			return
		}
		state := store.WatchState{
			UserID:            userID,
			ProfileID:         req.ProfileID,
			MediaID:           req.MediaID,
			PercentageWatched: req.PercentageWatched,
			LanguageChosen:    req.LanguageChosen,
			SubtitlesChosen:   req.SubtitlesChosen,
		}
		if err := st.UpsertWatchState(r.Context(), state); err != nil {
			if errors.Is(err, store.ErrConstraint) {
				errorJSON(w, http.StatusBadRequest, "watch state rejected")
				return
			}
			internalError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "watch state stored",
		})
	}
}

func handleReloadCredentials(authSvc *auth.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := authSvc.Reload(r.Context()); err != nil {
			internalError(w, log, r, err)
			return
		}
		metrics.RecordCredentialReload()
		log.Info().Msg("credential snapshot reloaded")
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "credentials reloaded",
		})
	}
}
