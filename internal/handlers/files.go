package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/projectplus/apiserver/internal/storage"
	"github.com/rs/zerolog/hlog"
)

// FileOpener reads stored objects by key.
type FileOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Files streams uploaded files under /uploads/*.
func Files(files FileOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := url.PathUnescape(chi.URLParam(r, "*"))
		if err != nil {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		key, ok := storage.KeyFromPath(storage.PublicPrefix + raw)
		if !ok {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}

		rc, err := files.Open(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("failed to open file")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("file stream interrupted")
		}
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
