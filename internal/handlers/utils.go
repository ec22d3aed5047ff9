package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog/hlog"
)

const (
	maxJSONBytes       = 1 << 20
	maxMultipartMemory = 32 << 20
	maxUploadBytes     = 10 << 20
)

// ErrorResponse is the payload of every error.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError maps service errors to HTTP statuses. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *services.Error
	message := err.Error()
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, message)
	case errors.Is(err, services.ErrNotVerified),
		errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, message)
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, message)
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, message)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parseID reads a positive integer from the query string.
func parseID(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseOptionalInt(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// parseList accepts a JSON array or a comma-separated list. An empty value
// yields nil.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err == nil {
			return values
		}
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// stringList decodes a JSON field that may be an array or a CSV string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*l = values
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("expected an array or a comma-separated string")
	}
	*l = parseList(raw)
	if *l == nil {
		*l = []string{}
	}
	return nil
}

// readUploads loads every file of a multipart field, capped at max files.
func readUploads(form *multipart.Form, field string, max int) ([]types.Upload, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if len(headers) > max {
		return nil, fmt.Errorf("at most %d %s files are allowed", max, field)
	}

	uploads := make([]types.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s file: %w", field, err)
		}
		data, err := readFileLimited(file, maxUploadBytes)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, types.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
