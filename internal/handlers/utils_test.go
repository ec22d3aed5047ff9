package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	assert.Nil(t, parseList("  "))
	assert.Equal(t, []string{"go", "react"}, parseList(`["go","react"]`))
	assert.Equal(t, []string{"go", "react"}, parseList(" go, ,react "))
	assert.Equal(t, []string{"[broken"}, parseList("[broken"))
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	var body struct {
		Skills stringList `json:"skills"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"skills":["go","sql"]}`), &body))
	assert.Equal(t, stringList{"go", "sql"}, body.Skills)

	require.NoError(t, json.Unmarshal([]byte(`{"skills":"go, sql"}`), &body))
	assert.Equal(t, stringList{"go", "sql"}, body.Skills)

	require.NoError(t, json.Unmarshal([]byte(`{"skills":""}`), &body))
	assert.NotNil(t, body.Skills)
	assert.Empty(t, body.Skills)

	assert.Error(t, json.Unmarshal([]byte(`{"skills":42}`), &body))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer   abc  ", want: "abc"},
		{header: "abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer  ", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, err := bearerToken(req)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{services.ValidationError("teamSize: must be no less than 1."), http.StatusBadRequest, "teamSize: must be no less than 1."},
		{services.ErrInvalidStatus, http.StatusBadRequest, services.ErrInvalidStatus.Error()},
		{services.ErrAlreadyDecided, http.StatusConflict, services.ErrAlreadyDecided.Error()},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

		assert.Equal(t, tt.status, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.message, body.Message)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID(httptest.NewRequest(http.MethodGet, "/?projectId=7", nil), "projectId")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = parseID(httptest.NewRequest(http.MethodGet, "/", nil), "projectId")
	assert.EqualError(t, err, "projectId is required")

	_, err = parseID(httptest.NewRequest(http.MethodGet, "/?projectId=0", nil), "projectId")
	assert.EqualError(t, err, "invalid projectId")
}
