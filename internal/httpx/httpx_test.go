package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookloan/internal/apperr"
)

func TestWriteError_HidesFatalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, slog.Default(), errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.Equal(t, "fatal", body["kind"])
}

func TestWriteError_ExpectedKinds(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, slog.Default(), fmt.Errorf("%w: already returned", apperr.ErrInvalidState))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already returned")
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"bookId":"b1","extra":1}`))
	var dst struct {
		BookID string `json:"bookId"`
	}
	err := DecodeJSON(req, &dst)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestQueryParsers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?page=2&size=abc&from=2025-01-02T03:04:05Z&to=yesterday", nil)

	page, err := IntQuery(req, "page", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	_, err = IntQuery(req, "size", 20)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	missing, err := IntQuery(req, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, missing)

	from, err := TimeQuery(req, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.Equal(t, 2025, from.Year())

	_, err = TimeQuery(req, "to")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	none, err := TimeQuery(req, "absent")
	require.NoError(t, err)
	assert.Nil(t, none)
}
