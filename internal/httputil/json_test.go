package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessMergesData(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, Envelope{"balance": "10"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "10", body["balance"])
}

func TestFailOmitsEmptyMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusUnauthorized, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Fail(rec, http.StatusOK, "Insufficient balance")
	assert.JSONEq(t, `{"success":false,"message":"Insufficient balance"}`, rec.Body.String())
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","extra":1}`))
	require.NoError(t, ReadJSON(r, &dst))
	assert.Equal(t, "a@b.c", dst.Email)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorIs(t, ReadJSON(r, &dst), ErrEmptyBody)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, ReadJSON(r, &dst))
}

func TestPage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil)
	p := Page(r)
	assert.Equal(t, 200, p.Limit)
	assert.Equal(t, 20, p.Offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	assert.Equal(t, 50, Page(r).Limit)
}
