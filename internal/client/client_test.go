package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access-portal/internal/api/models"
	"access-portal/pkg/token"
)

type recorded struct {
	authorization string
	session       string
}

func newTestAPI(t *testing.T, seen *recorded, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.authorization = r.Header.Get("Authorization")
		seen.session = ""
		if c, err := r.Cookie(DefaultSessionCookie); err == nil {
			seen.session = c.Value
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLoginStoresTokenAndSession(t *testing.T) {
	var seen recorded
	url := newTestAPI(t, &seen, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sessions":
			var req models.LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ada@example.com", req.Email)
			writeJSON(w, http.StatusCreated, models.SessionResponse{Token: "tok", Session: "sess", FirstName: "Ada"})
		case "/api/v1/capabilities":
			writeJSON(w, http.StatusOK, models.CapabilitiesResponse{Capabilities: []string{"edit"}})
		}
	})

	store := token.NewMemoryStore()
	var events []bool
	c := New(url, token.NewKeeper(store), OnTokenExpired(func(expired bool) { events = append(events, expired) }))

	resp, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ada", resp.FirstName)
	assert.Equal(t, "Bearer null", seen.authorization)
	assert.Equal(t, []bool{false}, events)

	caps, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"edit"}, caps.Capabilities)
	assert.Equal(t, "Bearer tok", seen.authorization)
	assert.Equal(t, "sess", seen.session)
}

func TestTokenExpiredNotifies(t *testing.T) {
	var seen recorded
	url := newTestAPI(t, &seen, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 498, models.MessageResponse{Message: models.MsgTokenExpired})
	})

	store := token.NewMemoryStore()
	keeper := token.NewKeeper(store)
	require.NoError(t, keeper.Persist("old"))

	var events []bool
	c := New(url, keeper, OnTokenExpired(func(expired bool) { events = append(events, expired) }))

	_, err := c.Me(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 498, apiErr.StatusCode)
	assert.True(t, apiErr.TokenExpired())
	assert.Equal(t, []bool{true}, events)
}

func TestOtherErrorsDoNotNotify(t *testing.T) {
	var seen recorded
	url := newTestAPI(t, &seen, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 498, models.MessageResponse{Message: models.MsgInvalidToken})
	})

	called := false
	c := New(url, token.NewKeeper(token.NewMemoryStore()), OnTokenExpired(func(bool) { called = true }))

	_, err := c.Token(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.MsgInvalidToken, apiErr.Message)
	assert.False(t, called)
}

func TestErrorWithoutJSONBody(t *testing.T) {
	var seen recorded
	url := newTestAPI(t, &seen, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	c := New(url, token.NewKeeper(token.NewMemoryStore()))
	_, err := c.Capabilities(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestLogoutClearsStorageEvenOnFailure(t *testing.T) {
	var seen recorded
	url := newTestAPI(t, &seen, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, models.MessageResponse{Message: models.MsgAuthenticationRequired})
	})

	store := token.NewMemoryStore()
	keeper := token.NewKeeper(store)
	require.NoError(t, keeper.Persist("tok"))
	require.NoError(t, store.Set(token.SessionSlot, "sess"))

	err := New(url, keeper).Logout(context.Background())
	require.Error(t, err)

	_, ok, err := keeper.Retrieve()
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = store.Get(token.SessionSlot)
	assert.False(t, ok)
}
