package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"access-portal/internal/api/models"
	"access-portal/internal/database"
	"access-portal/internal/database/repositories"
	"access-portal/pkg/config"
	"access-portal/pkg/logger"
	"access-portal/pkg/token"
)

const (
	testSecret = "test-secret"
	testCookie = "portal_session"
)

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	services *Services
	db       *sql.DB
}

func newTestConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Type: "sqlite", Path: ":memory:"},
		Security: config.SecurityConfig{
			JWTSecret:       testSecret,
			TokenLifetime:   token.DefaultLifetime,
			SessionCookie:   testCookie,
			SessionLifetime: time.Hour,
		},
		API: config.APIConfig{
			RateLimit:  60000,
			BurstLimit: 1000,
			CORS:       config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
		Status: config.StatusConfig{InvalidToken: 498, LinkFailure: 599},
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, "sqlite"))

	cfg := newTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	log := logger.NewLogger("debug", "")
	log.SetOutput(io.Discard)

	services, err := NewServices(db, log, cfg)
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, services)

	return &testServer{t: t, router: router, services: services, db: db}
}

// seedPerson creates a person with password "secret" who belongs to one group holding
// capabilities.
func (s *testServer) seedPerson(email string, capabilities ...string) {
	s.t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(s.t, err)

	person := &database.Person{Email: email, PasswordHash: string(hash), FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(s.t, s.services.PersonRepository().Create(ctx, person))

	groups := repositories.NewGroupRepository(s.db)
	groupID, err := groups.Ensure(ctx, "group-"+email)
	require.NoError(s.t, err)
	require.NoError(s.t, groups.AddMember(ctx, groupID, person.ID))
	for _, c := range capabilities {
		require.NoError(s.t, groups.Grant(ctx, groupID, c))
	}
}

func (s *testServer) grantGuests(capabilities ...string) {
	s.t.Helper()
	ctx := context.Background()
	groups := repositories.NewGroupRepository(s.db)
	groupID, err := groups.Ensure(ctx, database.GuestGroup)
	require.NoError(s.t, err)
	for _, c := range capabilities {
		require.NoError(s.t, groups.Grant(ctx, groupID, c))
	}
}

type request struct {
	method  string
	path    string
	body    interface{}
	bearer  string
	session string
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	s.t.Helper()

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		require.NoError(s.t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", r.bearer)
	}
	if r.session != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: r.session})
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email string) models.SessionResponse {
	s.t.Helper()
	w := s.do(request{
		method: http.MethodPost,
		path:   "/api/v1/sessions",
		body:   models.LoginRequest{Email: email, Password: "secret"},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.SessionResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func messageOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Message
}

func TestLoginIssuesSessionAndToken(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com")

	w := s.do(request{
		method: http.MethodPost,
		path:   "/api/v1/sessions",
		body:   models.LoginRequest{Email: "ada@example.com", Password: "secret"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Session)
	assert.Equal(t, "Ada", resp.FirstName)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Session, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	claims, err := s.services.TokenService().Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", claims.LastName)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/token", bearer: "Bearer " + resp.Token})
	require.Equal(t, http.StatusOK, w.Code)
	var tok models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "Ada", tok.FirstName)
	assert.Equal(t, claims.ExpiresAt.Unix(), tok.ExpiresAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com")

	tests := map[string]models.LoginRequest{
		"wrong password": {Email: "ada@example.com", Password: "nope"},
		"unknown email":  {Email: "bob@example.com", Password: "secret"},
		"missing email":  {Password: "secret"},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := s.do(request{method: http.MethodPost, path: "/api/v1/sessions", body: body})

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, models.MsgAuthenticationRequired, messageOf(t, w))
		})
	}
}

func TestAuthenticateComparesPasswordForUnknownEmail(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com")

	var hashes [][]byte
	s.services.comparePassword = func(hash, password []byte) error {
		hashes = append(hashes, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	_, err := s.services.Authenticate(context.Background(), "bob@example.com", "secret")
	assert.Equal(t, models.KindUnauthorized, models.KindOf(err))

	_, err = s.services.Authenticate(context.Background(), "ada@example.com", "nope")
	assert.Equal(t, models.KindUnauthorized, models.KindOf(err))

	require.Len(t, hashes, 2)
	assert.Equal(t, dummyPasswordHash(), hashes[0])
	cost, err := bcrypt.Cost(hashes[0])
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestSessionsRejectsUnsupportedMethod(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPatch, path: "/api/v1/sessions"})

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST, DELETE", w.Header().Get("Allow"))
	assert.Equal(t, models.MsgMethodNotAllowed, messageOf(t, w))
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com")
	resp := s.login("ada@example.com")

	w := s.do(request{method: http.MethodDelete, path: "/api/v1/sessions", session: resp.Session})
	require.Equal(t, http.StatusOK, w.Code)

	_, err := s.services.SessionRepository().Get(context.Background(), resp.Session)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	w = s.do(request{method: http.MethodDelete, path: "/api/v1/sessions"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCapabilitiesForGuestAndSession(t *testing.T) {
	s := newTestServer(t)
	s.grantGuests("browse")
	s.seedPerson("ada@example.com", "edit", "profile:read")
	resp := s.login("ada@example.com")

	w := s.do(request{method: http.MethodGet, path: "/api/v1/capabilities"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"guest":true,"capabilities":["browse"]}`, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/v1/capabilities", session: resp.Session})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"guest":false,"capabilities":["edit","profile:read"]}`, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/v1/capabilities", session: "stale-session"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"guest":true,"capabilities":["browse"]}`, w.Body.String())
}

func TestDisabledApp(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.API.DisabledApps = []string{"Capabilities"}
	})

	w := s.do(request{method: http.MethodGet, path: "/api/v1/capabilities"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.MsgForbidden, messageOf(t, w))
}

func TestProfileRequiresTokenSessionAndCapability(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com", "profile:read")
	s.seedPerson("bob@example.com", "edit")
	ada := s.login("ada@example.com")
	bob := s.login("bob@example.com")

	tests := []struct {
		name    string
		req     request
		status  int
		message string
	}{
		{"missing header", request{session: ada.Session}, 400, models.MsgBearerMissing},
		{"bearer null", request{bearer: "Bearer null", session: ada.Session}, 498, models.MsgInvalidToken},
		{"not bearer", request{bearer: "Basic abc", session: ada.Session}, 498, models.MsgInvalidToken},
		{"no session", request{bearer: "Bearer " + ada.Token}, 401, models.MsgAuthenticationRequired},
		{"missing capability", request{bearer: "Bearer " + bob.Token, session: bob.Session}, 403, models.MsgForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.method = http.MethodGet
			tt.req.path = "/api/v1/people/me"

			w := s.do(tt.req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, messageOf(t, w))
		})
	}

	w := s.do(request{method: http.MethodGet, path: "/api/v1/people/me", bearer: "Bearer " + ada.Token, session: ada.Session})
	require.Equal(t, http.StatusOK, w.Code)
	var person models.PersonResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &person))
	assert.Equal(t, "ada@example.com", person.Email)
	assert.Equal(t, []string{"profile:read"}, person.Capabilities)
}

func TestExpiredTokenEndsSession(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com", "profile:read")
	ada := s.login("ada@example.com")

	past := time.Now().Add(-token.DefaultLifetime - time.Hour)
	stale, err := token.NewService(testSecret, token.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	expired, err := stale.Issue(token.Claims{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	w := s.do(request{method: http.MethodGet, path: "/api/v1/people/me", bearer: "Bearer " + expired, session: ada.Session})

	assert.Equal(t, 498, w.Code)
	assert.Equal(t, models.MsgTokenExpired, messageOf(t, w))

	_, err = s.services.SessionRepository().Get(context.Background(), ada.Session)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestPanicIsClassified(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := s.do(request{method: http.MethodGet, path: "/boom"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.MsgInternalError, messageOf(t, w))
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, w.Code)
	var health models.HealthCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	s.do(request{method: http.MethodPatch, path: "/api/v1/sessions"})

	w = s.do(request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portal_errors_classified_total{kind="unsupported_method",status="405"} 1`)
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	s := newTestServer(t)
	s.seedPerson("ada@example.com")
	ada := s.login("ada@example.com")

	s.services.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s.services.sweepSessions(context.Background())

	_, err := s.services.SessionRepository().Get(context.Background(), ada.Session)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
