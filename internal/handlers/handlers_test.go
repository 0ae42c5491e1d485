package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/auth"
	"github.com/mindmap-dev/mindmap/internal/handlers"
	"github.com/mindmap-dev/mindmap/internal/logging"
	"github.com/mindmap-dev/mindmap/internal/metrics"
	"github.com/mindmap-dev/mindmap/internal/middleware"
	"github.com/mindmap-dev/mindmap/internal/router"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/testutil"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubStatus struct {
	results []types.ProbeResult
}

func (s stubStatus) Results() []types.ProbeResult { return s.results }

func (s stubStatus) GetStatus() map[string]interface{} {
	return map[string]interface{}{"active_probes": len(s.results), "running": true}
}

type testServer struct {
	router  *gin.Engine
	mailer  *testutil.FakeMailer
	handler *handlers.Handler
	metrics *metrics.Metrics
	static  string
}

func newTestServer(t *testing.T, wordServiceURL string, status stubStatus) *testServer {
	t.Helper()

	conn := testutil.OpenTestDB(t)
	log := logging.Discard()
	mailer := &testutil.FakeMailer{}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>MindMap</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "login.html"), []byte("<form>login</form>"), 0o644))

	m := metrics.New()
	origins := types.AllowedOrigins("https://app.mindmap.example", "")
	authService := services.NewAuthService(conn, mailer, "https://mindmap.example", log)

	h := &handlers.Handler{
		Auth:            authService,
		Content:         services.NewContentService(conn),
		Words:           services.NewWordProcessor(nil, wordServiceURL),
		Status:          status,
		Tokens:          tokens,
		Hub:             handlers.NewHub(origins, log),
		Log:             log,
		Metrics:         m,
		Cookie:          handlers.CookieConfig{Secure: true},
		ConfirmRedirect: "/login.html",
	}

	r := router.NewRouter(router.Deps{
		Handler:        h,
		Tokens:         tokens,
		Users:          authService,
		AuthLimiter:    middleware.NewRateLimiter(1000, 1000, log),
		Log:            log,
		Metrics:        m,
		AllowedOrigins: origins,
		StaticDir:      staticDir,
	})

	return &testServer{router: r, mailer: mailer, handler: h, metrics: m, static: staticDir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	return rec
}

type loginResponse struct {
	Message        string `json:"message"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	Token          string `json:"token"`
	User           struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// signupAndLogin registers and confirms a user and returns the session.
func (s *testServer) signupAndLogin(t *testing.T, username, email string) loginResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": username, "email": email, "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/confirm?email="+email, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": email, "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login loginResponse
	decode(t, rec, &login)

	return login
}

func TestAliceEndToEnd(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "alice", "email": "a@x.com", "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Signup successful! Please check your email."}`, rec.Body.String())
	require.Equal(t, 1, s.mailer.Count())
	assert.Equal(t, "https://mindmap.example/confirm?email=a%40x.com", s.mailer.Last().Link)

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "a@x.com", "password": "pw123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please confirm your email before logging in."}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/is-confirmed?email=a@x.com", "", nil)
	assert.JSONEq(t, `{"confirmed":false}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/confirm?email=a%40x.com", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login.html", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/is-confirmed?email=a@x.com", "", nil)
	assert.JSONEq(t, `{"confirmed":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "a@x.com", "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	decode(t, rec, &login)
	assert.Equal(t, "Login successful", login.Message)
	assert.True(t, login.EmailConfirmed)
	assert.NotZero(t, login.User.ID)
	assert.Equal(t, "alice", login.User.Username)
	assert.Equal(t, "a@x.com", login.User.Email)
	assert.NotEmpty(t, login.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Equal(t, login.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = s.do(t, http.MethodGet, "/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestSignupErrors(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodPost, "/signup", "", gin.H{"email": "a@x.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/signup", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "alice", "email": "a@x.com", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "alice", "email": "a@x.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email already exists"}`, rec.Body.String())

	s.mailer.Err = assert.AnError
	rec = s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "bob", "email": "b@x.com", "password": "pw"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Error sending confirmation email"}`, rec.Body.String())

	metricsRec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `mindmap_auth_signups_total{outcome="duplicate"} 1`)
	assert.Contains(t, metricsRec.Body.String(), `mindmap_auth_signups_total{outcome="mail_failed"} 1`)
}

func TestAuthRequestsRequireFields(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "alice", "email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Username, email and password are required"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/signup", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email and password are required"}`, rec.Body.String())

	// Whitespace passes binding and is caught by the service.
	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "  ", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email and password are required"}`, rec.Body.String())

	// The rejected signup left no row behind.
	rec = s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "alice", "email": "a@x.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmAndLoginErrors(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodGet, "/confirm?email=ghost@x.com", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/is-confirmed", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/is-confirmed?email=ghost@x.com", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "ghost@x.com", "password": "pw"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())

	s.signupAndLogin(t, "alice", "a@x.com")

	rec = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Incorrect password"}`, rec.Body.String())
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestContentRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	routes := []struct{ method, path string }{
		{http.MethodPost, "/submit-report"},
		{http.MethodPost, "/save-constellation"},
		{http.MethodPut, "/update-constellation/1"},
		{http.MethodGet, "/get-constellations/1"},
		{http.MethodGet, "/constellation/1"},
		{http.MethodGet, "/me"},
		{http.MethodGet, "/ws"},
	}

	for _, route := range routes {
		rec := s.do(t, route.method, route.path, "", gin.H{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestSubmitReport(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})
	alice := s.signupAndLogin(t, "alice", "a@x.com")

	rec := s.do(t, http.MethodPost, "/submit-report", alice.Token, gin.H{"report": "love it", "id": alice.User.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Report submitted successfully."}`, rec.Body.String())

	// Ids may arrive as strings.
	rec = s.do(t, http.MethodPost, "/submit-report", alice.Token, `{"report":"again","id":"`+jsonID(alice.User.ID)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/submit-report", alice.Token, gin.H{"id": alice.User.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Report content and user ID are required."}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/submit-report", alice.Token, gin.H{"report": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/submit-report", alice.Token, gin.H{"report": "x", "id": alice.User.ID + 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func jsonID(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestConstellationLifecycle(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})
	alice := s.signupAndLogin(t, "alice", "a@x.com")
	bob := s.signupAndLogin(t, "bob", "b@x.com")

	data := `{"nodes":[{"id":"cat"}],"links":[]}`

	rec := s.do(t, http.MethodPost, "/save-constellation", alice.Token,
		`{"userId":`+jsonID(alice.User.ID)+`,"name":"Animals","constellationData":`+data+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved struct {
		Message         string `json:"message"`
		ConstellationID uint   `json:"constellationId"`
	}
	decode(t, rec, &saved)
	require.NotZero(t, saved.ConstellationID)
	id := jsonID(saved.ConstellationID)

	rec = s.do(t, http.MethodGet, "/constellation/"+id, alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var row map[string]json.RawMessage
	decode(t, rec, &row)
	assert.JSONEq(t, data, string(row["constellation_data"]))
	assert.JSONEq(t, `"Animals"`, string(row["name"]))
	assert.JSONEq(t, jsonID(alice.User.ID), string(row["user_id"]))
	assert.Contains(t, row, "created_at")

	updated := `{"nodes":[{"id":"cat"},{"id":"dog"}],"links":[{"source":"cat","target":"dog"}]}`
	rec = s.do(t, http.MethodPut, "/update-constellation/"+id, alice.Token,
		`{"name":"Pets","constellationData":`+updated+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/get-constellations/"+jsonID(alice.User.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]json.RawMessage
	decode(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `"Pets"`, string(rows[0]["name"]))
	assert.JSONEq(t, updated, string(rows[0]["constellation_data"]))

	// Bob sees nothing of Alice's.
	rec = s.do(t, http.MethodGet, "/constellation/"+id, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-constellation/"+id, bob.Token, `{"name":"Mine","constellationData":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/get-constellations/"+jsonID(alice.User.ID), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/get-constellations/"+jsonID(bob.User.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConstellationValidation(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})
	alice := s.signupAndLogin(t, "alice", "a@x.com")
	userID := jsonID(alice.User.ID)

	rec := s.do(t, http.MethodPost, "/save-constellation", alice.Token, `{"userId":`+userID+`,"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/save-constellation", alice.Token, `{"name":"x","constellationData":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/save-constellation", alice.Token, `{"userId":"abc","name":"x","constellationData":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/save-constellation", alice.Token,
		`{"userId":`+jsonID(alice.User.ID+5)+`,"name":"x","constellationData":{}}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-constellation/abc", alice.Token, `{"name":"x","constellationData":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-constellation/999", alice.Token, `{"name":"x","constellationData":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-constellation/999", alice.Token, `{"constellationData":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/get-constellations/abc", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessWordsRelaysUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		if body["words"] == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"cannot expand"}`))
			return
		}
		_, _ = w.Write([]byte(`{"nodes":[{"id":"cat"}],"links":[]}`))
	}))
	defer upstream.Close()

	s := newTestServer(t, upstream.URL+"/process", stubStatus{})

	rec := s.do(t, http.MethodPost, "/process-words", "", gin.H{"words": "cat"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":[{"id":"cat"}],"links":[]}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodPost, "/process-words", "", gin.H{"words": "bad"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"cannot expand"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/process-words", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No words provided"}`, rec.Body.String())
}

func TestProcessWordsUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	s := newTestServer(t, url, stubStatus{})

	rec := s.do(t, http.MethodPost, "/process-words", "", gin.H{"words": "cat"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to process words")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{results: []types.ProbeResult{
		{Name: "database", Up: true},
		{Name: "word_service", Up: false, Error: "connection refused"},
	}})

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string              `json:"status"`
		Checks []types.ProbeResult `json:"checks"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Len(t, body.Checks, 2)

	healthy := newTestServer(t, "http://127.0.0.1:1", stubStatus{results: []types.ProbeResult{{Name: "database", Up: true}}})
	rec = healthy.do(t, http.MethodGet, "/health", "", nil)
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
}

func TestStaticFiles(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	rec := s.do(t, http.MethodGet, "/login.html", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login")

	rec = s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MindMap")

	rec = s.do(t, http.MethodGet, "/missing.js", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/../../etc/passwd", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/login.html", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", stubStatus{})

	req := httptest.NewRequest(http.MethodOptions, "/save-constellation", nil)
	req.Header.Set("Origin", "https://app.mindmap.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.mindmap.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/save-constellation", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Origin"), "evil"))
}
