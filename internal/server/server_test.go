package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquanet/apiserver/config"
	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/handlers"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/internal/storage"
	"github.com/aquanet/apiserver/types"
)

const adminPassword = "admin-pass-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev types.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		Env: "test",
		Auth: config.AuthConfig{
			JWTSecret:          "test-signing-secret",
			TokenTTLMinutes:    30,
			BcryptCost:         bcrypt.MinCost,
			MaxLoginAttempts:   3,
			LoginAttemptWindow: time.Minute,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

type harness struct {
	t       *testing.T
	handler http.Handler
	repos   Repositories
	events  *recordingPublisher
	objects *storage.Memory
	admin   types.User
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	h := &harness{
		t:       t,
		repos:   MemoryRepositories(),
		events:  &recordingPublisher{},
		objects: storage.NewMemory("test"),
	}
	srv, err := NewWithDeps(cfg, Deps{
		Repositories: h.repos,
		Events:       h.events,
		Objects:      h.objects,
	}, logger.Discard())
	require.NoError(t, err)
	h.handler = srv.Router()
	return h
}

// seedAdmin stores an administrator directly and returns its token.
func (h *harness) seedAdmin() string {
	h.t.Helper()

	users := services.NewUserService(h.repos.Users, auth.NewPasswordHasher(bcrypt.MinCost))
	admin, err := users.CreateAdmin(context.Background(), types.UserCreate{Username: "root", Password: adminPassword})
	require.NoError(h.t, err)
	h.admin = admin
	return h.login("root", adminPassword)
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(username, password string) string {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/token", "", map[string]string{"username": username, "password": password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[handlers.TokenResponse](h.t, rec).AccessToken
}

func (h *harness) register(username, password string) types.User {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/api/users", "", map[string]any{"username": username, "password": password})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.User](h.t, rec)
}

// engineer registers a user and has the admin promote it.
func (h *harness) engineer(adminToken, username string) (types.User, string) {
	h.t.Helper()

	u := h.register(username, "eng-pass-1")
	rec := h.do(http.MethodPut, fmt.Sprintf("/api/users/%d", u.ID), adminToken, map[string]string{"role": "engineer"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[types.User](h.t, rec), h.login(username, "eng-pass-1")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handlers.ErrorResponse](t, rec).Code
}

func TestAliceScenario(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()

	alice := h.register("alice", "pw123456")
	assert.Equal(t, types.RoleUser, alice.Role)
	assert.True(t, alice.IsActive)

	token := h.login("alice", "pw123456")

	rec := h.do(http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, handlers.CodeForbidden, errorCode(t, rec))

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/users/%d", alice.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[types.User](t, rec).Username)

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/users/%d", h.admin.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", alice.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", alice.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeactivatedAccount(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()

	alice := h.register("alice", "pw123456")
	token := h.login("alice", "pw123456")

	rec := h.do(http.MethodPut, fmt.Sprintf("/api/users/%d", alice.ID), adminToken, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, handlers.CodeAccountDisabled, body.Code)
	assert.Equal(t, "inactive user", body.Error)
}

func TestUnauthenticated(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token"},
		{name: "garbage token", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "/api/water-infrastructure", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, handlers.CodeUnauthenticated, errorCode(t, rec))
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "pw123456")

	before, err := h.repos.Users.Count(context.Background())
	require.NoError(t, err)

	rec := h.do(http.MethodPost, "/api/users", "", map[string]any{"username": "alice", "password": "other-pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, handlers.CodeConflict, errorCode(t, rec))

	after, err := h.repos.Users.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/users", "", map[string]any{"username": "al", "password": "pw123456", "email": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, handlers.CodeValidation, body.Code)
	assert.Contains(t, body.Fields, "username")
	assert.Contains(t, body.Fields, "email")
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice", "pw123456")

	t.Run("form encoded", func(t *testing.T) {
		form := url.Values{"username": {"alice"}, "password": {"pw123456"}}
		req := httptest.NewRequest(http.MethodPost, "/api/users/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[handlers.TokenResponse](t, rec)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, alice.ID, resp.UserID)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/token", "", map[string]string{"username": "alice"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown user and wrong password look alike", func(t *testing.T) {
		unknown := h.do(http.MethodPost, "/token", "", map[string]string{"username": "mallory", "password": "x"})
		wrong := h.do(http.MethodPost, "/token", "", map[string]string{"username": "alice", "password": "x"})

		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, decode[handlers.ErrorResponse](t, unknown).Error, decode[handlers.ErrorResponse](t, wrong).Error)
		assert.Equal(t, "Bearer", wrong.Header().Get("WWW-Authenticate"))
	})

	t.Run("username must match exactly", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/token", "", map[string]string{"username": "  alice  ", "password": "pw123456"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRenamedUsername_OldTokenDoesNotFollowName(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice", "pw123456")
	token := h.login("alice", "pw123456")

	rec := h.do(http.MethodPut, fmt.Sprintf("/api/users/%d", alice.ID), token, map[string]string{"username": "alice2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	newcomer := h.register("alice", "other-pw-1")
	require.NotEqual(t, alice.ID, newcomer.ID)

	rec = h.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), fmt.Sprintf(`"id":%d`, newcomer.ID))

	rec = h.do(http.MethodGet, "/api/users/me", h.login("alice2", "pw123456"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.ID, decode[types.User](t, rec).ID)
}

func TestLogin_Throttled(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "pw123456")

	for i := 0; i < 3; i++ {
		rec := h.do(http.MethodPost, "/token", "", map[string]string{"username": "alice", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := h.do(http.MethodPost, "/token", "", map[string]string{"username": "alice", "password": "pw123456"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, handlers.CodeTooManyAttempts, errorCode(t, rec))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code)

	rec := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, handlers.CodeTooManyRequests, errorCode(t, rec))
}

func TestRateLimit_ProxyHeaders(t *testing.T) {
	limited := func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	}
	spoofed := func(h *harness, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("ignored by default", func(t *testing.T) {
		h := newHarness(t, limited)
		assert.Equal(t, http.StatusOK, spoofed(h, "198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, spoofed(h, "198.51.100.2"))
	})

	t.Run("honoured behind a trusted proxy", func(t *testing.T) {
		h := newHarness(t, limited, func(c *config.Config) { c.TrustProxyHeaders = true })
		assert.Equal(t, http.StatusOK, spoofed(h, "198.51.100.1"))
		assert.Equal(t, http.StatusOK, spoofed(h, "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, spoofed(h, "198.51.100.1"))
	})
}

func TestLogin_LockoutIsPerClient(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "pw123456")

	loginFrom := func(addr, password string) int {
		raw, err := json.Marshal(map[string]string{"username": "alice", "password": password})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, loginFrom("203.0.113.9:4000", "wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, loginFrom("203.0.113.9:4001", "pw123456"))
	assert.Equal(t, http.StatusOK, loginFrom("198.51.100.4:5000", "pw123456"))
}

func TestProbesAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "", nil).Code)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aquanet_http_requests_total")
}

func TestInfrastructureAccess(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	_, engToken := h.engineer(adminToken, "eng")
	h.register("alice", "pw123456")
	citizenToken := h.login("alice", "pw123456")

	pipe := map[string]any{"name": "Main 7", "type": "pipe", "location": "North district", "latitude": 52.1}

	rec := h.do(http.MethodPost, "/api/water-infrastructure", citizenToken, pipe)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/api/water-infrastructure", engToken, pipe)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.Infrastructure](t, rec)
	assert.Equal(t, "good", created.ConditionStatus)

	rec = h.do(http.MethodGet, "/api/water-infrastructure", citizenToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Infrastructure](t, rec), 1)

	rec = h.do(http.MethodPut, fmt.Sprintf("/api/water-infrastructure/%d", created.ID), engToken, map[string]any{"pressure": 4.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.Infrastructure](t, rec)
	assert.Equal(t, "Main 7", updated.Name)
	require.NotNil(t, updated.Pressure)
	assert.InDelta(t, 4.5, *updated.Pressure, 1e-9)
	assert.NotNil(t, updated.UpdatedAt)

	leak := map[string]any{"leak_detected_at": "2026-03-14T09:00:00Z", "severity": "high"}
	rec = h.do(http.MethodPost, fmt.Sprintf("/api/water-infrastructure/%d/leaks", created.ID), engToken, leak)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, decode[types.Leak](t, rec).InfrastructureID)

	rec = h.do(http.MethodPost, "/api/water-infrastructure/999/leaks", engToken, leak)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/water-infrastructure/%d/leaks", created.ID), citizenToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Leak](t, rec), 1)

	rec = h.do(http.MethodDelete, fmt.Sprintf("/api/water-infrastructure/%d", created.ID), engToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = h.do(http.MethodDelete, fmt.Sprintf("/api/water-infrastructure/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodGet, fmt.Sprintf("/api/water-infrastructure/%d", created.ID), citizenToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPagination(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "pw123456")
	token := h.login("alice", "pw123456")

	for _, query := range []string{"limit=0", "skip=-1", "skip=abc", "limit=x"} {
		rec := h.do(http.MethodGet, "/api/assets?"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/assets?skip=0&limit=5000", token, nil).Code)
}

func TestComplaintLifecycle(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	eng, engToken := h.engineer(adminToken, "eng")
	alice := h.register("alice", "pw123456")
	aliceToken := h.login("alice", "pw123456")

	rec := h.do(http.MethodPost, "/api/complaints", aliceToken, map[string]any{
		"full_name":   "Alice A",
		"category":    "leak",
		"description": "Water running down the street",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	complaint := decode[types.Complaint](t, rec)
	require.NotNil(t, complaint.UserID)
	assert.Equal(t, alice.ID, *complaint.UserID)
	assert.Equal(t, types.ComplaintPending, complaint.Status)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	rec = h.upload(fmt.Sprintf("/api/complaints/%d/photo", complaint.ID), aliceToken, "street.PNG", "image/png", png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withPhoto := decode[types.Complaint](t, rec)
	require.NotNil(t, withPhoto.PhotoURL)
	assert.True(t, strings.HasPrefix(*withPhoto.PhotoURL, fmt.Sprintf("complaints/%d/", complaint.ID)))
	assert.True(t, strings.HasSuffix(*withPhoto.PhotoURL, ".png"))

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/complaints/%d/photo", complaint.ID), engToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = h.upload(fmt.Sprintf("/api/complaints/%d/photo", complaint.ID), aliceToken, "notes.txt", "text/plain", []byte("hi"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPatch, fmt.Sprintf("/api/complaints/%d/assign", complaint.ID), aliceToken, map[string]int{"assigned_to": eng.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPatch, fmt.Sprintf("/api/complaints/%d/assign", complaint.ID), engToken, map[string]int{"assigned_to": eng.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decode[types.Complaint](t, rec)
	assert.Equal(t, types.ComplaintInProgress, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, eng.ID, *assigned.AssignedTo)

	rec = h.do(http.MethodPatch, fmt.Sprintf("/api/complaints/%d/assign?assigned_to=999", complaint.ID), engToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPatch, fmt.Sprintf("/api/complaints/%d/resolve", complaint.ID), engToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[types.Complaint](t, rec)
	assert.Equal(t, types.ComplaintResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
}

func (h *harness) upload(path, token, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	h.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(h.t, err)
	_, err = part.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestNotificationsFlow(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	_, engToken := h.engineer(adminToken, "eng")
	alice := h.register("alice", "pw123456")
	aliceToken := h.login("alice", "pw123456")
	h.register("bob", "pw123456")
	bobToken := h.login("bob", "pw123456")

	rec := h.do(http.MethodPost, "/api/notifications", aliceToken, map[string]any{"title": "t", "message": "m"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/api/notifications", engToken, map[string]any{
		"user_id": alice.ID, "title": "Bill ready", "message": "Your March bill is ready", "notification_type": "billing",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	direct := decode[types.Notification](t, rec)

	rec = h.do(http.MethodPost, "/api/notifications", engToken, map[string]any{"title": "Outage", "message": "Planned works"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{types.EventNotificationCreated, types.EventNotificationCreated}, h.events.kinds())

	rec = h.do(http.MethodGet, "/api/notifications/user", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Notification](t, rec), 2)

	rec = h.do(http.MethodGet, "/api/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Notification](t, rec), 1)

	rec = h.do(http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", direct.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPatch, "/api/notifications/read-all", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode[handlers.MessageResponse](t, rec)
	require.NotNil(t, msg.Count)
	assert.EqualValues(t, 2, *msg.Count)

	rec = h.do(http.MethodPost, "/api/notifications/settings", aliceToken, map[string]any{"notification_type": "billing", "channel_sms": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	setting := decode[types.NotificationSetting](t, rec)
	assert.Equal(t, alice.ID, setting.UserID)

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/notifications/settings/%d", alice.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = h.do(http.MethodGet, fmt.Sprintf("/api/notifications/settings/%d", alice.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.NotificationSetting](t, rec), 1)

	rec = h.do(http.MethodPut, fmt.Sprintf("/api/notifications/settings/%d", setting.ID), bobToken, map[string]any{"channel_sms": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = h.do(http.MethodPut, fmt.Sprintf("/api/notifications/settings/%d", setting.ID), aliceToken, map[string]any{"channel_sms": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[types.NotificationSetting](t, rec).ChannelSMS)
}

func TestPaymentsAreScopedToCitizens(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	h.register("alice", "pw123456")
	aliceToken := h.login("alice", "pw123456")
	h.register("bob", "pw123456")
	bobToken := h.login("bob", "pw123456")

	rec := h.do(http.MethodPost, "/api/tariffs", aliceToken, map[string]any{"name": "Residential", "price_per_unit": 1.2, "start_date": "2026-01-01T00:00:00Z"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tariff := h.createAs(adminToken, "/api/tariffs", map[string]any{
		"name": "Residential", "price_per_unit": 1.2, "start_date": "2026-01-01T00:00:00Z",
	})
	method := h.createAs(adminToken, "/api/tariffs/payment-methods", map[string]any{"name": "Card", "is_online": true})

	payment := map[string]any{"tariff_id": tariff, "payment_method_id": method, "amount": 42.5}
	h.createAs(aliceToken, "/api/tariffs/payments", payment)
	h.createAs(bobToken, "/api/tariffs/payments", payment)

	rec = h.do(http.MethodGet, "/api/tariffs/payments", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Payment](t, rec), 1)

	rec = h.do(http.MethodGet, "/api/tariffs/payments", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Payment](t, rec), 2)

	payment["tariff_id"] = 999
	rec = h.do(http.MethodPost, "/api/tariffs/payments", aliceToken, payment)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentRead_OwnerOrStaff(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	_, engToken := h.engineer(adminToken, "eng")
	h.register("alice", "pw123456")
	aliceToken := h.login("alice", "pw123456")
	h.register("bob", "pw123456")
	bobToken := h.login("bob", "pw123456")

	tariff := h.createAs(adminToken, "/api/tariffs", map[string]any{
		"name": "Residential", "price_per_unit": 1.2, "start_date": "2026-01-01T00:00:00Z",
	})
	method := h.createAs(adminToken, "/api/tariffs/payment-methods", map[string]any{"name": "Card", "is_online": true})
	id := h.createAs(aliceToken, "/api/tariffs/payments", map[string]any{"tariff_id": tariff, "payment_method_id": method, "amount": 10})
	path := fmt.Sprintf("/api/tariffs/payments/%d", id)

	rec := h.do(http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, handlers.CodeForbidden, errorCode(t, rec))

	for _, token := range []string{aliceToken, engToken, adminToken} {
		rec = h.do(http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, id, decode[types.Payment](t, rec).ID)
	}

	rec = h.do(http.MethodGet, "/api/tariffs/payments/999", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationRead_OwnerBroadcastOrStaff(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	_, engToken := h.engineer(adminToken, "eng")
	alice := h.register("alice", "pw123456")
	aliceToken := h.login("alice", "pw123456")
	h.register("bob", "pw123456")
	bobToken := h.login("bob", "pw123456")

	private := h.createAs(adminToken, "/api/notifications", map[string]any{
		"user_id": alice.ID, "title": "private", "message": "your bill is overdue",
	})
	broadcast := h.createAs(adminToken, "/api/notifications", map[string]any{"title": "Outage", "message": "Planned works"})

	rec := h.do(http.MethodGet, fmt.Sprintf("/api/notifications/%d", private), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "overdue")

	for _, token := range []string{aliceToken, engToken} {
		rec = h.do(http.MethodGet, fmt.Sprintf("/api/notifications/%d", private), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "private", decode[types.Notification](t, rec).Title)
	}

	rec = h.do(http.MethodGet, fmt.Sprintf("/api/notifications/%d", broadcast), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[types.Notification](t, rec).UserID)
}

func (h *harness) createAs(token, path string, body any) int {
	h.t.Helper()

	rec := h.do(http.MethodPost, path, token, body)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.Record](h.t, rec).ID
}

func TestQualityAlerts(t *testing.T) {
	h := newHarness(t)
	adminToken := h.seedAdmin()
	eng, engToken := h.engineer(adminToken, "eng")

	measurement := h.createAs(engToken, "/api/water-quality", map[string]any{
		"location": "Plant 1", "ph_level": 9.1, "date_measured": "2026-03-14T09:00:00Z",
	})
	alert := h.createAs(engToken, "/api/water-quality/alerts", map[string]any{
		"quality_id": measurement, "alert_type": "ph_high", "message": "pH above limit",
	})
	assert.Equal(t, []string{types.EventQualityAlertRaised}, h.events.kinds())

	rec := h.do(http.MethodPatch, fmt.Sprintf("/api/water-quality/alerts/%d/acknowledge", alert), engToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acked := decode[types.QualityAlert](t, rec)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, eng.ID, *acked.AcknowledgedBy)

	rec = h.do(http.MethodGet, "/api/water-quality/alerts?active=true", engToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.QualityAlert](t, rec), 1)

	rec = h.do(http.MethodGet, "/api/water-quality/alerts?active=maybe", engToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
