package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Err     json.RawMessage `json:"err"`
}

type server struct {
	t   *testing.T
	app *app.App
	mr  *miniredis.Miniredis
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		Env:               "test",
		DBDriver:          "sqlite",
		DatabaseURL:       fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name),
		RedisAddr:         mr.Addr(),
		JWTSecret:         testSecret,
		TokenTTL:          time.Hour,
		WebOrigin:         "http://localhost:5173",
		RPID:              "localhost",
		RPOrigins:         []string{"http://localhost:5173"},
		SessionTTL:        5 * time.Minute,
		LastSeenThrottle:  time.Minute,
		LoginRateLimit:    3,
		BootstrapEmail:    "root@campus.test",
		BootstrapUsername: "root",
		BootstrapPassword: "rootsecret",
		AppName:           "Campus Rent",
	}
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	s := RegisterRoutes(a.Router, a)
	app.BootstrapSuperAdmin(context.Background(), cfg, s.Users)
	return &server{t: t, app: a, mr: mr}
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *server) login(identifier, password string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/users/login", "", map[string]string{"identifier": identifier, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(s.t, res.Token)
	return res.Token
}

func (s *server) register(token, path, username string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, path, token, map[string]string{
		"email":    username + "@campus.test",
		"username": username,
		"password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var u struct {
		ID string `json:"userId"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &u))
	return u.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"connected"`)
	assert.NotEmpty(t, w.Header().Get(app.RequestIDHeader))
}

func TestAuthGuardStatuses(t *testing.T) {
	s := newServer(t)
	s.register("", "/api/users/register", "kim")
	token := s.login("kim", "secret123")

	w, env := s.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Authentication required", env.Message)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "x", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("someone-else"))
	require.NoError(t, err)
	w, env = s.do(http.MethodGet, "/api/users/me", forged, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid token", env.Message)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &session.Claims{
		UserID: "x",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	w, env = s.do(http.MethodGet, "/api/users/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has expired.", env.Message)

	w, env = s.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	me := decode[models.User](t, env.Data)
	assert.Equal(t, "kim", me.Username)

	w, _ = s.do(http.MethodPost, "/api/users/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Please log in again.", env.Message)
}

func TestLoginFailureAndRateLimit(t *testing.T) {
	s := newServer(t)
	s.register("", "/api/users/register", "lee")

	w, env := s.do(http.MethodPost, "/api/users/login", "", map[string]string{"username": "lee", "password": "bad-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong credentials", env.Message)

	w, env = s.do(http.MethodPost, "/api/users/login", "", map[string]string{"username": "ghost", "password": "bad-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong credentials", env.Message)

	// 限额 3 次/分钟
	s.do(http.MethodPost, "/api/users/login", "", map[string]string{"username": "lee", "password": "bad-pass"})
	w, _ = s.do(http.MethodPost, "/api/users/login", "", map[string]string{"username": "lee", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestValidationErrorEnvelope(t *testing.T) {
	s := newServer(t)
	w, env := s.do(http.MethodPost, "/api/users/register", "", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	fields := decode[map[string]string](t, env.Err)
	assert.Equal(t, "email", fields["email"])
	assert.Equal(t, "required", fields["password"])

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomFlowOverHTTP(t *testing.T) {
	s := newServer(t)
	root := s.login("root", "rootsecret")
	s.register(root, "/api/users/register/admin", "adm")
	admin := s.login("adm", "secret123")
	s.register(admin, "/api/users/register/teacher", "tea")
	teacher := s.login("tea", "secret123")

	w, env := s.do(http.MethodPost, "/api/rooms", teacher, map[string]any{"name": "Lab 1", "capacity": 30})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	w, env = s.do(http.MethodPost, "/api/rooms", admin, map[string]any{"name": "Lab 1", "capacity": 30})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := decode[models.Room](t, env.Data)

	w, _ = s.do(http.MethodPost, "/api/rooms", admin, map[string]any{"name": "Lab 1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/api/rooms/rent/start/"+room.ID, teacher, map[string]any{"capacity": 20})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(http.MethodGet, "/api/rooms/all/rent", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rented := decode[[]map[string]any](t, env.Data)
	require.Len(t, rented, 1)
	assert.NotNil(t, rented[0]["activeRental"])

	w, env = s.do(http.MethodGet, "/api/rooms", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Room](t, env.Data))

	w, _ = s.do(http.MethodPost, "/api/rooms/rent/end/"+room.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(http.MethodPost, "/api/rooms/rent/end/"+room.ID, teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodDelete, "/api/rooms/"+room.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/api/rooms/"+room.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryFlowAndReports(t *testing.T) {
	s := newServer(t)
	root := s.login("root", "rootsecret")
	s.register(root, "/api/users/register/admin", "adm")
	admin := s.login("adm", "secret123")
	s.register("", "/api/users/register", "stu")
	student := s.login("stu", "secret123")

	w, env := s.do(http.MethodPost, "/api/inventories", admin, map[string]any{
		"name": "Projector", "itemCode": "PRJ", "initialQuantity": 10, "purchasePrice": "99.90",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.InventoryItem](t, env.Data)

	w, _ = s.do(http.MethodPost, "/api/inventories/rent/start/"+item.ID, student, map[string]any{"quantity": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(http.MethodPost, "/api/inventories/rent/start/"+item.ID, student, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = s.do(http.MethodGet, "/api/inventories/all/rent", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rented := decode[[]map[string]any](t, env.Data)
	require.Len(t, rented, 1)
	assert.Len(t, rented[0]["inventoryRents"], 1)

	w, _ = s.do(http.MethodGet, "/api/reports/inventory", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = s.do(http.MethodGet, "/api/reports/inventory", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"rentedUnits":10`)

	w, _ = s.do(http.MethodGet, "/api/reports/inventory.pdf", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w, env = s.do(http.MethodPost, "/api/inventories/rent/end/"+item.ID, student, map[string]any{"quantity": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"rentedQuantity":0`)

	w, env = s.do(http.MethodGet, "/api/reports/audit?action=inventory.rent.end", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)
}

func TestDeletedUserTokenIsRevoked(t *testing.T) {
	s := newServer(t)
	root := s.login("root", "rootsecret")
	s.register(root, "/api/users/register/admin", "adm")
	admin := s.login("adm", "secret123")
	id := s.register("", "/api/users/register", "mo")
	token := s.login("mo", "secret123")

	w, _ := s.do(http.MethodDelete, "/api/users/"+id, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/users/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Please log in again.", env.Message)
}
