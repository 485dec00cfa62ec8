package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(&config.Config{Env: "test", WebOrigin: "http://localhost:5173"})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	r := testRouter()
	r.GET("/ping", func(c *gin.Context) { OK(c, http.StatusOK, "pong", nil) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	assert.JSONEq(t, `{"success":true,"message":"pong","data":null}`, w.Body.String())
}

func TestRecoveryAndErrorHandler(t *testing.T) {
	r := testRouter()
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	r.GET("/err", func(c *gin.Context) { _ = c.Error(assert.AnError) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/err", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := testRouter()
	r.POST("/login", LoginRateLimit(rdb, 2), func(c *gin.Context) { OK(c, http.StatusOK, "ok", nil) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Redis 不可用时放行
	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	r2 := testRouter()
	r2.POST("/login", LoginRateLimit(down, 1), func(c *gin.Context) { OK(c, http.StatusOK, "ok", nil) })
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r2, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
}

func TestAuthRequiredSetsClaims(t *testing.T) {
	tokens := session.NewTokenService("mw-secret", time.Hour, session.NewMemoryRevocations())
	token, _, err := tokens.Issue(t.Context(), &models.User{ID: "u-1", Username: "nia", Role: models.RoleTeacher})
	require.NoError(t, err)

	r := testRouter()
	r.GET("/who", AuthRequired(tokens), func(c *gin.Context) {
		claims := Claims(c)
		OK(c, http.StatusOK, claims.Username, gin.H{"role": c.GetString(CtxUserID)})
	})

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"nia"`)

	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}
