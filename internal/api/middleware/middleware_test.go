package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newRouter(cfg AuthConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuth(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	r := newRouter(AuthConfig{Secret: secret, Audience: "authenticated"})
	tok := sign(t, jwt.MapClaims{
		"sub":          "u1",
		"aud":          "authenticated",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"role": "admin"},
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := do(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"admin"}`, w.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	r := newRouter(AuthConfig{Secret: secret, Audience: "authenticated"})

	cases := map[string]string{
		"missing":      "",
		"garbage":      "Bearer nope",
		"wrong aud":    "Bearer " + sign(t, jwt.MapClaims{"sub": "u1", "aud": "other", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired":      "Bearer " + sign(t, jwt.MapClaims{"sub": "u1", "aud": "authenticated", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no subject":   "Bearer " + sign(t, jwt.MapClaims{"aud": "authenticated", "exp": time.Now().Add(time.Hour).Unix()}),
		"other secret": "Bearer " + otherSecret(t),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)
		})
	}
}

func otherSecret(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	return s
}

func TestJWTAuthWebsocketQueryToken(t *testing.T) {
	r := newRouter(AuthConfig{Secret: secret})
	tok := sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/x?access_token="+tok, nil)
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req.Header.Set("Upgrade", "websocket")
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"user"}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(AuthConfig{Secret: secret}, RequireAdmin())
	tok := sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)
}

func TestRequestLoggerLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/meetings/:meeting_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/meetings/m1?agent_id=a1", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := do(r, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "m1", entry.Data["meeting_id"])
	assert.Equal(t, "a1", entry.Data["agent_id"])
	assert.Equal(t, "req-1", entry.Data["request_id"])
}
