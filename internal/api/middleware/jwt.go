package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/yoomeet/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func abort(c *gin.Context, status int, code utils.Code, msg string) {
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg})
}

// AuthConfig is the HS256 verification setup. Issuer and Audience are checked only
// when set.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type meetClaims struct {
	jwt.RegisteredClaims
	AppMetadata map[string]any `json:"app_metadata"` // {"role":"admin"}
}

func (c *meetClaims) appRole() string {
	if v, ok := c.AppMetadata["role"].(string); ok && v != "" {
		return v
	}
	return "user"
}

// JWTAuth verifies the bearer token and sets user_id and role on the context.
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			abort(c, http.StatusInternalServerError, utils.CodeInternal, "auth is not configured")
			return
		}

		raw, ok := bearer(c)
		if !ok {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "missing bearer token")
			return
		}

		claims := &meetClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || tok == nil || !tok.Valid {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid token")
			return
		}

		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid token issuer")
			return
		}
		if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid token audience")
			return
		}
		if claims.Subject == "" {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "missing subject")
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("role", claims.appRole())
		c.Next()
	}
}

// bearer reads the token from the Authorization header, or from the access_token query
// parameter on websocket upgrades where browsers cannot set headers.
func bearer(c *gin.Context) (string, bool) {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		return raw, raw != ""
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		raw := c.Query("access_token")
		return raw, raw != ""
	}
	return "", false
}
