package app

import (
	"errors"
	"net/http"
	"strings"

	"Gin_postgres_redis_campus_rent/session"

	"github.com/gin-gonic/gin"
)

// gin.Context 中的键
const (
	CtxClaims   = "claims"
	CtxToken    = "token"
	CtxUserID   = "userID"
	CtxUsername = "username"
	CtxRole     = "role"
)

func bearer(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// AuthRequired 校验 Bearer 令牌：
// 缺失 401，已注销 401，过期 401，签名无效 403
func AuthRequired(tokens *session.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			Fail(c, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		claims, err := tokens.Verify(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrTokenRevoked):
			Fail(c, http.StatusUnauthorized, "Please log in again.", nil)
			return
		case errors.Is(err, session.ErrTokenExpired):
			Fail(c, http.StatusUnauthorized, "Token has expired.", nil)
			return
		case errors.Is(err, session.ErrTokenInvalid):
			Fail(c, http.StatusForbidden, "Invalid token", nil)
			return
		default:
			_ = c.Error(err)
			InternalError(c)
			return
		}

		c.Set(CtxClaims, claims)
		c.Set(CtxToken, token)
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// Claims AuthRequired 之后可用
func Claims(c *gin.Context) *session.Claims {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*session.Claims)
	return claims
}
