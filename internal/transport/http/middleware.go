package httptransport

import (
	"github.com/gin-gonic/gin"

	"github.com/xiangmingya/DownloadMusic/internal/domain/session"
)

const claimsContextKey = "session_claims"

// SessionMiddleware 校验会话 Cookie，通过后把身份放进请求上下文。
func SessionMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(manager.CookieName())
		if err != nil || token == "" {
			RespondUnauthorized(c)
			c.Abort()
			return
		}

		claims, err := manager.Identity(token)
		if err != nil {
			RespondUnauthorized(c)
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom 取出中间件写入的会话身份。
func ClaimsFrom(c *gin.Context) (session.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return session.Claims{}, false
	}
	claims, ok := value.(session.Claims)
	return claims, ok
}
