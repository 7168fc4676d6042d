package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/promoscrape/models"
)

// apiKeyContextKey is where Auth stores the accepted key for RateLimit.
const apiKeyContextKey = "api_key"

// Auth checks the caller's API key against apiKeys. The key is read from
// X-API-Key, then from Authorization: Bearer. An empty apiKeys list leaves
// the API open.
func Auth(apiKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := requestAPIKey(c.Request)
		switch {
		case key == "":
			unauthorized(c, "missing API key: send X-API-Key or Authorization: Bearer <key>")
			return
		case !isAllowed(allowed, key):
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}

func isAllowed(allowed map[string]struct{}, key string) bool {
	_, ok := allowed[key]
	return ok
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Code:    models.ErrCodeUnauthorized,
		Message: msg,
	})
}

func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
