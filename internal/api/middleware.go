package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eleven-am/todoapi/internal/auth"
)

const (
	principalKey = "principal"
	tokenKey     = "token"

	// cached principals expire this long before their token does
	expirySkew = 5 * time.Second
)

// RequireAuth resolves the bearer token into a principal, consulting the cache first
func (h *Handler) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, tokenString, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
		h.jsonError(c, http.StatusUnauthorized, "Authorization token required")
		return
	}
	tokenString = strings.TrimSpace(tokenString)

	if cached, ok := h.principals.Get(tokenString); ok {
		if p, ok := cached.(*auth.Principal); ok {
			c.Set(principalKey, p)
			c.Set(tokenKey, tokenString)
			c.Next()
			return
		}
	}

	p, expiresAt, err := h.tokens.Parse(tokenString)
	if err != nil {
		h.log.WithError(err).Debug("Rejected token")
		h.jsonError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	ttl := time.Until(expiresAt) - expirySkew
	if ttl > h.opts.CacheTTL {
		ttl = h.opts.CacheTTL
	}
	if ttl > 0 {
		h.principals.Set(tokenString, p, ttl)
	}

	c.Set(principalKey, p)
	c.Set(tokenKey, tokenString)
	c.Next()
}

func principalFrom(c *gin.Context) (*auth.Principal, error) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, errors.New("principal not found in context")
	}
	p, ok := v.(*auth.Principal)
	if !ok {
		return nil, errors.New("invalid principal type in context")
	}
	return p, nil
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	h.log.WithFields(map[string]interface{}{
		"method":  c.Request.Method,
		"path":    c.FullPath(),
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}).Debug("Handled request")
}
