package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"librarian/library"
)

const (
	requestIDKey  = "request_id"
	memberKey     = "member"
	sessionKey    = "session_token"
	requestHeader = "X-Request-ID"
)

// requestID propagates an incoming X-Request-ID or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.log.Error("panic", "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
	})
}

func securityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// loadSession resolves the session cookie, if any, to a member. Requests
// without a valid session continue anonymously.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(s.opts.CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		m, err := s.lm.SessionMember(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(memberKey, m)
			c.Set(sessionKey, token)
		case statusFor(err) == http.StatusNotFound:
			s.clearCookie(c)
		default:
			s.respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentMember(c *gin.Context) *library.Member {
	if v, ok := c.Get(memberKey); ok {
		if m, ok := v.(*library.Member); ok {
			return m
		}
	}
	return nil
}

func requireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentMember(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "sign in required"})
			return
		}
		c.Next()
	}
}

func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m := currentMember(c); m == nil || !m.Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "staff only"})
			return
		}
		c.Next()
	}
}

func (s *Server) setCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.CookieName, token, maxAge, "/", "", s.opts.SecureCookie, true)
}

func (s *Server) clearCookie(c *gin.Context) { s.setCookie(c, "", -1) }
