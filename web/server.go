// Package web exposes the library over a JSON HTTP API.
package web

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"librarian/library"
)

// Options are the HTTP-facing settings of the API.
type Options struct {
	AllowedOrigins     []string
	CookieName         string
	SecureCookie       bool
	SessionTTL         time.Duration
	LoginRatePerMinute int
	LoginBurst         int
}

// Server holds the dependencies shared by every handler.
type Server struct {
	lm   *library.LibraryManager
	log  *log.Logger
	opts Options
}

// NewRouter builds the gin engine with middleware and every route mounted.
func NewRouter(lm *library.LibraryManager, logger *log.Logger, opts Options) *gin.Engine {
	if opts.CookieName == "" {
		opts.CookieName = "library_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.LoginRatePerMinute <= 0 {
		opts.LoginRatePerMinute = 10
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}
	s := &Server{lm: lm, log: logger, opts: opts}

	r := gin.New()
	r.Use(requestID(), s.requestLogger(), s.recovery())
	r.Use(securityHeaders(opts.SecureCookie))
	// Without configured origins the API is same-origin only.
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)

	api := r.Group("/api", s.loadSession())

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", RateLimit(NewIPRateLimiter(opts.LoginRatePerMinute, opts.LoginBurst)), s.handleLogin)
		auth.POST("/logout", requireMember(), s.handleLogout)
		auth.GET("/me", requireMember(), s.handleMe)
		auth.POST("/password", requireMember(), s.handleChangePassword)
	}

	member := api.Group("", requireMember())
	{
		member.GET("/books", s.handleListBooks)
		member.GET("/books/:id", s.handleGetBook)
		member.GET("/me/loans", s.handleMyLoans)
		member.GET("/me/dashboard", s.handleMyDashboard)
	}

	staff := api.Group("", requireMember(), requireStaff())
	{
		staff.POST("/books", s.handleCreateBook)
		staff.PUT("/books/:id", s.handleUpdateBook)
		staff.DELETE("/books/:id", s.handleDeleteBook)
		staff.POST("/books/:id/copies", s.handleCreateCopy)

		staff.GET("/copies", s.handleListCopies)
		staff.GET("/copies/:id", s.handleGetCopy)
		staff.PUT("/copies/:id", s.handleUpdateCopy)
		staff.PATCH("/copies/:id/status", s.handleUpdateCopyStatus)
		staff.DELETE("/copies/:id", s.handleDeleteCopy)

		staff.GET("/members", s.handleListMembers)
		staff.POST("/members", s.handleCreateMember)
		staff.GET("/members/:id", s.handleGetMember)
		staff.PUT("/members/:id", s.handleUpdateMember)
		staff.PATCH("/members/:id/status", s.handleSetMemberStatus)
		staff.GET("/members/:id/eligibility", s.handleEligibility)

		staff.GET("/loans", s.handleListLoans)
		staff.GET("/loans/:id", s.handleGetLoan)
		staff.POST("/loans", s.handleCreateLoan)
		staff.POST("/loans/:id/return", s.handleReturnLoan)

		staff.GET("/reports/dashboard", s.handleDashboard)
		staff.GET("/reports/top-books", s.handleTopBooks)
		staff.GET("/reports/members", s.handleMemberStats)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "not found"})
	})
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady is stricter than handleHealth: the database must answer.
func (s *Server) handleReady(c *gin.Context) {
	if err := s.lm.Database().Ping(c.Request.Context()); err != nil {
		s.log.Warn("readiness check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "database_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
