package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.lm.Register(c.Request.Context(), library.MemberInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	}, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sess, m, err := s.lm.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.setCookie(c, sess.Token, int(s.opts.SessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"member": m, "expires_at": sess.ExpiresAt})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.lm.Logout(c.Request.Context(), c.GetString(sessionKey)); err != nil {
		s.respondError(c, err)
		return
	}
	s.clearCookie(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentMember(c))
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.lm.ChangePassword(c.Request.Context(), currentMember(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
