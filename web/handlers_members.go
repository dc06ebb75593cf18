package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

// canAssign reports whether the caller may give an account role. Only admins
// hand out staff roles.
func canAssign(caller *library.Member, role library.Role) bool {
	return caller.Role == library.RoleAdmin || role == "" || role == library.RoleMember
}

// canManage checks that the caller may change account id, optionally giving
// it role. Staff accounts are managed by admins only. It writes the error
// response itself.
func (s *Server) canManage(c *gin.Context, id int64, role library.Role) bool {
	caller := currentMember(c)
	target, err := s.lm.GetMember(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return false
	}
	if !canAssign(caller, role) || (target.Role.IsStaff() && caller.Role != library.RoleAdmin) {
		c.JSON(http.StatusForbidden, errorBody{Error: "only admins can manage staff accounts"})
		return false
	}
	return true
}

func (s *Server) handleListMembers(c *gin.Context) {
	var (
		members []*library.Member
		err     error
	)
	if c.Query("status") == string(library.MemberActive) {
		members, err = s.lm.ListActiveMembers(c.Request.Context())
	} else {
		members, err = s.lm.ListMembers(c.Request.Context())
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) handleCreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !canAssign(currentMember(c), in.Role) {
		c.JSON(http.StatusForbidden, errorBody{Error: "only admins can create staff accounts"})
		return
	}
	id, err := s.lm.AddMember(c.Request.Context(), in, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondMember(c, http.StatusCreated, id)
}

func (s *Server) respondMember(c *gin.Context, status int, id int64) {
	m, err := s.lm.GetMember(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, m)
}

func (s *Server) handleGetMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.respondMember(c, http.StatusOK, id)
}

func (s *Server) handleUpdateMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !s.canManage(c, id, in.Role) {
		return
	}
	if err := s.lm.UpdateMember(c.Request.Context(), id, in); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondMember(c, http.StatusOK, id)
}

func (s *Server) handleSetMemberStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req memberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := library.ParseMemberStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !s.canManage(c, id, "") {
		return
	}
	if err := s.lm.SetMemberStatus(c.Request.Context(), id, status); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondMember(c, http.StatusOK, id)
}

func (s *Server) handleEligibility(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := s.lm.Eligibility(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
