package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

func (s *Server) loanFilter(c *gin.Context) (library.LoanFilter, bool) {
	var f library.LoanFilter
	status, err := library.ParseLoanFilterStatus(c.Query("status"))
	if err != nil {
		s.respondError(c, err)
		return f, false
	}
	f.Status = status
	var ok bool
	if f.From, ok = queryTime(c, "from"); !ok {
		return f, false
	}
	if f.To, ok = queryTime(c, "to"); !ok {
		return f, false
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return f, false
	}
	f.Limit = limit
	return f, true
}

func (s *Server) handleListLoans(c *gin.Context) {
	f, ok := s.loanFilter(c)
	if !ok {
		return
	}
	memberID, ok := queryInt(c, "member_id")
	if !ok {
		return
	}
	f.MemberID = int64(memberID)
	s.respondLoans(c, f)
}

func (s *Server) respondLoans(c *gin.Context, f library.LoanFilter) {
	loans, err := s.lm.ListLoans(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoanResponses(loans, s.lm.Now()))
}

func (s *Server) handleGetLoan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, history, err := s.lm.GetLoan(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": newLoanResponse(l, s.lm.Now()), "history": history})
}

func (s *Server) respondLoan(c *gin.Context, status int, id int64) {
	l, _, err := s.lm.GetLoan(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, newLoanResponse(l, s.lm.Now()))
}

func (s *Server) handleCreateLoan(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.lm.LoanBook(c.Request.Context(), library.LoanParams{
		CopyID:    req.CopyID,
		MemberID:  req.MemberID,
		CreatedBy: currentMember(c).ID,
		LoanDays:  req.LoanDays,
		Notes:     req.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondLoan(c, http.StatusCreated, id)
}

func (s *Server) handleReturnLoan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req returnRequest
	// An empty body, chunked or not, is a return without fine or notes.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	err := s.lm.ReturnBook(c.Request.Context(), library.ReturnParams{
		LoanID:     id,
		ReturnedBy: currentMember(c).ID,
		FineCents:  req.FineCents,
		Notes:      req.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondLoan(c, http.StatusOK, id)
}

func (s *Server) handleMyLoans(c *gin.Context) {
	f, ok := s.loanFilter(c)
	if !ok {
		return
	}
	f.MemberID = currentMember(c).ID
	s.respondLoans(c, f)
}

func (s *Server) handleMyDashboard(c *gin.Context) {
	dash, err := s.lm.MemberDashboard(c.Request.Context(), currentMember(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	now := s.lm.Now()
	c.JSON(http.StatusOK, memberDashboardResponse{
		Member:      dash.Member,
		Eligibility: dash.Eligibility,
		ActiveLoans: newLoanResponses(dash.ActiveLoans, now),
		History:     newLoanResponses(dash.History, now),
	})
}
