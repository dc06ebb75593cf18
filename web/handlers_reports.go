package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleDashboard(c *gin.Context) {
	dash, err := s.lm.Dashboard(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardResponse{
		TotalBooks:    dash.TotalBooks,
		ActiveMembers: dash.ActiveMembers,
		ActiveLoans:   dash.ActiveLoans,
		OverdueLoans:  dash.OverdueLoans,
		RecentLoans:   newLoanResponses(dash.RecentLoans, s.lm.Now()),
		PopularBooks:  dash.PopularBooks,
	})
}

func (s *Server) handleTopBooks(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	top, err := s.lm.TopBooks(c.Request.Context(), days, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

func (s *Server) handleMemberStats(c *gin.Context) {
	stats, err := s.lm.MemberLoanStats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
