package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

func (s *Server) handleListBooks(c *gin.Context) {
	books, err := s.lm.SearchBooks(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) respondBook(c *gin.Context, status int, id int64) {
	b, err := s.lm.GetBook(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, bookResponse{Book: b, TotalCopies: len(b.Copies), AvailableCopies: b.AvailableCopies()})
}

func (s *Server) handleGetBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.respondBook(c, http.StatusOK, id)
}

func (s *Server) handleCreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.lm.AddBook(c.Request.Context(), req.input())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondBook(c, http.StatusCreated, id)
}

func (s *Server) handleUpdateBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.lm.UpdateBook(c.Request.Context(), id, req.input()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondBook(c, http.StatusOK, id)
}

func (s *Server) handleDeleteBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.DeleteBook(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateCopy(c *gin.Context) {
	bookID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req copyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var status library.CopyStatus
	if req.Status != "" {
		var err error
		if status, err = library.ParseCopyStatus(req.Status); err != nil {
			s.respondError(c, err)
			return
		}
	}
	id, err := s.lm.AddCopy(c.Request.Context(), bookID, req.input(), status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondCopy(c, http.StatusCreated, id)
}

func (s *Server) respondCopy(c *gin.Context, status int, id int64) {
	cp, err := s.lm.GetCopy(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, cp)
}

func (s *Server) handleListCopies(c *gin.Context) {
	var f library.CopyFilter
	if v := c.Query("status"); v != "" {
		status, err := library.ParseCopyStatus(v)
		if err != nil {
			s.respondError(c, err)
			return
		}
		f.Status = status
	}
	bookID, ok := queryInt(c, "book_id")
	if !ok {
		return
	}
	f.BookID = int64(bookID)

	copies, err := s.lm.ListCopies(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, copies)
}

func (s *Server) handleGetCopy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.respondCopy(c, http.StatusOK, id)
}

func (s *Server) handleUpdateCopy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req copyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.lm.UpdateCopy(c.Request.Context(), id, req.input()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondCopy(c, http.StatusOK, id)
}

func (s *Server) handleUpdateCopyStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req copyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := library.ParseCopyStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.lm.UpdateCopyStatus(c.Request.Context(), id, status, req.Note, currentMember(c).ID); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondCopy(c, http.StatusOK, id)
}

func (s *Server) handleDeleteCopy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.DeleteCopy(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
