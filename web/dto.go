package web

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

type registerRequest struct {
	FullName string `json:"full_name" binding:"required,max=200"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Phone    string `json:"phone" binding:"max=50"`
	Address  string `json:"address" binding:"max=500"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

type bookRequest struct {
	ISBN        string `json:"isbn" binding:"max=20"`
	Title       string `json:"title" binding:"required,max=300"`
	Author      string `json:"author" binding:"required,max=200"`
	PublishYear *int   `json:"publish_year" binding:"omitempty,min=0,max=3000"`
	Category    string `json:"category" binding:"max=100"`
	Publisher   string `json:"publisher" binding:"max=200"`
	PageCount   *int   `json:"page_count" binding:"omitempty,min=0"`
	Language    string `json:"language" binding:"max=50"`
	Description string `json:"description" binding:"max=4000"`
}

func (r bookRequest) input() library.BookInput {
	return library.BookInput{
		ISBN:        r.ISBN,
		Title:       r.Title,
		Author:      r.Author,
		PublishYear: r.PublishYear,
		Category:    r.Category,
		Publisher:   r.Publisher,
		PageCount:   r.PageCount,
		Language:    r.Language,
		Description: r.Description,
	}
}

type copyRequest struct {
	ShelfLocation string     `json:"shelf_location" binding:"required,max=50"`
	ConditionNote string     `json:"condition_note" binding:"max=500"`
	AcquiredAt    *time.Time `json:"acquired_at"`
	PriceCents    *int64     `json:"price_cents" binding:"omitempty,min=0"`
	Status        string     `json:"status"`
}

func (r copyRequest) input() library.CopyInput {
	return library.CopyInput{
		ShelfLocation: r.ShelfLocation,
		ConditionNote: r.ConditionNote,
		AcquiredAt:    r.AcquiredAt,
		PriceCents:    r.PriceCents,
	}
}

type copyStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note" binding:"max=500"`
}

type memberRequest struct {
	FullName     string     `json:"full_name" binding:"required,max=200"`
	Email        string     `json:"email" binding:"required,email"`
	Password     string     `json:"password" binding:"omitempty,min=6,max=72"`
	Phone        string     `json:"phone" binding:"max=50"`
	Address      string     `json:"address" binding:"max=500"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	Role         string     `json:"role"`
	MaxLoanLimit *int       `json:"max_loan_limit" binding:"omitempty,min=0,max=100"`
}

func (r memberRequest) input() (library.MemberInput, error) {
	in := library.MemberInput{
		FullName:     r.FullName,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		DateOfBirth:  r.DateOfBirth,
		MaxLoanLimit: r.MaxLoanLimit,
	}
	if r.Role != "" {
		role, err := library.ParseRole(r.Role)
		if err != nil {
			return in, err
		}
		in.Role = role
	}
	return in, nil
}

type memberStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type loanRequest struct {
	CopyID   int64  `json:"copy_id" binding:"required,min=1"`
	MemberID int64  `json:"member_id" binding:"required,min=1"`
	LoanDays int    `json:"loan_days" binding:"omitempty,min=1"`
	Notes    string `json:"notes" binding:"max=500"`
}

type returnRequest struct {
	FineCents int64  `json:"fine_cents" binding:"min=0"`
	Notes     string `json:"notes" binding:"max=500"`
}

// loanResponse adds the values derived from the clock at response time.
type loanResponse struct {
	*library.Loan
	Status      string `json:"status"`
	IsOverdue   bool   `json:"is_overdue"`
	DaysOverdue int    `json:"days_overdue"`
}

func newLoanResponse(l *library.Loan, now time.Time) loanResponse {
	return loanResponse{
		Loan:        l,
		Status:      l.Label(now),
		IsOverdue:   l.IsOverdue(now),
		DaysOverdue: l.DaysOverdue(now),
	}
}

func newLoanResponses(loans []*library.Loan, now time.Time) []loanResponse {
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, newLoanResponse(l, now))
	}
	return out
}

type bookResponse struct {
	*library.Book
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

type dashboardResponse struct {
	TotalBooks    int                `json:"total_books"`
	ActiveMembers int                `json:"active_members"`
	ActiveLoans   int                `json:"active_loans"`
	OverdueLoans  int                `json:"overdue_loans"`
	RecentLoans   []loanResponse     `json:"recent_loans"`
	PopularBooks  []*library.TopBook `json:"popular_books"`
}

type memberDashboardResponse struct {
	Member      *library.Member     `json:"member"`
	Eligibility library.Eligibility `json:"eligibility"`
	ActiveLoans []loanResponse      `json:"active_loans"`
	History     []loanResponse      `json:"history"`
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c *gin.Context, name string) (int, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}

// queryTime accepts RFC 3339 timestamps or plain dates (taken as UTC
// midnight).
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	badRequest(c, "invalid "+name+": use YYYY-MM-DD or RFC 3339")
	return nil, false
}
