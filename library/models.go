package library

import (
	"math"
	"time"
)

// Book is a catalog title. Physical copies hang off it.
type Book struct {
	ID          int64     `db:"id" json:"id"`
	ISBN        string    `db:"isbn" json:"isbn"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	PublishYear *int      `db:"publish_year" json:"publish_year,omitempty"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Publisher   *string   `db:"publisher" json:"publisher,omitempty"`
	PageCount   *int      `db:"page_count" json:"page_count,omitempty"`
	Language    string    `db:"language" json:"language"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Filled by GetBook only.
	Copies []*Copy `db:"-" json:"copies,omitempty"`
}

// AvailableCopies counts the copies that can be lent right now.
func (b *Book) AvailableCopies() int {
	n := 0
	for _, c := range b.Copies {
		if c.Status == CopyAvailable {
			n++
		}
	}
	return n
}

// Copy is one physical, individually loanable instance of a Book.
type Copy struct {
	ID            int64      `db:"id" json:"id"`
	BookID        int64      `db:"book_id" json:"book_id"`
	ShelfLocation string     `db:"shelf_location" json:"shelf_location"`
	Status        CopyStatus `db:"status" json:"status"`
	ConditionNote *string    `db:"condition_note" json:"condition_note,omitempty"`
	AcquiredAt    *time.Time `db:"acquired_at" json:"acquired_at,omitempty"`
	PriceCents    *int64     `db:"price_cents" json:"price_cents,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// Joined from books when listing copies.
	BookTitle  string `db:"book_title" json:"book_title,omitempty"`
	BookAuthor string `db:"book_author" json:"book_author,omitempty"`
}

// Member is a registered library user, staff included.
type Member struct {
	ID           int64        `db:"id" json:"id"`
	FullName     string       `db:"full_name" json:"full_name"`
	Email        string       `db:"email" json:"email"`
	Phone        *string      `db:"phone" json:"phone,omitempty"`
	Address      *string      `db:"address" json:"address,omitempty"`
	DateOfBirth  *time.Time   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	JoinedAt     time.Time    `db:"joined_at" json:"joined_at"`
	Status       MemberStatus `db:"status" json:"status"`
	Role         Role         `db:"role" json:"role"`
	PasswordHash string       `db:"password_hash" json:"-"` // Don't serialize password hash
	MaxLoanLimit int          `db:"max_loan_limit" json:"max_loan_limit"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`

	OpenLoans int `db:"open_loans" json:"open_loans"`
}

// Loan records one copy lent to one member.
type Loan struct {
	ID         int64      `db:"id" json:"id"`
	CopyID     int64      `db:"copy_id" json:"copy_id"`
	MemberID   int64      `db:"member_id" json:"member_id"`
	LoanedAt   time.Time  `db:"loaned_at" json:"loaned_at"`
	DueAt      time.Time  `db:"due_at" json:"due_at"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at"`
	FineCents  int64      `db:"fine_cents" json:"fine_cents"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy  *int64     `db:"created_by" json:"created_by,omitempty"`
	ReturnedBy *int64     `db:"returned_by" json:"returned_by,omitempty"`

	BookID        int64  `db:"book_id" json:"book_id"`
	BookTitle     string `db:"book_title" json:"book_title"`
	BookAuthor    string `db:"book_author" json:"book_author"`
	ISBN          string `db:"isbn" json:"isbn"`
	ShelfLocation string `db:"shelf_location" json:"shelf_location"`
	MemberName    string `db:"member_name" json:"member_name"`
	MemberEmail   string `db:"member_email" json:"member_email"`
}

// IsOpen is true until the loan has been returned.
func (l *Loan) IsOpen() bool { return l.ReturnedAt == nil }

// State returns the lifecycle state of the loan.
func (l *Loan) State() LoanState {
	if l.IsOpen() {
		return LoanOpen
	}
	return LoanReturned
}

// IsOverdue reports whether the loan is open and its due time has passed.
// It is derived from now on every call and must not be cached.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsOpen() && now.After(l.DueAt)
}

// DaysOverdue is the number of whole days past due, zero if not overdue.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return int(math.Floor(now.Sub(l.DueAt).Hours() / 24))
}

// Label is the status shown to people: active, overdue or returned.
func (l *Loan) Label(now time.Time) string {
	switch {
	case !l.IsOpen():
		return "returned"
	case l.IsOverdue(now):
		return "overdue"
	default:
		return "active"
	}
}

// LoanHistory is one append-only audit row of a loan.
type LoanHistory struct {
	ID          int64         `db:"id" json:"id"`
	LoanID      int64         `db:"loan_id" json:"loan_id"`
	Action      HistoryAction `db:"action" json:"action"`
	ActionAt    time.Time     `db:"action_at" json:"action_at"`
	PerformedBy *int64        `db:"performed_by" json:"performed_by,omitempty"`
	OldStatus   *string       `db:"old_status" json:"old_status,omitempty"`
	NewStatus   *string       `db:"new_status" json:"new_status,omitempty"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
}

// Session ties a login cookie to a member.
type Session struct {
	Token     string    `db:"token" json:"-"`
	MemberID  int64     `db:"member_id" json:"member_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// LoanFilter narrows ListLoans. Zero values mean "no restriction".
type LoanFilter struct {
	Status   LoanFilterStatus
	MemberID int64
	From     *time.Time // loaned at or after
	To       *time.Time // loaned before
	Limit    int
}

// Eligibility explains whether a member can borrow right now.
type Eligibility struct {
	MemberID  int64  `json:"member_id"`
	CanBorrow bool   `json:"can_borrow"`
	Reason    string `json:"reason,omitempty"`
	OpenLoans int    `json:"open_loans"`
	Limit     int    `json:"limit"`
}
