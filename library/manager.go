package library

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LibraryManager is the circulation desk: it validates requests, applies
// configured defaults and hands the atomic work to the Database.
type LibraryManager struct {
	db  *Database
	log *log.Logger

	defaultLoanDays int
	maxLoanDays     int
	sessionTTL      time.Duration
}

// ManagerOption configures a LibraryManager.
type ManagerOption func(*LibraryManager)

// WithLogger sets the logger used for circulation events.
func WithLogger(l *log.Logger) ManagerOption {
	return func(lm *LibraryManager) { lm.log = l }
}

// WithLoanDays sets the default and maximum loan period in days.
func WithLoanDays(defaultDays, maxDays int) ManagerOption {
	return func(lm *LibraryManager) {
		if defaultDays > 0 {
			lm.defaultLoanDays = defaultDays
		}
		if maxDays > 0 {
			lm.maxLoanDays = maxDays
		}
	}
}

// WithSessionTTL sets how long a login stays valid.
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(lm *LibraryManager) {
		if ttl > 0 {
			lm.sessionTTL = ttl
		}
	}
}

// NewLibraryManager wraps an open, migrated Database.
func NewLibraryManager(db *Database, opts ...ManagerOption) *LibraryManager {
	lm := &LibraryManager{
		db:              db,
		log:             log.Default(),
		defaultLoanDays: DefaultLoanDays,
		maxLoanDays:     90,
		sessionTTL:      12 * time.Hour,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// OpenLibraryManager opens (or creates) the SQLite database at dbPath.
func OpenLibraryManager(dbPath string, opts ...ManagerOption) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return NewLibraryManager(db, opts...), nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the store, for health checks and jobs.
func (lm *LibraryManager) Database() *Database { return lm.db }

// Now is the clock every derived value (overdue, days overdue) is computed
// against.
func (lm *LibraryManager) Now() time.Time { return lm.db.Now() }

// MaxLoanDays is the longest loan period accepted.
func (lm *LibraryManager) MaxLoanDays() int { return lm.maxLoanDays }

// ------------------ Circulation ------------------

// CanBorrow reports whether the member exists, is active and is below their
// loan limit. It has no side effects.
func (lm *LibraryManager) CanBorrow(ctx context.Context, memberID int64) (bool, error) {
	e, err := lm.db.Eligibility(ctx, memberID)
	if err != nil {
		return false, err
	}
	return e.CanBorrow, nil
}

// Eligibility is CanBorrow with the reason spelled out.
func (lm *LibraryManager) Eligibility(ctx context.Context, memberID int64) (Eligibility, error) {
	return lm.db.Eligibility(ctx, memberID)
}

// LoanBook lends a copy. A zero LoanDays uses the configured default.
func (lm *LibraryManager) LoanBook(ctx context.Context, p LoanParams) (int64, error) {
	if p.LoanDays == 0 {
		p.LoanDays = lm.defaultLoanDays
	}
	if p.LoanDays < 1 || p.LoanDays > lm.maxLoanDays {
		return 0, validation("loan period must be between 1 and %d days", lm.maxLoanDays)
	}

	id, err := lm.db.LoanBook(ctx, p)
	if err != nil {
		if errors.Is(err, ErrIneligible) || errors.Is(err, ErrConflict) {
			lm.log.Debug("loan refused", "copy", p.CopyID, "member", p.MemberID, "reason", Reason(err))
		}
		return 0, err
	}
	lm.log.Info("loan created", "loan", id, "copy", p.CopyID, "member", p.MemberID, "days", p.LoanDays)
	return id, nil
}

// ReturnBook closes a loan and records the fine, if any.
func (lm *LibraryManager) ReturnBook(ctx context.Context, p ReturnParams) error {
	if err := lm.db.ReturnBook(ctx, p); err != nil {
		return err
	}
	lm.log.Info("loan returned", "loan", p.LoanID, "fine_cents", p.FineCents)
	return nil
}

// GetLoan returns a loan with its audit trail.
func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, []*LoanHistory, error) {
	l, err := lm.db.GetLoan(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	h, err := lm.db.LoanHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return l, h, nil
}

func (lm *LibraryManager) ListLoans(ctx context.Context, f LoanFilter) ([]*Loan, error) {
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, validation("date range end must be after its start")
	}
	return lm.db.ListLoans(ctx, f)
}

// ------------------ Book helpers ------------------

func validateBook(in BookInput, requireISBN bool) error {
	if requireISBN && strings.TrimSpace(in.ISBN) == "" {
		return validation("ISBN is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return validation("title is required")
	}
	if strings.TrimSpace(in.Author) == "" {
		return validation("author is required")
	}
	if in.PageCount != nil && *in.PageCount < 0 {
		return validation("page count cannot be negative")
	}
	return nil
}

func (lm *LibraryManager) AddBook(ctx context.Context, in BookInput) (int64, error) {
	if err := validateBook(in, true); err != nil {
		return 0, err
	}
	return lm.db.AddBook(ctx, in)
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, id int64, in BookInput) error {
	if err := validateBook(in, false); err != nil {
		return err
	}
	return lm.db.UpdateBook(ctx, id, in)
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	if err := lm.db.DeleteBook(ctx, id); err != nil {
		return err
	}
	lm.log.Info("book deleted", "book", id)
	return nil
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.ListBooks(ctx)
}

func (lm *LibraryManager) SearchBooks(ctx context.Context, q string) ([]*Book, error) {
	return lm.db.SearchBooks(ctx, q)
}

// ------------------ Copy helpers ------------------

func validateCopy(in CopyInput) error {
	if strings.TrimSpace(in.ShelfLocation) == "" {
		return validation("shelf location is required")
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return validation("price cannot be negative")
	}
	return nil
}

func (lm *LibraryManager) AddCopy(ctx context.Context, bookID int64, in CopyInput, status CopyStatus) (int64, error) {
	if err := validateCopy(in); err != nil {
		return 0, err
	}
	return lm.db.AddCopy(ctx, bookID, in, status)
}

func (lm *LibraryManager) UpdateCopy(ctx context.Context, id int64, in CopyInput) error {
	if err := validateCopy(in); err != nil {
		return err
	}
	return lm.db.UpdateCopy(ctx, id, in)
}

func (lm *LibraryManager) UpdateCopyStatus(ctx context.Context, id int64, status CopyStatus, note string, performedBy int64) error {
	if err := lm.db.UpdateCopyStatus(ctx, id, status, note, performedBy); err != nil {
		return err
	}
	lm.log.Info("copy status changed", "copy", id, "status", status)
	return nil
}

func (lm *LibraryManager) DeleteCopy(ctx context.Context, id int64) error {
	return lm.db.DeleteCopy(ctx, id)
}

func (lm *LibraryManager) GetCopy(ctx context.Context, id int64) (*Copy, error) {
	return lm.db.GetCopy(ctx, id)
}

func (lm *LibraryManager) ListCopies(ctx context.Context, f CopyFilter) ([]*Copy, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation("unknown copy status %q", f.Status)
	}
	return lm.db.ListCopies(ctx, f)
}

// ListAvailableCopies returns the copies that can be lent right now.
func (lm *LibraryManager) ListAvailableCopies(ctx context.Context) ([]*Copy, error) {
	return lm.db.ListCopies(ctx, CopyFilter{Status: CopyAvailable})
}

// ------------------ Member helpers ------------------

func validateMember(in MemberInput) error {
	if strings.TrimSpace(in.FullName) == "" {
		return validation("full name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return validation("%q is not a valid e-mail address", in.Email)
	}
	if in.Role != "" && !in.Role.Valid() {
		return validation("unknown role %q", in.Role)
	}
	if in.MaxLoanLimit != nil && *in.MaxLoanLimit < 0 {
		return validation("loan limit cannot be negative")
	}
	return nil
}

// AddMember creates an account on behalf of staff. An empty password leaves
// the account unable to sign in until one is set.
func (lm *LibraryManager) AddMember(ctx context.Context, in MemberInput, password string) (int64, error) {
	if err := validateMember(in); err != nil {
		return 0, err
	}
	nm := NewMember{MemberInput: in}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return 0, err
		}
		nm.PasswordHash = hash
	}
	id, err := lm.db.AddMember(ctx, nm)
	if err != nil {
		return 0, err
	}
	lm.log.Info("member created", "member", id, "role", nm.Role)
	return id, nil
}

// Register is self-service sign-up. The account always gets the member role.
func (lm *LibraryManager) Register(ctx context.Context, in MemberInput, password string) (*Member, error) {
	if password == "" {
		return nil, validation("password is required")
	}
	in.Role = RoleMember
	in.MaxLoanLimit = nil
	id, err := lm.AddMember(ctx, in, password)
	if err != nil {
		return nil, err
	}
	return lm.db.GetMember(ctx, id)
}

func (lm *LibraryManager) UpdateMember(ctx context.Context, id int64, in MemberInput) error {
	if err := validateMember(in); err != nil {
		return err
	}
	return lm.db.UpdateMember(ctx, id, in)
}

// SetMemberStatus activates or deactivates an account. A deactivated member
// is signed out everywhere.
func (lm *LibraryManager) SetMemberStatus(ctx context.Context, id int64, status MemberStatus) error {
	if err := lm.db.SetMemberStatus(ctx, id, status); err != nil {
		return err
	}
	if status == MemberInactive {
		if err := lm.db.DeleteMemberSessions(ctx, id); err != nil {
			return err
		}
	}
	lm.log.Info("member status changed", "member", id, "status", status)
	return nil
}

func (lm *LibraryManager) GetMember(ctx context.Context, id int64) (*Member, error) {
	return lm.db.GetMember(ctx, id)
}

func (lm *LibraryManager) ListMembers(ctx context.Context) ([]*Member, error) {
	return lm.db.ListMembers(ctx)
}

func (lm *LibraryManager) ListActiveMembers(ctx context.Context) ([]*Member, error) {
	return lm.db.ListActiveMembers(ctx)
}

// ------------------ Authentication ------------------

var errBadLogin = newError([]error{ErrInvalidCredentials}, "invalid e-mail or password")

// Authenticate checks an e-mail and password pair. Unknown e-mails, wrong
// passwords and inactive accounts all fail with ErrInvalidCredentials.
func (lm *LibraryManager) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	m, err := lm.db.GetMemberByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		checkPassword("", password)
		return nil, errBadLogin
	}
	if err != nil {
		return nil, err
	}
	if !checkPassword(m.PasswordHash, password) {
		return nil, errBadLogin
	}
	if m.Status != MemberActive {
		return nil, newError([]error{ErrInvalidCredentials}, "account is inactive")
	}
	return m, nil
}

// Login authenticates and opens a session.
func (lm *LibraryManager) Login(ctx context.Context, email, password string) (*Session, *Member, error) {
	m, err := lm.Authenticate(ctx, email, password)
	if err != nil {
		lm.log.Debug("login failed", "email", normalizeEmail(email))
		return nil, nil, err
	}
	s, err := lm.db.CreateSession(ctx, m.ID, lm.sessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return s, m, nil
}

// SessionMember resolves a session token to its active member.
func (lm *LibraryManager) SessionMember(ctx context.Context, token string) (*Member, error) {
	if token == "" {
		return nil, notFound("no session")
	}
	s, err := lm.db.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	m, err := lm.db.GetMember(ctx, s.MemberID)
	if err != nil {
		return nil, err
	}
	if m.Status != MemberActive {
		return nil, notFound("session not found or expired")
	}
	return m, nil
}

func (lm *LibraryManager) Logout(ctx context.Context, token string) error {
	return lm.db.DeleteSession(ctx, token)
}

// ChangePassword replaces the member's password after verifying the current
// one.
func (lm *LibraryManager) ChangePassword(ctx context.Context, memberID int64, current, next string) error {
	m, err := lm.db.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	if !checkPassword(m.PasswordHash, current) {
		return newError([]error{ErrInvalidCredentials}, "current password is incorrect")
	}
	return lm.ResetPassword(ctx, memberID, next)
}

// ResetPassword sets a new password without checking the old one. It is
// meant for staff tooling.
func (lm *LibraryManager) ResetPassword(ctx context.Context, memberID int64, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return lm.db.SetPassword(ctx, memberID, hash)
}

// PurgeExpiredSessions removes sessions past their expiry.
func (lm *LibraryManager) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return lm.db.DeleteExpiredSessions(ctx)
}

// ------------------ Reports ------------------

// TopBooks ranks books by loans in the last days days. Zero values fall back
// to 30 days and 10 rows.
func (lm *LibraryManager) TopBooks(ctx context.Context, days, limit int) ([]*TopBook, error) {
	if days < 0 || limit < 0 {
		return nil, validation("days and limit cannot be negative")
	}
	if days == 0 {
		days = 30
	}
	if limit == 0 {
		limit = 10
	}
	return lm.db.TopBooks(ctx, time.Duration(days)*24*time.Hour, limit)
}

func (lm *LibraryManager) MemberLoanStats(ctx context.Context) ([]*MemberLoanStats, error) {
	return lm.db.MemberLoanStats(ctx)
}

func (lm *LibraryManager) Dashboard(ctx context.Context) (*Dashboard, error) {
	return lm.db.Dashboard(ctx)
}

func (lm *LibraryManager) MemberDashboard(ctx context.Context, memberID int64) (*MemberDashboard, error) {
	return lm.db.MemberDashboard(ctx, memberID)
}
