package library

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*LibraryManager, *testClock) {
	t.Helper()
	db, clock := tempDB(t)
	return NewLibraryManager(db, WithLogger(log.New(io.Discard)), WithLoanDays(14, 60), WithSessionTTL(time.Hour)), clock
}

func TestManagerLoanDefaults(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)
	bookID, err := mgr.AddBook(ctx, BookInput{ISBN: "1", Title: "T", Author: "A"})
	require.NoError(t, err)
	copyID, err := mgr.AddCopy(ctx, bookID, CopyInput{ShelfLocation: "A-1"}, "")
	require.NoError(t, err)
	memberID, err := mgr.AddMember(ctx, MemberInput{FullName: "M", Email: "m@example.com"}, "")
	require.NoError(t, err)

	ok, err := mgr.CanBorrow(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = mgr.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 61})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = mgr.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: -1})
	assert.ErrorIs(t, err, ErrValidation)

	loanID, err := mgr.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID})
	require.NoError(t, err)
	l, history, err := mgr.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.True(t, l.DueAt.Equal(clock.Now().Add(14*24*time.Hour)), "default loan period")
	assert.Len(t, history, 1)

	require.NoError(t, mgr.ReturnBook(ctx, ReturnParams{LoanID: loanID}))
	available, err := mgr.ListAvailableCopies(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestManagerValidation(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	_, err := mgr.AddBook(ctx, BookInput{Title: "T", Author: "A"})
	assert.ErrorIs(t, err, ErrValidation, "missing ISBN")
	_, err = mgr.AddBook(ctx, BookInput{ISBN: "1", Author: "A"})
	assert.ErrorIs(t, err, ErrValidation, "missing title")

	bookID, err := mgr.AddBook(ctx, BookInput{ISBN: "1", Title: "T", Author: "A"})
	require.NoError(t, err)
	_, err = mgr.AddCopy(ctx, bookID, CopyInput{}, "")
	assert.ErrorIs(t, err, ErrValidation, "missing shelf")
	price := int64(-5)
	_, err = mgr.AddCopy(ctx, bookID, CopyInput{ShelfLocation: "A", PriceCents: &price}, "")
	assert.ErrorIs(t, err, ErrValidation, "negative price")

	_, err = mgr.AddMember(ctx, MemberInput{FullName: "M", Email: "not-an-email"}, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = mgr.AddMember(ctx, MemberInput{FullName: "M", Email: "m@example.com"}, "123")
	assert.ErrorIs(t, err, ErrValidation, "short password")
	_, err = mgr.AddMember(ctx, MemberInput{FullName: "M", Email: "m@example.com", Role: "owner"}, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mgr.TopBooks(ctx, -1, 0)
	assert.ErrorIs(t, err, ErrValidation)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = mgr.ListLoans(ctx, LoanFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)

	m, err := mgr.Register(ctx, MemberInput{FullName: "Zeynep", Email: "Zeynep@Example.com", Role: RoleAdmin, MaxLoanLimit: ptr(50)}, "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, m.Role, "self-registration cannot pick a role")
	assert.Equal(t, DefaultMaxLoanLimit, m.MaxLoanLimit)
	assert.Equal(t, "zeynep@example.com", m.Email)
	assert.NotEqual(t, "s3cret!", m.PasswordHash)

	_, err = mgr.Register(ctx, MemberInput{FullName: "Dup", Email: "zeynep@example.com"}, "another1")
	assert.ErrorIs(t, err, ErrConflict)

	_, _, err = mgr.Login(ctx, "zeynep@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = mgr.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, who, err := mgr.Login(ctx, "ZEYNEP@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, m.ID, who.ID)

	current, err := mgr.SessionMember(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, m.ID, current.ID)

	require.NoError(t, mgr.Logout(ctx, s.Token))
	_, err = mgr.SessionMember(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	s, _, err = mgr.Login(ctx, "zeynep@example.com", "s3cret!")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = mgr.SessionMember(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNotFound, "session ttl")

	purged, err := mgr.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestStaffCreatedMemberWithoutPasswordCannotLogin(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	_, err := mgr.AddMember(ctx, MemberInput{FullName: "M", Email: "m@example.com"}, "")
	require.NoError(t, err)
	_, err = mgr.Authenticate(ctx, "m@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestInactiveMemberIsSignedOut(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	m, err := mgr.Register(ctx, MemberInput{FullName: "M", Email: "m@example.com"}, "password")
	require.NoError(t, err)
	s, _, err := mgr.Login(ctx, "m@example.com", "password")
	require.NoError(t, err)

	require.NoError(t, mgr.SetMemberStatus(ctx, m.ID, MemberInactive))
	_, err = mgr.SessionMember(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mgr.Authenticate(ctx, "m@example.com", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "account is inactive", err.Error())
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	m, err := mgr.Register(ctx, MemberInput{FullName: "M", Email: "m@example.com"}, "password")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.ChangePassword(ctx, m.ID, "wrong", "newpassword"), ErrInvalidCredentials)
	assert.ErrorIs(t, mgr.ChangePassword(ctx, m.ID, "password", "short"), ErrValidation)
	require.NoError(t, mgr.ChangePassword(ctx, m.ID, "password", "newpassword"))

	_, err = mgr.Authenticate(ctx, "m@example.com", "newpassword")
	require.NoError(t, err)

	require.NoError(t, mgr.ResetPassword(ctx, m.ID, "reset-by-staff"))
	_, err = mgr.Authenticate(ctx, "m@example.com", "reset-by-staff")
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.ResetPassword(ctx, 999, "whatever"), ErrNotFound)
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)

	popular, err := mgr.AddBook(ctx, BookInput{ISBN: "1", Title: "Popular", Author: "A"})
	require.NoError(t, err)
	niche, err := mgr.AddBook(ctx, BookInput{ISBN: "2", Title: "Niche", Author: "B"})
	require.NoError(t, err)
	_, err = mgr.AddBook(ctx, BookInput{ISBN: "3", Title: "Unread", Author: "C"})
	require.NoError(t, err)

	alice, err := mgr.AddMember(ctx, MemberInput{FullName: "Alice", Email: "alice@example.com", MaxLoanLimit: ptr(5)}, "")
	require.NoError(t, err)
	bob, err := mgr.AddMember(ctx, MemberInput{FullName: "Bob", Email: "bob@example.com"}, "")
	require.NoError(t, err)
	_, err = mgr.AddMember(ctx, MemberInput{FullName: "Carol", Email: "carol@example.com"}, "")
	require.NoError(t, err)

	lend := func(bookID, memberID int64, days int) int64 {
		copyID, err := mgr.AddCopy(ctx, bookID, CopyInput{ShelfLocation: "S"}, "")
		require.NoError(t, err)
		id, err := mgr.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: days})
		require.NoError(t, err)
		return id
	}

	// An old loan that falls outside the 30 day window.
	old := lend(niche, bob, 14)
	require.NoError(t, mgr.ReturnBook(ctx, ReturnParams{LoanID: old}))
	clock.Advance(40 * 24 * time.Hour)

	lend(popular, alice, 1)
	lend(popular, alice, 14)
	r := lend(popular, bob, 14)
	require.NoError(t, mgr.ReturnBook(ctx, ReturnParams{LoanID: r}))
	lend(niche, alice, 14)
	clock.Advance(2 * 24 * time.Hour)

	top, err := mgr.TopBooks(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Popular", top[0].Title)
	assert.Equal(t, 3, top[0].LoanCount)
	assert.Equal(t, 1, top[1].LoanCount, "the old loan is outside the window")

	allTime, err := mgr.TopBooks(ctx, 365, 1)
	require.NoError(t, err)
	require.Len(t, allTime, 1)
	assert.Equal(t, popular, allTime[0].BookID)

	stats, err := mgr.MemberLoanStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2, "members without loans are left out")
	assert.Equal(t, alice, stats[0].MemberID)
	assert.Equal(t, 3, stats[0].TotalLoans)
	assert.Equal(t, 3, stats[0].ActiveLoans)
	assert.Equal(t, 0, stats[0].ReturnedLoans)
	assert.Equal(t, 1, stats[0].OverdueLoans)
	assert.Equal(t, bob, stats[1].MemberID)
	assert.Equal(t, 2, stats[1].ReturnedLoans)

	dash, err := mgr.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.TotalBooks)
	assert.Equal(t, 3, dash.ActiveMembers)
	assert.Equal(t, 3, dash.ActiveLoans)
	assert.Equal(t, 1, dash.OverdueLoans)
	assert.Len(t, dash.RecentLoans, 5)
	assert.Equal(t, "Popular", dash.PopularBooks[0].Title)

	md, err := mgr.MemberDashboard(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, md.ActiveLoans)
	assert.Len(t, md.History, 2)
	assert.True(t, md.Eligibility.CanBorrow)

	_, err = mgr.MemberDashboard(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
