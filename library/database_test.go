package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock shared by a test and its Database.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func tempDB(t *testing.T) (*Database, *testClock) {
	t.Helper()
	clock := newTestClock()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), WithClock(clock.Now))
	require.NoError(t, err, "new db")
	t.Cleanup(func() { db.Close() })
	return db, clock
}

func seedBook(t *testing.T, db *Database, isbn, title, author string) int64 {
	t.Helper()
	id, err := db.AddBook(context.Background(), BookInput{ISBN: isbn, Title: title, Author: author})
	require.NoError(t, err, "add book")
	return id
}

func seedCopy(t *testing.T, db *Database, bookID int64, shelf string) int64 {
	t.Helper()
	id, err := db.AddCopy(context.Background(), bookID, CopyInput{ShelfLocation: shelf}, "")
	require.NoError(t, err, "add copy")
	return id
}

func seedMember(t *testing.T, db *Database, name, email string, limit int) int64 {
	t.Helper()
	in := MemberInput{FullName: name, Email: email}
	if limit > 0 {
		in.MaxLoanLimit = &limit
	}
	id, err := db.AddMember(context.Background(), NewMember{MemberInput: in})
	require.NoError(t, err, "add member")
	return id
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := tempDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Migrate(context.Background()))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lib.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	seedBook(t, db, "978-0", "Kürk Mantolu Madonna", "Sabahattin Ali")
	require.NoError(t, db.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should exist")

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.CountBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "whatever")
	assert.Error(t, err)
}

func TestBookLifecycle(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)

	year := 1943
	id, err := db.AddBook(ctx, BookInput{
		ISBN: "9789750738609", Title: "Kürk Mantolu Madonna", Author: "Sabahattin Ali",
		PublishYear: &year, Category: "Roman",
	})
	require.NoError(t, err)

	b, err := db.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Turkish", b.Language, "language defaults")
	require.NotNil(t, b.Category)
	assert.Equal(t, "Roman", *b.Category)
	assert.Empty(t, b.Copies)

	require.NoError(t, db.UpdateBook(ctx, id, BookInput{Title: "Madonna in a Fur Coat", Author: "Sabahattin Ali", Language: "English"}))
	b, err = db.GetBookByISBN(ctx, "9789750738609")
	require.NoError(t, err)
	assert.Equal(t, "Madonna in a Fur Coat", b.Title)
	assert.Equal(t, "English", b.Language)
	assert.Nil(t, b.Category, "update replaces optional fields")

	err = db.UpdateBook(ctx, 999, BookInput{Title: "x", Author: "y"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetBook(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateISBNIsConflict(t *testing.T) {
	db, _ := tempDB(t)
	seedBook(t, db, "111", "A", "B")
	_, err := db.AddBook(context.Background(), BookInput{ISBN: "111", Title: "C", Author: "D"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDuplicateEmailIsConflict(t *testing.T) {
	db, _ := tempDB(t)
	seedMember(t, db, "Ayşe", "ayse@example.com", 0)
	_, err := db.AddMember(context.Background(), NewMember{MemberInput: MemberInput{FullName: "Other", Email: "AYSE@example.com "}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSearchBooks(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	seedBook(t, db, "100", "Crime and Punishment", "Fyodor Dostoevsky")
	seedBook(t, db, "200", "The Idiot", "Fyodor Dostoevsky")
	seedBook(t, db, "300", "Tutunamayanlar", "Oğuz Atay")
	_, err := db.AddBook(ctx, BookInput{ISBN: "400", Title: "100% Plain", Author: "Anon", Category: "Essays"})
	require.NoError(t, err)

	tests := []struct {
		q    string
		want int
	}{
		{"dostoevsky", 2},
		{"IDIOT", 1},
		{"essays", 1},
		{"300", 1},
		{"100%", 1},
		{"_", 0},
		{"", 4},
		{"nothing here", 0},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			res, err := db.SearchBooks(ctx, tt.q)
			require.NoError(t, err)
			assert.Len(t, res, tt.want)
		})
	}
}

func TestCopyStatusRules(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	bookID := seedBook(t, db, "1", "T", "A")

	_, err := db.AddCopy(ctx, bookID, CopyInput{ShelfLocation: "A-1"}, CopyLoaned)
	assert.ErrorIs(t, err, ErrValidation, "copies cannot be created on loan")

	_, err = db.AddCopy(ctx, 42, CopyInput{ShelfLocation: "A-1"}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	copyID := seedCopy(t, db, bookID, "A-1")
	c, err := db.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, CopyAvailable, c.Status)
	assert.Equal(t, "T", c.BookTitle)

	assert.ErrorIs(t, db.UpdateCopyStatus(ctx, copyID, CopyLoaned, "", 0), ErrValidation)
	assert.ErrorIs(t, db.UpdateCopyStatus(ctx, copyID, "burnt", "", 0), ErrValidation)
	require.NoError(t, db.UpdateCopyStatus(ctx, copyID, CopyMaintenance, "rebinding", 0))

	c, err = db.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, CopyMaintenance, c.Status)
	require.NotNil(t, c.ConditionNote)
	assert.Equal(t, "rebinding", *c.ConditionNote)

	memberID := seedMember(t, db, "M", "m@example.com", 0)
	_, err = db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	assert.ErrorIs(t, err, ErrConflict, "copy under maintenance cannot be lent")

	require.NoError(t, db.UpdateCopyStatus(ctx, copyID, CopyAvailable, "", 0))
	_, err = db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	require.NoError(t, err)

	err = db.UpdateCopyStatus(ctx, copyID, CopyAvailable, "", 0)
	assert.ErrorIs(t, err, ErrConflict, "available while on loan")
	assert.ErrorIs(t, db.DeleteCopy(ctx, copyID), ErrConflict)
}

func TestFlaggingLoanedCopyIsRecordedAndSurvivesReturn(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	bookID := seedBook(t, db, "1", "T", "A")
	copyID := seedCopy(t, db, bookID, "A-1")
	memberID := seedMember(t, db, "M", "m@example.com", 0)
	staffID := seedMember(t, db, "S", "s@example.com", 0)

	loanID, err := db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	require.NoError(t, err)
	require.NoError(t, db.UpdateCopyStatus(ctx, copyID, CopyDamaged, "water damage", staffID))

	require.NoError(t, db.ReturnBook(ctx, ReturnParams{LoanID: loanID, FineCents: 2500}))
	c, err := db.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, CopyDamaged, c.Status, "return keeps the damaged flag")

	h, err := db.LoanHistory(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, ActionLoaned, h[0].Action)
	assert.Equal(t, ActionCopyFlagged, h[1].Action)
	require.NotNil(t, h[1].PerformedBy)
	assert.Equal(t, staffID, *h[1].PerformedBy)
	assert.Equal(t, "damaged", *h[1].NewStatus)
	assert.Equal(t, ActionReturned, h[2].Action)
	assert.Equal(t, "damaged", *h[2].NewStatus)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	bookID := seedBook(t, db, "1", "T", "A")
	copyID := seedCopy(t, db, bookID, "A-1")
	memberID := seedMember(t, db, "M", "m@example.com", 0)

	loanID, err := db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 7})
	require.NoError(t, err)
	assert.ErrorIs(t, db.DeleteBook(ctx, bookID), ErrConflict)

	require.NoError(t, db.ReturnBook(ctx, ReturnParams{LoanID: loanID}))
	require.NoError(t, db.DeleteBook(ctx, bookID))

	_, err = db.GetCopy(ctx, copyID)
	assert.ErrorIs(t, err, ErrNotFound, "copies cascade")
	_, err = db.GetLoan(ctx, loanID)
	assert.ErrorIs(t, err, ErrNotFound, "closed loans cascade")
	assert.ErrorIs(t, db.DeleteBook(ctx, bookID), ErrNotFound)
}

func TestSQLiteDSNForcesPragmas(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "sub", "lib.db")
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"plain path", plain, "file:" + plain + "?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate"},
		{"file uri", "file:" + plain, "file:" + plain + "?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate"},
		{"keeps other params", "file:" + plain + "?cache=shared&_busy_timeout=100", "file:" + plain + "?_busy_timeout=100&_foreign_keys=1&_txlock=immediate&cache=shared"},
		{"overrides weaker settings", "file:" + plain + "?_fk=0&_txlock=deferred", "file:" + plain + "?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sqliteDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := os.Stat(filepath.Join(dir, "sub"))
	assert.NoError(t, err, "parent directory created for plain paths")
}

func TestFileURIKeepsDeleteCascade(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "file:"+filepath.Join(t.TempDir(), "uri.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	bookID := seedBook(t, db, "1", "T", "A")
	seedCopy(t, db, bookID, "A-1")
	require.NoError(t, db.DeleteBook(ctx, bookID))

	var copies int
	require.NoError(t, db.db.GetContext(ctx, &copies, "SELECT COUNT(*) FROM copies"))
	assert.Zero(t, copies)
}

func TestListCopiesFilters(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	b1 := seedBook(t, db, "1", "Alpha", "A")
	b2 := seedBook(t, db, "2", "Beta", "B")
	seedCopy(t, db, b1, "A-1")
	lost := seedCopy(t, db, b1, "A-2")
	seedCopy(t, db, b2, "B-1")
	require.NoError(t, db.UpdateCopyStatus(ctx, lost, CopyLost, "", 0))

	all, err := db.ListCopies(ctx, CopyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Alpha", all[0].BookTitle)

	byBook, err := db.ListCopies(ctx, CopyFilter{BookID: b1})
	require.NoError(t, err)
	assert.Len(t, byBook, 2)

	lostOnly, err := db.ListCopies(ctx, CopyFilter{Status: CopyLost})
	require.NoError(t, err)
	require.Len(t, lostOnly, 1)
	assert.Equal(t, lost, lostOnly[0].ID)

	b, err := db.GetBook(ctx, b1)
	require.NoError(t, err)
	assert.Len(t, b.Copies, 2)
	assert.Equal(t, 1, b.AvailableCopies())
}

func TestMemberAdministrationRules(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)
	bookID := seedBook(t, db, "1", "T", "A")
	copyID := seedCopy(t, db, bookID, "A-1")
	memberID := seedMember(t, db, "M", "m@example.com", 0)
	adminID, err := db.AddMember(ctx, NewMember{MemberInput: MemberInput{FullName: "Root", Email: "root@example.com", Role: RoleAdmin}})
	require.NoError(t, err)

	loanID, err := db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	require.NoError(t, err)

	err = db.SetMemberStatus(ctx, memberID, MemberInactive)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "1 open loan")

	require.NoError(t, db.ReturnBook(ctx, ReturnParams{LoanID: loanID}))
	require.NoError(t, db.SetMemberStatus(ctx, memberID, MemberInactive))
	m, err := db.GetMember(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, MemberInactive, m.Status)

	assert.ErrorIs(t, db.SetMemberStatus(ctx, adminID, MemberInactive), ErrConflict)
	err = db.UpdateMember(ctx, adminID, MemberInput{FullName: "Root", Email: "root@example.com", Role: RoleLibrarian})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, db.UpdateMember(ctx, adminID, MemberInput{FullName: "Root User", Email: "root@example.com"}))

	assert.ErrorIs(t, db.SetMemberStatus(ctx, 404, MemberActive), ErrNotFound)
	assert.ErrorIs(t, db.SetMemberStatus(ctx, memberID, "banned"), ErrValidation)

	active, err := db.ListActiveMembers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, adminID, active[0].ID)
}

func TestLoanLimitZeroSuspendsBorrowing(t *testing.T) {
	ctx := context.Background()
	db, _ := tempDB(t)

	id, err := db.AddMember(ctx, NewMember{MemberInput: MemberInput{FullName: "S", Email: "s@example.com", MaxLoanLimit: ptr(0)}})
	require.NoError(t, err)
	m, err := db.GetMember(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, m.MaxLoanLimit, "explicit zero is stored")
	e, err := db.Eligibility(ctx, id)
	require.NoError(t, err)
	assert.False(t, e.CanBorrow)

	defaulted := seedMember(t, db, "D", "d@example.com", 0)
	m, err = db.GetMember(ctx, defaulted)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLoanLimit, m.MaxLoanLimit, "unset limit gets the default")

	require.NoError(t, db.UpdateMember(ctx, defaulted, MemberInput{FullName: "D", Email: "d@example.com"}))
	m, err = db.GetMember(ctx, defaulted)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLoanLimit, m.MaxLoanLimit, "unset limit is kept on update")

	require.NoError(t, db.UpdateMember(ctx, defaulted, MemberInput{FullName: "D", Email: "d@example.com", MaxLoanLimit: ptr(0)}))
	m, err = db.GetMember(ctx, defaulted)
	require.NoError(t, err)
	assert.Equal(t, 0, m.MaxLoanLimit)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	db, clock := tempDB(t)
	memberID := seedMember(t, db, "M", "m@example.com", 0)

	s, err := db.CreateSession(ctx, memberID, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	got, err := db.GetSession(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, memberID, got.MemberID)

	clock.Advance(2 * time.Hour)
	_, err = db.GetSession(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNotFound, "expired")

	n, err := db.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	s2, err := db.CreateSession(ctx, memberID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.DeleteSession(ctx, s2.Token))
	_, err = db.GetSession(ctx, s2.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresLoanFlow(t *testing.T) {
	dsn := os.Getenv("LIBRARY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIBRARY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, DriverPGX, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	suffix := time.Now().Format("150405.000000")
	bookID, err := db.AddBook(ctx, BookInput{ISBN: "pg-" + suffix, Title: "PG", Author: "A"})
	require.NoError(t, err)
	copyID, err := db.AddCopy(ctx, bookID, CopyInput{ShelfLocation: "PG-1"}, "")
	require.NoError(t, err)
	memberID, err := db.AddMember(ctx, NewMember{MemberInput: MemberInput{FullName: "PG", Email: "pg-" + suffix + "@example.com"}})
	require.NoError(t, err)

	loanID, err := db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	require.NoError(t, err)
	_, err = db.LoanBook(ctx, LoanParams{CopyID: copyID, MemberID: memberID, LoanDays: 14})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, db.ReturnBook(ctx, ReturnParams{LoanID: loanID}))

	stats, err := db.MemberLoanStats(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, stats)
	require.NoError(t, db.DeleteBook(ctx, bookID))
}

func TestUniqueViolationDetection(t *testing.T) {
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}
