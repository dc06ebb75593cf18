package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/library"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestMigrateAndDashboardJSON(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("LIBRARY_DB_DSN", dsn)
	t.Setenv("LIBRARY_LOG_LEVEL", "error")

	runCLI(t, "migrate")

	lm, err := library.OpenLibraryManager(dsn)
	require.NoError(t, err)
	_, err = lm.AddBook(context.Background(), library.BookInput{ISBN: "1", Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	require.NoError(t, lm.Close())

	out := runCLI(t, "report", "dashboard", "--json")
	var d library.Dashboard
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(out, &d))
	assert.Equal(t, 1, d.TotalBooks)
	assert.Zero(t, d.ActiveLoans)
}

func TestReportTopBooksRejectsNegativeDays(t *testing.T) {
	t.Setenv("LIBRARY_DB_DSN", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LIBRARY_LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"report", "top-books", "--days=-3"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, library.ErrValidation)
}

func TestTables(t *testing.T) {
	top := topBooksTable([]*library.TopBook{{BookID: 1, Title: "Dune", Author: "Frank Herbert", LoanCount: 4}}).String()
	assert.Contains(t, top, "Dune")
	assert.Contains(t, top, "Frank Herbert")

	stats := memberStatsTable([]*library.MemberLoanStats{{MemberID: 7, FullName: "Ada", Email: "ada@example.com", TotalLoans: 2}}).String()
	assert.Contains(t, stats, "ada@example.com")

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderDashboard(&buf, &library.Dashboard{
		TotalBooks: 3,
		RecentLoans: []*library.Loan{
			{ID: 1, BookTitle: "Dune", MemberName: "Ada", LoanedAt: now.AddDate(0, 0, -20), DueAt: now.AddDate(0, 0, -6)},
		},
	}, now)
	assert.Contains(t, buf.String(), "overdue 6d")
	assert.True(t, strings.Contains(buf.String(), "Dashboard"))
}

func TestNewLoggerLevels(t *testing.T) {
	assert.Equal(t, "warn", newLogger("warn").GetLevel().String())
	assert.Equal(t, "info", newLogger("nonsense").GetLevel().String())
}
