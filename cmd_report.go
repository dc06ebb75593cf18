package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"librarian/library"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func newReportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print circulation reports",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	dashboard := &cobra.Command{
		Use:   "dashboard",
		Short: "Catalog and loan totals with recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(lm *library.LibraryManager) error {
				d, err := lm.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), d)
				}
				renderDashboard(cmd.OutOrStdout(), d, lm.Now())
				return nil
			})
		},
	}

	var days, limit int
	topBooks := &cobra.Command{
		Use:   "top-books",
		Short: "Most borrowed books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(lm *library.LibraryManager) error {
				top, err := lm.TopBooks(cmd.Context(), days, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), top)
				}
				fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(fmt.Sprintf("Top books, last %d days", days)))
				fmt.Fprintln(cmd.OutOrStdout(), topBooksTable(top))
				return nil
			})
		},
	}
	topBooks.Flags().IntVar(&days, "days", 30, "window in days")
	topBooks.Flags().IntVar(&limit, "limit", 10, "number of books")

	members := &cobra.Command{
		Use:   "members",
		Short: "Per-member loan statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), func(lm *library.LibraryManager) error {
				stats, err := lm.MemberLoanStats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), memberStatsTable(stats))
				return nil
			})
		},
	}

	cmd.AddCommand(dashboard, topBooks, members)
	return cmd
}

func withManager(ctx context.Context, fn func(lm *library.LibraryManager) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	lm, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer lm.Close()
	return fn(lm)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderDashboard(w io.Writer, d *library.Dashboard, now time.Time) {
	totals := newTable("Books", "Active members", "Active loans", "Overdue").
		Row(strconv.Itoa(d.TotalBooks), strconv.Itoa(d.ActiveMembers), strconv.Itoa(d.ActiveLoans), strconv.Itoa(d.OverdueLoans))
	fmt.Fprintln(w, titleStyle.Render("Dashboard"))
	fmt.Fprintln(w, totals)

	recent := newTable("Loan", "Book", "Member", "Loaned", "Due", "Status")
	for _, l := range d.RecentLoans {
		status := l.Label(now)
		if l.IsOverdue(now) {
			status = alertStyle.Render(fmt.Sprintf("overdue %dd", l.DaysOverdue(now)))
		}
		recent.Row(
			strconv.FormatInt(l.ID, 10),
			l.BookTitle,
			l.MemberName,
			l.LoanedAt.Format("2006-01-02"),
			l.DueAt.Format("2006-01-02"),
			status,
		)
	}
	fmt.Fprintln(w, titleStyle.Render("Recent loans"))
	fmt.Fprintln(w, recent)

	fmt.Fprintln(w, titleStyle.Render("Popular books"))
	fmt.Fprintln(w, topBooksTable(d.PopularBooks))
}

func topBooksTable(top []*library.TopBook) *table.Table {
	t := newTable("#", "Title", "Author", "Loans")
	for i, b := range top {
		t.Row(strconv.Itoa(i+1), b.Title, b.Author, strconv.Itoa(b.LoanCount))
	}
	return t
}

func memberStatsTable(stats []*library.MemberLoanStats) *table.Table {
	t := newTable("ID", "Name", "E-mail", "Total", "Active", "Returned", "Overdue")
	for _, s := range stats {
		t.Row(
			strconv.FormatInt(s.MemberID, 10),
			s.FullName,
			s.Email,
			strconv.Itoa(s.TotalLoans),
			strconv.Itoa(s.ActiveLoans),
			strconv.Itoa(s.ReturnedLoans),
			strconv.Itoa(s.OverdueLoans),
		)
	}
	return t
}
