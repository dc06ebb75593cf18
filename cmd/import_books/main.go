// Command import_books seeds the catalog from a JSON file:
//
//	[{"isbn": "...", "title": "...", "author": "...", "copies": [{"shelf": "A-1", "price": 1999}]}]
//
// Books whose ISBN is already in the catalog are skipped, so the file can be
// imported more than once.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"librarian/library"
)

type seedCopy struct {
	Shelf string `json:"shelf"`
	Price *int64 `json:"price"`
	Note  string `json:"note"`
}

type seedBook struct {
	ISBN        string     `json:"isbn"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	PublishYear *int       `json:"publish_year"`
	Category    string     `json:"category"`
	Publisher   string     `json:"publisher"`
	PageCount   *int       `json:"page_count"`
	Language    string     `json:"language"`
	Description string     `json:"description"`
	Copies      []seedCopy `json:"copies"`
}

func (b seedBook) input() library.BookInput {
	return library.BookInput{
		ISBN:        b.ISBN,
		Title:       b.Title,
		Author:      b.Author,
		PublishYear: b.PublishYear,
		Category:    b.Category,
		Publisher:   b.Publisher,
		PageCount:   b.PageCount,
		Language:    b.Language,
		Description: b.Description,
	}
}

type importStats struct {
	books, copies, skipped int
}

func readSeed(path string) ([]seedBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var books []seedBook
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return books, nil
}

func importBooks(ctx context.Context, lm *library.LibraryManager, books []seedBook, logger *log.Logger) (importStats, error) {
	var st importStats
	for _, b := range books {
		existing, err := lm.Database().GetBookByISBN(ctx, b.ISBN)
		switch {
		case err == nil:
			logger.Info("skipping existing book", "isbn", b.ISBN, "title", existing.Title)
			st.skipped++
			continue
		case !errors.Is(err, library.ErrNotFound):
			return st, err
		}

		bookID, err := lm.AddBook(ctx, b.input())
		if err != nil {
			return st, fmt.Errorf("book %q: %w", b.ISBN, err)
		}
		st.books++
		for _, c := range b.Copies {
			in := library.CopyInput{ShelfLocation: c.Shelf, ConditionNote: c.Note, PriceCents: c.Price}
			if _, err := lm.AddCopy(ctx, bookID, in, library.CopyAvailable); err != nil {
				return st, fmt.Errorf("copy of %q: %w", b.ISBN, err)
			}
			st.copies++
		}
		logger.Debug("imported", "isbn", b.ISBN, "title", b.Title, "copies", len(b.Copies))
	}
	return st, nil
}

func main() {
	var dbPath string
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "import_books"})

	cmd := &cobra.Command{
		Use:          "import_books <file.json>",
		Short:        "Seed books and copies from a JSON file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := readSeed(args[0])
			if err != nil {
				return err
			}
			lm, err := library.OpenLibraryManager(dbPath, library.WithLogger(logger))
			if err != nil {
				return err
			}
			defer lm.Close()

			st, err := importBooks(cmd.Context(), lm, books, logger)
			if err != nil {
				return err
			}
			logger.Info("import complete", "books", st.books, "copies", st.copies, "skipped", st.skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "library.db", "SQLite database file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("import failed", "err", err)
		os.Exit(1)
	}
}
