package server

import (
	"context"
	"fmt"
	"time"

	"bookloan/internal/catalog"
	"bookloan/internal/circulation"
	"bookloan/internal/membership"
)

// Demo accounts created by the seed. Their IDs are what the gateway forwards
// in X-User-ID.
const (
	SeedAdminID  = "admin"
	SeedPatronID = "patron"
)

var seedBooks = []struct{ title, author string }{
	{"1984", "George Orwell"},
	{"To Kill a Mockingbird", "Harper Lee"},
	{"The Hobbit", "J.R.R. Tolkien"},
	{"A Brief History of Time", "Stephen Hawking"},
	{"Pride and Prejudice", "Jane Austen"},
}

// seed loads a small consistent library: two members, five books, one
// current borrowing, one overdue borrowing and one late return.
func seed(ctx context.Context, books catalog.Store, members membership.Service, borrowings circulation.Repository, now time.Time) error {
	if _, err := members.AddMember(ctx, SeedAdminID, "admin@example.com", "Library Admin"); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if _, err := members.AddMember(ctx, SeedPatronID, "user@example.com", "Library Patron"); err != nil {
		return fmt.Errorf("seed patron: %w", err)
	}

	ids := make([]string, len(seedBooks))
	for i, b := range seedBooks {
		book := &catalog.Book{
			ID:     fmt.Sprintf("book-%d", i+1),
			Title:  b.title,
			Author: b.author,
			Status: catalog.StatusAvailable,
		}
		if err := books.Create(ctx, book); err != nil {
			return fmt.Errorf("seed book %q: %w", b.title, err)
		}
		ids[i] = book.ID
	}

	day := 24 * time.Hour
	returnedLate := now.Add(-2 * day)
	records := []*circulation.Borrowing{
		{
			ID: "seed-borrowing-1", BookID: ids[0], PatronID: SeedPatronID,
			BorrowedAt: now.Add(-1 * day), DueAt: now.Add(-1 * day).Add(circulation.LoanPeriod),
			Status: circulation.StatusBorrowed,
		},
		{
			ID: "seed-borrowing-2", BookID: ids[2], PatronID: SeedPatronID,
			BorrowedAt: now.Add(-21 * day), DueAt: now.Add(-7 * day),
			Status: circulation.StatusBorrowed,
		},
		{
			ID: "seed-borrowing-3", BookID: ids[1], PatronID: SeedAdminID,
			BorrowedAt: now.Add(-20 * day), DueAt: now.Add(-6 * day),
			ReturnedAt: &returnedLate, Status: circulation.StatusReturned,
		},
	}
	for _, r := range records {
		if err := borrowings.Create(ctx, r); err != nil {
			return fmt.Errorf("seed borrowing %s: %w", r.ID, err)
		}
		if r.Status == circulation.StatusBorrowed {
			if _, err := books.SetStatus(ctx, r.BookID, catalog.StatusBorrowed); err != nil {
				return fmt.Errorf("seed book status %s: %w", r.BookID, err)
			}
		}
	}
	return nil
}
