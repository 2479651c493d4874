// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"bookloan/internal/apperr"
	"bookloan/internal/auth"
)

// service implements the Service interface.
type service struct {
	repo         Repository
	availability AvailabilityPort
	users        UserStatusPort
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string

	tracer      trace.Tracer
	borrowed    metric.Int64Counter
	returned    metric.Int64Counter
	compensated metric.Int64Counter
}

// Option configures the circulation service.
type Option func(*service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithIDGenerator replaces the borrowing ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *service) {
		s.newID = newID
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new circulation service instance.
func NewService(repo Repository, availability AvailabilityPort, users UserStatusPort, opts ...Option) Service {
	s := &service{
		repo:         repo,
		availability: availability,
		users:        users,
		logger:       slog.Default(),
		now:          time.Now,
		newID:        uuid.NewString,
		tracer:       otel.Tracer("bookloan/circulation"),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("bookloan/circulation")
	s.borrowed, _ = meter.Int64Counter("circulation.borrowings.created")
	s.returned, _ = meter.Int64Counter("circulation.borrowings.returned")
	s.compensated, _ = meter.Int64Counter("circulation.borrowings.compensated")

	return s
}

// BorrowBook lends bookID to the calling principal.
func (s *service) BorrowBook(ctx context.Context, bookID string) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(attribute.String("book.id", bookID)),
	)
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	if bookID == "" {
		return nil, ErrInvalidBookID
	}

	// Step 1: Validate the patron
	active, err := s.users.IsActive(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user status: %w", err)
	}
	if !active {
		return nil, ErrUserNotActive
	}

	// Step 2: Check book availability
	available, err := s.availability.IsAvailable(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !available {
		return nil, ErrBookNotAvailable
	}

	// Step 3: Record the borrowing
	now := s.now()
	borrowing := &Borrowing{
		ID:         s.newID(),
		BookID:     bookID,
		PatronID:   principal.ID,
		BorrowedAt: now,
		DueAt:      now.Add(LoanPeriod),
		Status:     StatusBorrowed,
	}
	if err := s.repo.Create(ctx, borrowing); err != nil {
		return nil, fmt.Errorf("failed to create borrowing: %w", err)
	}

	// Step 4: Take the book (with compensation)
	marked, err := s.availability.MarkBorrowed(ctx, bookID)
	if err != nil || !marked {
		s.discard(ctx, borrowing)
		if err == nil || errors.Is(err, apperr.ErrInvalidState) {
			return nil, ErrBookNotAvailable
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark book borrowed: %w", err)
	}

	s.borrowed.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book borrowed",
		"borrowing_id", borrowing.ID,
		"book_id", bookID,
		"patron_id", principal.ID,
		"due_at", borrowing.DueAt,
	)
	return borrowing, nil
}

// discard removes a borrowing whose book could not be taken. It runs even if
// the caller has gone away.
func (s *service) discard(ctx context.Context, b *Borrowing) {
	ctx = context.WithoutCancel(ctx)
	s.logger.WarnContext(ctx, "compensating failed borrow: discarding borrowing",
		"borrowing_id", b.ID,
		"book_id", b.BookID,
	)
	if err := s.repo.Discard(ctx, b.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to compensate borrowing",
			"borrowing_id", b.ID,
			"error", err,
		)
		return
	}
	s.compensated.Add(ctx, 1)
}

// ReturnBook closes the caller's borrowing and releases the book.
func (s *service) ReturnBook(ctx context.Context, borrowingID string) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("borrowing.id", borrowingID)),
	)
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}

	// Step 1: Find the borrowing
	borrowing, err := s.repo.Get(ctx, borrowingID)
	if err != nil {
		return nil, err
	}
	if borrowing.PatronID != principal.ID {
		return nil, ErrNotOwner
	}
	if borrowing.Status == StatusReturned {
		return nil, ErrAlreadyReturned
	}

	// Step 2: Close it; a concurrent return loses here
	returned, err := s.repo.MarkReturned(ctx, borrowingID, s.now())
	if err != nil {
		return nil, err
	}

	// Step 3: Release the book
	if _, err := s.availability.MarkAvailable(ctx, returned.BookID); err != nil {
		if !errors.Is(err, apperr.ErrInvalidState) {
			span.RecordError(err)
			s.logger.ErrorContext(ctx, "book left borrowed after return; an admin release is needed",
				"borrowing_id", returned.ID,
				"book_id", returned.BookID,
				"error", err,
			)
			return nil, fmt.Errorf("failed to mark book available: %w", err)
		}
		// The book was already released or deleted; the return itself stands.
		s.logger.WarnContext(ctx, "book was not borrowed on return",
			"borrowing_id", returned.ID,
			"book_id", returned.BookID,
			"error", err,
		)
	}

	s.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book returned",
		"borrowing_id", returned.ID,
		"book_id", returned.BookID,
		"patron_id", principal.ID,
		"overdue", returned.IsOverdue(*returned.ReturnedAt),
	)
	return returned, nil
}

// SearchBorrowings lists borrowings matching filter. Non-admin callers only
// ever see their own borrowings.
func (s *service) SearchBorrowings(ctx context.Context, filter Filter, page Page) (*PageResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.search")
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		filter.PatronID = principal.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	page = page.Normalize()
	items, total, err := s.repo.Search(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return newPageResult(items, page, total), nil
}

// OverdueBorrowings lists borrowings that are past due, either still out or
// returned late.
func (s *service) OverdueBorrowings(ctx context.Context, page Page) (*PageResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.overdue")
	defer span.End()

	page = page.Normalize()
	items, total, err := s.repo.Overdue(ctx, s.now(), page)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("borrowings.overdue", total))
	return newPageResult(items, page, total), nil
}

// ReleaseBook repairs a book left BORROWED by a return whose release step
// failed. It refuses while any borrowing of the book is still open.
func (s *service) ReleaseBook(ctx context.Context, bookID string) error {
	ctx, span := s.tracer.Start(ctx, "circulation.release",
		trace.WithAttributes(attribute.String("book.id", bookID)),
	)
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return apperr.ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return apperr.ErrForbidden
	}
	if bookID == "" {
		return ErrInvalidBookID
	}

	_, open, err := s.repo.Search(ctx, Filter{BookID: bookID, Status: StatusBorrowed}, Page{Size: 1})
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrBookOnLoan
	}

	if _, err := s.availability.MarkAvailable(ctx, bookID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "book released", "book_id", bookID, "admin_id", principal.ID)
	return nil
}
