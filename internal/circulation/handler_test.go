package circulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	borrowBook        func(ctx context.Context, bookID string) (*Borrowing, error)
	returnBook        func(ctx context.Context, id string) (*Borrowing, error)
	searchBorrowings  func(ctx context.Context, f Filter, p Page) (*PageResult, error)
	overdueBorrowings func(ctx context.Context, p Page) (*PageResult, error)
	releaseBook       func(ctx context.Context, bookID string) error
}

func (f *fakeService) BorrowBook(ctx context.Context, bookID string) (*Borrowing, error) {
	return f.borrowBook(ctx, bookID)
}

func (f *fakeService) ReturnBook(ctx context.Context, id string) (*Borrowing, error) {
	return f.returnBook(ctx, id)
}

func (f *fakeService) SearchBorrowings(ctx context.Context, filter Filter, page Page) (*PageResult, error) {
	return f.searchBorrowings(ctx, filter, page)
}

func (f *fakeService) OverdueBorrowings(ctx context.Context, page Page) (*PageResult, error) {
	return f.overdueBorrowings(ctx, page)
}

func (f *fakeService) ReleaseBook(ctx context.Context, bookID string) error {
	return f.releaseBook(ctx, bookID)
}

func newTestRouter(svc Service) http.Handler {
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/borrowings", h.HandleBorrow)
	r.Get("/borrowings", h.HandleSearch)
	r.Get("/borrowings/overdue", h.HandleOverdue)
	r.Put("/borrowings/{id}/return", h.HandleReturn)
	r.Put("/books/{id}/release", h.HandleRelease)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleBorrow(t *testing.T) {
	svc := &fakeService{
		borrowBook: func(ctx context.Context, bookID string) (*Borrowing, error) {
			return newBorrowing("br-1", bookID, "p1", t0), nil
		},
	}
	rec := serve(newTestRouter(svc), http.MethodPost, "/borrowings", `{"bookId":"book-1"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "br-1", got["id"])
	assert.Equal(t, "book-1", got["bookId"])
	assert.Equal(t, "BORROWED", got["status"])
	assert.NotContains(t, got, "returnedAt")
}

func TestHandleBorrow_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"bookId":`, nil, http.StatusBadRequest},
		{"unknown field", `{"bookId":"b","x":1}`, nil, http.StatusBadRequest},
		{"user not active", `{"bookId":"b"}`, ErrUserNotActive, http.StatusConflict},
		{"book not available", `{"bookId":"b"}`, ErrBookNotAvailable, http.StatusConflict},
		{"storage failure", `{"bookId":"b"}`, errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				borrowBook: func(context.Context, string) (*Borrowing, error) { return nil, tt.err },
			}
			rec := serve(newTestRouter(svc), http.MethodPost, "/borrowings", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestHandleReturn(t *testing.T) {
	var gotID string
	svc := &fakeService{
		returnBook: func(ctx context.Context, id string) (*Borrowing, error) {
			gotID = id
			if id == "missing" {
				return nil, ErrBorrowingNotFound
			}
			b := newBorrowing(id, "book-1", "p1", t0)
			b.Status = StatusReturned
			at := t0
			b.ReturnedAt = &at
			return b, nil
		},
	}
	router := newTestRouter(svc)

	rec := serve(router, http.MethodPut, "/borrowings/br-7/return", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "br-7", gotID)
	assert.Contains(t, rec.Body.String(), `"status":"RETURNED"`)

	rec = serve(router, http.MethodPut, "/borrowings/missing/return", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSearch_ParsesQuery(t *testing.T) {
	var gotFilter Filter
	var gotPage Page
	svc := &fakeService{
		searchBorrowings: func(ctx context.Context, f Filter, p Page) (*PageResult, error) {
			gotFilter, gotPage = f, p
			return newPageResult(nil, p.Normalize(), 0), nil
		},
	}
	router := newTestRouter(svc)

	rec := serve(router, http.MethodGet,
		"/borrowings?bookId=book-1&status=RETURNED&borrowedFrom=2025-03-01T00:00:00Z&dueTo=2025-04-01T00:00:00Z&page=2&size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "book-1", gotFilter.BookID)
	assert.Equal(t, StatusReturned, gotFilter.Status)
	require.NotNil(t, gotFilter.BorrowedFrom)
	assert.Equal(t, 2025, gotFilter.BorrowedFrom.Year())
	assert.Nil(t, gotFilter.BorrowedTo)
	require.NotNil(t, gotFilter.DueTo)
	assert.Equal(t, Page{Number: 2, Size: 5}, gotPage)
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	rec = serve(router, http.MethodGet, "/borrowings?dueFrom=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/borrowings?page=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOverdue(t *testing.T) {
	svc := &fakeService{
		overdueBorrowings: func(ctx context.Context, p Page) (*PageResult, error) {
			items := []*Borrowing{newBorrowing("br-1", "book-1", "p1", t0)}
			return newPageResult(items, p.Normalize(), 1), nil
		},
	}
	rec := serve(newTestRouter(svc), http.MethodGet, "/borrowings/overdue", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got PageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.TotalItems)
	assert.Equal(t, 1, got.TotalPages)
	assert.Equal(t, DefaultPageSize, got.Size)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "br-1", got.Items[0].ID)
}

func TestHandleRelease(t *testing.T) {
	var released string
	svc := &fakeService{
		releaseBook: func(_ context.Context, bookID string) error {
			if bookID == "book-2" {
				return ErrBookOnLoan
			}
			released = bookID
			return nil
		},
	}
	router := newTestRouter(svc)

	rec := serve(router, http.MethodPut, "/books/book-1/release", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "book-1", released)

	rec = serve(router, http.MethodPut, "/books/book-2/release", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
