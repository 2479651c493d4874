// internal/circulation/handler.go
package circulation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookloan/internal/httpx"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// HandleBorrow handles POST /borrowings.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID string `json:"bookId"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	borrowing, err := h.service.BorrowBook(r.Context(), req.BookID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, borrowing)
}

// HandleReturn handles PUT /borrowings/{id}/return.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	borrowing, err := h.service.ReturnBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, borrowing)
}

// HandleRelease handles PUT /books/{id}/release.
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReleaseBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch handles GET /borrowings.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.SearchBorrowings(r.Context(), filter, page)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleOverdue handles GET /borrowings/overdue.
func (h *Handler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.OverdueBorrowings(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		PatronID: q.Get("patronId"),
		BookID:   q.Get("bookId"),
		Status:   Status(q.Get("status")),
	}

	var err error
	if f.BorrowedFrom, err = httpx.TimeQuery(r, "borrowedFrom"); err != nil {
		return Filter{}, err
	}
	if f.BorrowedTo, err = httpx.TimeQuery(r, "borrowedTo"); err != nil {
		return Filter{}, err
	}
	if f.DueFrom, err = httpx.TimeQuery(r, "dueFrom"); err != nil {
		return Filter{}, err
	}
	if f.DueTo, err = httpx.TimeQuery(r, "dueTo"); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parsePage(r *http.Request) (Page, error) {
	number, err := httpx.IntQuery(r, "page", 0)
	if err != nil {
		return Page{}, err
	}
	size, err := httpx.IntQuery(r, "size", DefaultPageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{Number: number, Size: size}, nil
}
