// internal/catalog/handler.go
package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"bookloan/internal/availability"
	"bookloan/internal/httpx"
)

const defaultHeartbeat = 15 * time.Second

type Handler struct {
	service   Service
	assembler *availability.Assembler
	limiter   *rate.Limiter
	heartbeat time.Duration
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithStreamLimiter caps how fast new availability streams may be opened.
func WithStreamLimiter(l *rate.Limiter) HandlerOption {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithHeartbeat sets the interval of SSE keep-alive comments.
func WithHeartbeat(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func NewHandler(service Service, assembler *availability.Assembler, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service:   service,
		assembler: assembler,
		heartbeat: defaultHeartbeat,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAddBook handles POST /books.
func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), req.Title, req.Author)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

// HandleGetBook handles GET /books/{id}.
func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

// HandleDeleteBook handles DELETE /books/{id}.
func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAvailabilityStream handles GET /books/availability/stream. It sends
// the current status of every book followed by live changes as server-sent
// events until the client disconnects.
func (h *Handler) HandleAvailabilityStream(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "too many stream connections, retry later",
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "streaming unsupported",
		})
		return
	}

	ctx := r.Context()
	stream := h.assembler.Stream(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.DebugContext(ctx, "availability stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					h.logger.WarnContext(ctx, "availability stream ended", "error", err)
					fmt.Fprint(w, "event: error\ndata: {\"error\":\"stream interrupted\"}\n\n")
					flusher.Flush()
				}
				return
			}
			data, err := jsoniter.ConfigFastest.Marshal(ev)
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode availability event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
