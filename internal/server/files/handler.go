// Package files serves signed, short-lived document downloads over HTTP.
package files

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
)

// Resolver turns a link token into the document it grants.
type Resolver interface {
	ResolveLink(ctx context.Context, token string) (*model.Document, []byte, error)
}

// Handler serves GET /v1/files/{token}.
type Handler struct {
	links Resolver
	log   *zap.Logger
}

// NewHandler returns a Handler reading through links.
func NewHandler(links Resolver, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{links: links, log: log}
}

// RegisterRoutes mounts the download route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/files/{token}", h.HandleDownload)
}

// Router returns a chi router with the download route, request IDs, panic
// recovery and access logging.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.accessLog)
	h.RegisterRoutes(r)
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	return r
}

// HandleDownload streams the unsealed document named by the token.
//
// Status codes:
//   - 200 OK: content follows
//   - 403 Forbidden: token is invalid, expired, already used or not a download link
//   - 404 Not Found: the document was deleted or replaced after the link was issued
//   - 500 Internal Server Error: storage or unsealing failed
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	d, data, err := h.links.ResolveLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			http.Error(w, "link is invalid or expired", http.StatusForbidden)
		case errors.Is(err, errs.ErrNotFound):
			http.Error(w, "document no longer available", http.StatusNotFound)
		default:
			h.log.Error("download failed", zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	ct := d.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write(data); err != nil {
		h.log.Warn("download interrupted", zap.String("document_id", d.ID.String()), zap.Error(err))
		return
	}
	h.log.Info("document downloaded", zap.String("document_id", d.ID.String()), zap.String("owner_id", d.OwnerID.String()))
}

// accessLog never records the path; it carries the link token.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("http",
			zap.String("method", r.Method),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
