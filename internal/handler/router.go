package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *ContentHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Route("/contents/{content_id}", func(r chi.Router) {
			r.Post("/encrypt", h.EncryptContent)
			r.Post("/decrypt", h.DecryptContent)
		})
		r.Post("/keys/rotate", h.RotateKeys)
		r.Get("/stats", h.GetStats)
		r.Post("/options/validate", h.ValidateOptions)
	})

	return r
}
