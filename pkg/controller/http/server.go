package http

import (
	"encoding/json"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/secmon-lab/tedbrain/pkg/utils/errutil"
)

type Server struct {
	router         *chi.Mux
	uc             *usecase.UseCases
	maxUploadBytes int64
}

type Options func(*Server)

// WithMaxUploadBytes caps the request body of media uploads
func WithMaxUploadBytes(n int64) Options {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:         r,
		uc:             uc,
		maxUploadBytes: usecase.DefaultMaxMediaBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api/brain", func(r chi.Router) {
		r.Post("/add", s.addItemHandler)
		r.Post("/query", s.queryHandler)
		r.Post("/upload-media", s.uploadMediaHandler)
		r.Get("/status", s.statusHandler)

		r.Delete("/items", s.purgeHandler)
		r.Delete("/items/{itemID}", s.deleteItemHandler)
		r.Get("/items/{itemID}/categories", s.itemCategoriesHandler)

		r.Get("/categories", s.listCategoriesHandler)
		r.Post("/categories", s.createCategoryHandler)
		r.Post("/categories/assign", s.assignCategoriesHandler)
		r.Get("/categories/{categoryID}", s.getCategoryHandler)
		r.Put("/categories/{categoryID}", s.updateCategoryHandler)
		r.Delete("/categories/{categoryID}", s.deleteCategoryHandler)
		r.Get("/categories/{categoryID}/items", s.categoryItemsHandler)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}
