package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", app.AnalyzeHandler)
		r.Get("/analyses", app.ListAnalysesHandler)
		r.Get("/analyses/{id}", app.GetAnalysisHandler)
	})

	return r
}
