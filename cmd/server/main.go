package main

import (
	"log"
	"net/http"

	"probe-go/internal/analysis"
	"probe-go/internal/api"
	"probe-go/internal/config"
	"probe-go/internal/metrics"
	"probe-go/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	// Initialize Services
	csvService := analysis.NewCSVService(analysis.Columns{Size: cfg.SizeColumn, Effort: cfg.EffortColumn})
	handler := api.NewHandler(state.New(), csvService, metrics.New(), cfg)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PROBE estimation backend is running"))
	})

	handler.RegisterRoutes(r)

	log.Printf("Starting PROBE backend on http://localhost:%s", cfg.Port)
	log.Printf("CORS enabled for: %v", cfg.AllowedOrigins)
	log.Printf("Upload directory: %s", cfg.UploadDir)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
