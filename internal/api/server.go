package api

import (
	"net/http"
	"time"

	chatapi "github.com/futig/admissions-assistant/internal/api/chat"
	"github.com/futig/admissions-assistant/internal/api/docs"
	documentapi "github.com/futig/admissions-assistant/internal/api/document"
	"github.com/futig/admissions-assistant/internal/api/middleware"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/futig/admissions-assistant/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router. requestTimeout bounds
// every request and should exceed the slowest chat turn.
func SetupRouter(
	chatHandler *chatapi.Handler,
	documentHandler *documentapi.Handler,
	requestTimeout time.Duration,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)               // Recover from panics
	r.Use(chimiddleware.RequestID)               // Add request ID
	r.Use(middleware.Logger(logger))             // Log requests
	r.Use(middleware.CORS)                       // Handle CORS
	r.Use(chimiddleware.Timeout(requestTimeout)) // Default timeout

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, entity.HealthResponse{Status: "healthy"})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	// Register routes
	chatapi.RegisterRoutes(r, chatHandler)
	documentapi.RegisterRoutes(r, documentHandler)

	return r
}
