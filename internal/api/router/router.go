package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelineai/concierge/internal/http/handlers"
	httpmiddleware "github.com/carelineai/concierge/internal/http/middleware"
	"github.com/carelineai/concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Bookings       *handlers.BookingHandler
	VoiceWebhooks  *handlers.VoiceWebhookHandler
	SMSWebhooks    *handlers.SMSWebhookHandler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Bookings != nil {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/calls", cfg.Bookings.HandleCreateCall)
			r.Get("/calls/{callID}", cfg.Bookings.HandleGetCall)
		})
	}

	r.Route("/webhooks", func(r chi.Router) {
		if cfg.VoiceWebhooks != nil {
			r.Post("/voice/answered", cfg.VoiceWebhooks.HandleAnswered)
			r.Post("/voice/gather", cfg.VoiceWebhooks.HandleGather)
			r.Post("/voice/status", cfg.VoiceWebhooks.HandleStatus)
		}
		if cfg.SMSWebhooks != nil {
			r.Post("/sms/inbound", cfg.SMSWebhooks.HandleInbound)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
