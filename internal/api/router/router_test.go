package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carelineai/concierge/internal/dialogue"
	"github.com/carelineai/concierge/internal/http/handlers"
	"github.com/carelineai/concierge/pkg/logging"
)

type stubPlacer struct{}

func (stubPlacer) PlaceCall(context.Context, string) (string, error) { return "CA-router", nil }

func newTestRouter(t *testing.T) (http.Handler, *dialogue.MemoryStore) {
	t.Helper()
	store := dialogue.NewMemoryStore(0)
	engine := dialogue.NewEngine(dialogue.EngineOptions{Store: store, Placer: stubPlacer{}})
	retries := dialogue.NewRetryScheduler(nil, nil)

	reg := prometheus.NewRegistry()
	handler := New(&Config{
		Logger: logging.Default(),
		Bookings: handlers.NewBookingHandler(handlers.BookingHandlerConfig{
			Engine: engine,
			Store:  store,
		}),
		VoiceWebhooks:  handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{Engine: engine}),
		SMSWebhooks:    handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{Retries: retries}),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return handler, store
}

func TestRouterHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRouterRoutesAreMounted(t *testing.T) {
	r, store := newTestRouter(t)
	session := dialogue.NewSession("CA1", dialogue.BookingRequest{
		PatientName: "Alex Rivera",
		ClinicName:  "Maple Clinic",
		ClinicPhone: "+15555550100",
	}, time.Now())
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/bookings/calls"},
		{http.MethodGet, "/bookings/calls/CA1"},
		{http.MethodPost, "/webhooks/voice/answered"},
		{http.MethodPost, "/webhooks/voice/gather"},
		{http.MethodPost, "/webhooks/voice/status"},
		{http.MethodPost, "/webhooks/sms/inbound"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
			t.Fatalf("%s %s not mounted (status %d)", tt.method, tt.path, rec.Code)
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}
