package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/carelineai/concierge/internal/dialogue"
	observemetrics "github.com/carelineai/concierge/internal/observability/metrics"
	"github.com/carelineai/concierge/internal/telephony"
	"github.com/carelineai/concierge/pkg/logging"
)

const gatherAction = "/webhooks/voice/gather"

// VoiceWebhookHandler receives Twilio voice webhooks and drives the booking
// dialogue one turn at a time.
type VoiceWebhookHandler struct {
	engine        *dialogue.Engine
	authToken     string
	publicBaseURL string
	metrics       *observemetrics.CallMetrics
	logger        *logging.Logger
}

type VoiceWebhookConfig struct {
	Engine *dialogue.Engine
	// AuthToken validates X-Twilio-Signature headers. Empty disables
	// validation (local development only).
	AuthToken     string
	PublicBaseURL string
	Metrics       *observemetrics.CallMetrics
	Logger        *logging.Logger
}

func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		engine:        cfg.Engine,
		authToken:     cfg.AuthToken,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// HandleAnswered fires when the clinic picks up. It opens the dialogue with
// the greeting turn.
func (h *VoiceWebhookHandler) HandleAnswered(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("voice_answered", time.Since(start).Seconds()) }()

	req, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if req.CallSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	result := h.engine.Greeting(r.Context(), req.CallSID)
	h.writeTwiML(w, result)
}

// HandleGather fires after each speech capture window with whatever the
// receptionist said, possibly nothing.
func (h *VoiceWebhookHandler) HandleGather(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("voice_gather", time.Since(start).Seconds()) }()

	req, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if req.CallSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	result := h.engine.Turn(r.Context(), req.CallSID, req.SpeechResult)
	h.writeTwiML(w, result)
}

// HandleStatus fires on call lifecycle transitions (completed, failed, busy,
// no-answer). Twilio only needs an empty acknowledgement back.
func (h *VoiceWebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("voice_status", time.Since(start).Seconds()) }()

	req, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if req.CallSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	h.engine.HandleStatus(r.Context(), req.CallSID, req.CallStatus)
	w.WriteHeader(http.StatusNoContent)
}

func (h *VoiceWebhookHandler) authenticate(w http.ResponseWriter, r *http.Request) (*telephony.VoiceWebhookRequest, bool) {
	if h.authToken != "" && !telephony.ValidateSignature(r, h.authToken, h.webhookURL(r)) {
		h.logger.Warn("invalid twilio webhook signature", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	req, err := telephony.ParseVoiceWebhook(r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return nil, false
	}
	return req, true
}

// webhookURL reconstructs the absolute URL Twilio signed. The public base URL
// is authoritative because the request usually arrives through a proxy.
func (h *VoiceWebhookHandler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (h *VoiceWebhookHandler) writeTwiML(w http.ResponseWriter, result *dialogue.TurnResult) {
	body, err := telephony.RenderTurn(result, gatherAction)
	if err != nil {
		h.logger.Error("twiml render failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
