package handlers

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/carelineai/concierge/internal/dialogue"
	"github.com/carelineai/concierge/internal/messaging"
	observemetrics "github.com/carelineai/concierge/internal/observability/metrics"
	"github.com/carelineai/concierge/internal/telephony"
	"github.com/carelineai/concierge/pkg/logging"
)

// retryNowDelay keeps an immediate RETRY off the webhook goroutine while
// still feeling instant to the patient.
const retryNowDelay = 2 * time.Second

// SMSWebhookHandler processes inbound patient texts: the RETRY / WAIT /
// CANCEL follow-up keywords plus the carrier-mandated STOP and HELP.
type SMSWebhookHandler struct {
	retries       *dialogue.RetryScheduler
	shortDelay    time.Duration
	defaultDelay  time.Duration
	authToken     string
	publicBaseURL string
	metrics       *observemetrics.CallMetrics
	logger        *logging.Logger
}

type SMSWebhookConfig struct {
	Retries      *dialogue.RetryScheduler
	ShortDelay   time.Duration
	DefaultDelay time.Duration
	// AuthToken validates X-Twilio-Signature headers. Empty disables
	// validation (local development only).
	AuthToken     string
	PublicBaseURL string
	Metrics       *observemetrics.CallMetrics
	Logger        *logging.Logger
}

func NewSMSWebhookHandler(cfg SMSWebhookConfig) *SMSWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ShortDelay <= 0 {
		cfg.ShortDelay = 5 * time.Minute
	}
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = 15 * time.Minute
	}
	return &SMSWebhookHandler{
		retries:       cfg.Retries,
		shortDelay:    cfg.ShortDelay,
		defaultDelay:  cfg.DefaultDelay,
		authToken:     cfg.AuthToken,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// HandleInbound processes an inbound SMS webhook and replies inline via a
// messaging TwiML document.
func (h *SMSWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("sms_inbound", time.Since(start).Seconds()) }()

	if h.authToken != "" && !telephony.ValidateSignature(r, h.authToken, h.webhookURL(r)) {
		h.logger.Warn("invalid twilio sms signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	from := strings.TrimSpace(r.FormValue("From"))
	body := strings.ToUpper(strings.TrimSpace(r.FormValue("Body")))
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	h.logger.Info("inbound sms",
		"from", messaging.MaskPhone(from),
		"keyword", firstWord(body),
	)
	h.writeReply(w, h.reply(from, body))
}

func (h *SMSWebhookHandler) reply(from, body string) string {
	switch firstWord(body) {
	case "RETRY":
		req, ok := h.retries.LastAttempt(from)
		if !ok {
			return "I don't have a recent booking call for this number. Start a new request and I'll take it from there."
		}
		h.retries.Schedule(from, req, retryNowDelay)
		return "On it! Calling " + req.ClinicName + " again right now."
	case "WAIT":
		req, ok := h.retries.LastAttempt(from)
		if !ok {
			return "I don't have a recent booking call for this number. Start a new request and I'll take it from there."
		}
		h.retries.Schedule(from, req, h.shortDelay)
		return "Sure — I'll call " + req.ClinicName + " again in " + humanDelay(h.shortDelay) + ". Reply CANCEL to stop."
	case "CANCEL":
		if h.retries.Cancel(from) {
			return "Done, I've cancelled the follow-up call. Text me whenever you'd like to try again."
		}
		return "Nothing was scheduled, so you're all set. Text me whenever you'd like to book."
	case "STOP", "STOPALL", "UNSUBSCRIBE", "QUIT", "END":
		h.retries.Cancel(from)
		return "You've been opted out and won't receive further texts. Reply HELP for info."
	case "HELP", "INFO":
		return "I book appointments by phone on your behalf. Reply RETRY to call again, WAIT to try later, CANCEL to stop, STOP to opt out."
	default:
		return "I didn't catch that. Reply RETRY to call the clinic again, WAIT to try later, or CANCEL to stop."
	}
}

// messageResponse is the messaging TwiML document, distinct from voice TwiML.
type messageResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func (h *SMSWebhookHandler) writeReply(w http.ResponseWriter, body string) {
	out, err := xml.Marshal(messageResponse{Message: body})
	if err != nil {
		h.logger.Error("sms reply marshal failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(append([]byte(xml.Header), out...))
}

func (h *SMSWebhookHandler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

func humanDelay(d time.Duration) string {
	if d >= time.Hour {
		return strings.TrimSuffix(d.Round(time.Hour).String(), "0m0s")
	}
	return strings.TrimSuffix(d.Round(time.Minute).String(), "0s")
}
