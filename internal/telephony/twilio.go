package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelineai/concierge/pkg/logging"
)

var placeCallTracer = otel.Tracer("concierge.internal.telephony.twilio")

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	placeCallTimeout     = 15 * time.Second
)

// TwilioClient places outbound calls via Twilio's Calls API and registers the
// voice webhooks for the call's lifetime.
type TwilioClient struct {
	accountSID  string
	authToken   string
	from        string
	webhookBase string
	baseURL     string
	httpClient  *http.Client
	logger      *logging.Logger
}

// TwilioClientConfig configures the outbound call client.
type TwilioClientConfig struct {
	AccountSID string
	AuthToken  string
	// From is the caller ID number in E.164.
	From string
	// WebhookBase is the public base URL that receives voice webhooks.
	WebhookBase string
	// BaseURL overrides the Twilio API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewTwilioClient creates a client for placing outbound booking calls.
func NewTwilioClient(cfg TwilioClientConfig) (*TwilioClient, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("telephony: twilio credentials required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("telephony: from number required")
	}
	if strings.TrimSpace(cfg.WebhookBase) == "" {
		return nil, fmt.Errorf("telephony: webhook base URL required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: placeCallTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioClient{
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		from:        cfg.From,
		webhookBase: strings.TrimRight(cfg.WebhookBase, "/"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// PlaceCall initiates an outbound call and returns the provider call SID.
func (c *TwilioClient) PlaceCall(ctx context.Context, to string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("telephony: destination number required")
	}

	ctx, span := placeCallTracer.Start(ctx, "telephony.twilio.place_call")
	defer span.End()
	span.SetAttributes(attribute.String("concierge.to", MaskPhone(to)))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", c.from)
	payload.Set("Url", c.webhookBase+"/webhooks/voice/answered")
	payload.Set("Method", "POST")
	payload.Set("StatusCallback", c.webhookBase+"/webhooks/voice/status")
	payload.Set("StatusCallbackMethod", "POST")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("telephony: create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("telephony: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("telephony: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("twilio call API error",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", fmt.Errorf("telephony: twilio returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("telephony: decode response: %w", err)
	}
	if parsed.SID == "" {
		return "", fmt.Errorf("telephony: twilio response missing call sid")
	}

	c.logger.Info("outbound call placed",
		"call_id", parsed.SID,
		"to", MaskPhone(to),
		"status", parsed.Status,
	)
	return parsed.SID, nil
}

// ValidateSignature verifies that a webhook request came from Twilio.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted POST params, per
// Twilio's signing scheme.
func buildSignaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VoiceWebhookRequest carries the fields of an inbound voice webhook.
type VoiceWebhookRequest struct {
	CallSID      string
	CallStatus   string
	From         string
	To           string
	SpeechResult string
}

// ParseVoiceWebhook parses a Twilio voice webhook form post.
func ParseVoiceWebhook(r *http.Request) (*VoiceWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("telephony: parse form: %w", err)
	}
	return &VoiceWebhookRequest{
		CallSID:      strings.TrimSpace(r.FormValue("CallSid")),
		CallStatus:   strings.ToLower(strings.TrimSpace(r.FormValue("CallStatus"))),
		From:         strings.TrimSpace(r.FormValue("From")),
		To:           strings.TrimSpace(r.FormValue("To")),
		SpeechResult: strings.TrimSpace(r.FormValue("SpeechResult")),
	}, nil
}

// MaskPhone returns the last 4 digits of a phone number for logging.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
