package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/carelineai/concierge/internal/dialogue"
)

type stubPlacer struct{}

func (stubPlacer) PlaceCall(context.Context, string) (string, error) { return "CA-stub", nil }

func newTestVoiceHandler(t *testing.T) (*VoiceWebhookHandler, *dialogue.MemoryStore) {
	t.Helper()
	store := dialogue.NewMemoryStore(0)
	engine := dialogue.NewEngine(dialogue.EngineOptions{
		Store:  store,
		Placer: stubPlacer{},
	})
	handler := NewVoiceWebhookHandler(VoiceWebhookConfig{Engine: engine})
	return handler, store
}

func seedSession(t *testing.T, store *dialogue.MemoryStore, callID string) {
	t.Helper()
	session := dialogue.NewSession(callID, dialogue.BookingRequest{
		PatientName: "Alex Rivera",
		Reason:      "an annual physical",
		ClinicName:  "Maple Clinic",
		ClinicPhone: "+15555550100",
	}, time.Now())
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleAnsweredSpeaksGreeting(t *testing.T) {
	handler, store := newTestVoiceHandler(t)
	seedSession(t, store, "CA1")

	form := url.Values{"CallSid": {"CA1"}}
	rec := postForm(handler.HandleAnswered, "/webhooks/voice/answered", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Alex Rivera") {
		t.Fatalf("greeting should name the patient: %s", body)
	}
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("greeting should gather speech: %s", body)
	}
}

func TestHandleAnsweredUnknownCallStillSpeaks(t *testing.T) {
	handler, _ := newTestVoiceHandler(t)
	rec := postForm(handler.HandleAnswered, "/webhooks/voice/answered", url.Values{"CallSid": {"CA-missing"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Hangup>") {
		t.Fatalf("unknown call should speak an apology and hang up: %s", rec.Body.String())
	}
}

func TestHandleGatherRunsTurn(t *testing.T) {
	handler, store := newTestVoiceHandler(t)
	seedSession(t, store, "CA1")

	form := url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"how about Thursday at 3pm"},
	}
	rec := postForm(handler.HandleGather, "/webhooks/voice/gather", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Just to confirm") {
		t.Fatalf("expected confirmation prompt: %s", rec.Body.String())
	}
	session, _ := store.Get(context.Background(), "CA1")
	if session.State != dialogue.StateTimeProposed {
		t.Fatalf("turn did not advance the session: %+v", session)
	}
}

func TestHandleGatherMissingCallSid(t *testing.T) {
	handler, _ := newTestVoiceHandler(t)
	rec := postForm(handler.HandleGather, "/webhooks/voice/gather", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleStatusAcknowledges(t *testing.T) {
	handler, store := newTestVoiceHandler(t)
	seedSession(t, store, "CA1")

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	rec := postForm(handler.HandleStatus, "/webhooks/voice/status", form)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if session, _ := store.Get(context.Background(), "CA1"); session != nil {
		t.Fatal("completed status should evict the session")
	}
}

func TestVoiceWebhookSignatureEnforced(t *testing.T) {
	store := dialogue.NewMemoryStore(0)
	engine := dialogue.NewEngine(dialogue.EngineOptions{Store: store})
	handler := NewVoiceWebhookHandler(VoiceWebhookConfig{
		Engine:        engine,
		AuthToken:     "secret",
		PublicBaseURL: "https://concierge.example.com",
	})

	rec := postForm(handler.HandleGather, "/webhooks/voice/gather", url.Values{"CallSid": {"CA1"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook should be rejected, got %d", rec.Code)
	}
}
