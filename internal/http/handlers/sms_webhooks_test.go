package handlers

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/carelineai/concierge/internal/dialogue"
)

// replyText decodes the TwiML reply so assertions see the message as the
// patient would, not the XML-escaped wire form.
func replyText(t *testing.T, body string) string {
	t.Helper()
	var resp struct {
		Message string `xml:"Message"`
	}
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode reply %q: %v", body, err)
	}
	return resp.Message
}

func newTestSMSHandler(t *testing.T) (*SMSWebhookHandler, *dialogue.RetryScheduler) {
	t.Helper()
	retries := dialogue.NewRetryScheduler(nil, nil)
	handler := NewSMSWebhookHandler(SMSWebhookConfig{
		Retries:    retries,
		ShortDelay: 5 * time.Minute,
	})
	return handler, retries
}

func inboundSMS(from, body string) url.Values {
	return url.Values{"From": {from}, "Body": {body}}
}

func TestSMSRetrySchedulesImmediateCall(t *testing.T) {
	handler, retries := newTestSMSHandler(t)
	retries.RememberAttempt("+15555550199", dialogue.BookingRequest{
		ClinicName:  "Maple Clinic",
		ClinicPhone: "+15555550100",
	})

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "RETRY"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(replyText(t, rec.Body.String()), "Maple Clinic") {
		t.Fatalf("reply should name the clinic: %s", rec.Body.String())
	}
	if !retries.Pending("+15555550199") {
		t.Fatal("RETRY should arm a ticket")
	}
	// Cancel so the short timer never fires into a nil starter.
	retries.Cancel("+15555550199")
}

func TestSMSRetryKeywordIsCaseInsensitive(t *testing.T) {
	handler, retries := newTestSMSHandler(t)
	retries.RememberAttempt("+15555550199", dialogue.BookingRequest{ClinicName: "Maple Clinic", ClinicPhone: "+15555550100"})

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "retry please"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !retries.Pending("+15555550199") {
		t.Fatal("lowercase retry should still arm a ticket")
	}
	retries.Cancel("+15555550199")
}

func TestSMSRetryWithoutHistory(t *testing.T) {
	handler, retries := newTestSMSHandler(t)

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "RETRY"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(replyText(t, rec.Body.String()), "don't have a recent booking call") {
		t.Fatalf("expected no-history reply: %s", rec.Body.String())
	}
	if retries.Pending("+15555550199") {
		t.Fatal("nothing should be armed without a remembered attempt")
	}
}

func TestSMSWaitSchedulesShortDelay(t *testing.T) {
	handler, retries := newTestSMSHandler(t)
	retries.RememberAttempt("+15555550199", dialogue.BookingRequest{ClinicName: "Maple Clinic", ClinicPhone: "+15555550100"})

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "WAIT"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !retries.Pending("+15555550199") {
		t.Fatal("WAIT should arm a ticket")
	}
	if !strings.Contains(replyText(t, rec.Body.String()), "5m") {
		t.Fatalf("reply should state the delay: %s", rec.Body.String())
	}
	retries.Cancel("+15555550199")
}

func TestSMSCancelRemovesTicket(t *testing.T) {
	handler, retries := newTestSMSHandler(t)
	retries.Schedule("+15555550199", dialogue.BookingRequest{ClinicPhone: "+15555550100"}, time.Hour)

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "CANCEL"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if retries.Pending("+15555550199") {
		t.Fatal("CANCEL should remove the ticket")
	}
	if !strings.Contains(replyText(t, rec.Body.String()), "cancelled the follow-up") {
		t.Fatalf("expected cancel acknowledgement: %s", rec.Body.String())
	}
}

func TestSMSCancelWithNothingScheduled(t *testing.T) {
	handler, _ := newTestSMSHandler(t)
	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "CANCEL"))
	if !strings.Contains(replyText(t, rec.Body.String()), "Nothing was scheduled") {
		t.Fatalf("expected no-op acknowledgement: %s", rec.Body.String())
	}
}

func TestSMSStopCancelsAndOptsOut(t *testing.T) {
	handler, retries := newTestSMSHandler(t)
	retries.Schedule("+15555550199", dialogue.BookingRequest{ClinicPhone: "+15555550100"}, time.Hour)

	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "STOP"))
	if !strings.Contains(replyText(t, rec.Body.String()), "opted out") {
		t.Fatalf("expected opt-out acknowledgement: %s", rec.Body.String())
	}
	if retries.Pending("+15555550199") {
		t.Fatal("STOP should cancel any pending retry")
	}
}

func TestSMSUnknownKeyword(t *testing.T) {
	handler, _ := newTestSMSHandler(t)
	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", inboundSMS("+15555550199", "what's happening?"))
	if !strings.Contains(replyText(t, rec.Body.String()), "didn't catch that") {
		t.Fatalf("expected help nudge: %s", rec.Body.String())
	}
}

func TestSMSMissingFrom(t *testing.T) {
	handler, _ := newTestSMSHandler(t)
	rec := postForm(handler.HandleInbound, "/webhooks/sms/inbound", url.Values{"Body": {"RETRY"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}
