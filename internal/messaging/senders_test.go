package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTwilioSenderSendText(t *testing.T) {
	var gotTo, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "AC123" || pass != "token" {
			t.Errorf("bad basic auth")
		}
		r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15555550111", nil).WithBaseURL(srv.URL)
	if err := sender.SendText(context.Background(), "+15555550199", "hello there"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotTo != "+15555550199" || gotBody != "hello there" {
		t.Fatalf("payload wrong: to=%q body=%q", gotTo, gotBody)
	}
}

func TestTwilioSenderNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid 'To' number","status":400}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15555550111", nil).WithBaseURL(srv.URL)
	err := sender.SendText(context.Background(), "+15555550199", "hello")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if attempts.Load() != 1 {
		t.Fatalf("non-429 4xx should not retry, got %d attempts", attempts.Load())
	}
}

func TestTwilioSenderRetriesServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15555550111", nil).WithBaseURL(srv.URL)
	if err := sender.SendText(context.Background(), "+15555550199", "hello"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestTwilioSenderValidation(t *testing.T) {
	sender := NewTwilioSender("", "", "+1", nil)
	if err := sender.SendText(context.Background(), "+15555550199", "hi"); err == nil {
		t.Fatal("expected credentials error")
	}
	sender = NewTwilioSender("AC", "t", "+1", nil)
	if err := sender.SendText(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected to-required error")
	}
	if err := sender.SendText(context.Background(), "+15555550199", "   "); err == nil {
		t.Fatal("expected body-required error")
	}
}

func TestTelnyxSenderSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key123" {
			t.Errorf("bad auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"msg_1"}}`))
	}))
	defer srv.Close()

	sender := NewTelnyxSender("key123", "profile_1", "+15555550111", nil).WithBaseURL(srv.URL)
	if err := sender.SendText(context.Background(), "+15555550199", "hello there"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["to"] != "+15555550199" || got["text"] != "hello there" {
		t.Fatalf("payload wrong: %v", got)
	}
	if got["messaging_profile_id"] != "profile_1" {
		t.Fatalf("expected messaging profile in payload: %v", got)
	}
}

func TestFormatTwilioError(t *testing.T) {
	got := formatTwilioError(400, []byte(`{"code":21211,"message":"invalid number","status":400}`))
	if got != "status 400 code 21211: invalid number" {
		t.Fatalf("got %q", got)
	}
	got = formatTwilioError(502, []byte("bad gateway"))
	if got != "status 502: bad gateway" {
		t.Fatalf("got %q", got)
	}
	got = formatTwilioError(500, nil)
	if got != "status 500" {
		t.Fatalf("got %q", got)
	}
}
