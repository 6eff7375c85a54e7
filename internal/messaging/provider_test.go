package messaging

import (
	"strings"
	"testing"
)

func TestBuildTextSenderAutoPrefersTelnyx(t *testing.T) {
	sender, provider, reason := BuildTextSender(ProviderSelectionConfig{
		Preference:       SMSProviderAuto,
		TelnyxAPIKey:     "key",
		TelnyxProfileID:  "profile",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		FromNumber:       "+15555550111",
	}, nil)
	if sender == nil || reason != "" {
		t.Fatalf("expected a sender, got reason %q", reason)
	}
	if provider != SMSProviderTelnyx {
		t.Fatalf("auto should prefer telnyx, got %q", provider)
	}
}

func TestBuildTextSenderAutoFallsBackToTwilio(t *testing.T) {
	sender, provider, _ := BuildTextSender(ProviderSelectionConfig{
		Preference:       SMSProviderAuto,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		FromNumber:       "+15555550111",
	}, nil)
	if sender == nil || provider != SMSProviderTwilio {
		t.Fatalf("expected twilio fallback, got %q", provider)
	}
}

func TestBuildTextSenderForcedProviderMissingCreds(t *testing.T) {
	sender, _, reason := BuildTextSender(ProviderSelectionConfig{
		Preference:       SMSProviderTelnyx,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
	}, nil)
	if sender != nil {
		t.Fatal("forced telnyx without credentials should fail")
	}
	if !strings.Contains(reason, "TELNYX_API_KEY") {
		t.Fatalf("reason should name the missing variable, got %q", reason)
	}
}

func TestBuildTextSenderNothingConfigured(t *testing.T) {
	sender, provider, reason := BuildTextSender(ProviderSelectionConfig{}, nil)
	if sender != nil || provider != "" {
		t.Fatal("expected no sender")
	}
	if reason == "" {
		t.Fatal("expected a reason explaining what is missing")
	}
}

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(555) 555-0100", "+15555550100"},
		{"+1 555 555 0100", "+15555550100"},
		{"15555550100", "+15555550100"},
		{"  ", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+15555550100"); got != "***0100" {
		t.Fatalf("got %q", got)
	}
	if got := MaskPhone("99"); got != "****" {
		t.Fatalf("got %q", got)
	}
}
