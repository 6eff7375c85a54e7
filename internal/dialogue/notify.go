package dialogue

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/carelineai/concierge/pkg/logging"
)

// TextSender delivers a single outbound text to a phone number. The dialogue
// never learns whether delivery succeeded.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// NotificationKind identifies a call-lifecycle event worth texting the
// patient about.
type NotificationKind string

const (
	NotifyConfirmed        NotificationKind = "confirmed"
	NotifyWalkIn           NotificationKind = "walk_in"
	NotifyEndedUnconfirmed NotificationKind = "ended_unconfirmed"
	NotifyCallFailed       NotificationKind = "call_failed"
	NotifyHoldTimeout      NotificationKind = "hold_timeout"
	NotifyRetryScheduled   NotificationKind = "retry_scheduled"
	NotifyRetryStarted     NotificationKind = "retry_started"
	NotifyRetryFailed      NotificationKind = "retry_failed"
)

// NotificationParams carries the values referenced by the templates.
type NotificationParams struct {
	PatientName   string
	ClinicName    string
	ConfirmedTime string
	CallStatus    string
	RetryDelay    string
}

// Strict missing-key semantics: a template referencing a field that does not
// exist fails at render time instead of sending a broken text.
var notificationTemplates = map[NotificationKind]*template.Template{
	NotifyConfirmed: mustTemplate("confirmed",
		"Good news {{.PatientName}}! Your appointment at {{.ClinicName}} is confirmed for {{.ConfirmedTime}}."),
	NotifyWalkIn: mustTemplate("walk_in",
		"{{.ClinicName}} takes walk-ins, so no fixed slot was needed. Stop by whenever works for you, {{.PatientName}}."),
	NotifyEndedUnconfirmed: mustTemplate("ended_unconfirmed",
		"I spoke with {{.ClinicName}} but couldn't lock in a time yet. Reply RETRY to call again now, WAIT to try in a bit, or CANCEL to stop."),
	NotifyCallFailed: mustTemplate("call_failed",
		"I couldn't reach {{.ClinicName}} ({{.CallStatus}}). Reply RETRY to try again, WAIT to try later, or CANCEL to stop."),
	NotifyHoldTimeout: mustTemplate("hold_timeout",
		"{{.ClinicName}} kept me on hold too long, so I hung up. I'll call back in {{.RetryDelay}} — reply CANCEL if you'd rather I didn't."),
	NotifyRetryScheduled: mustTemplate("retry_scheduled",
		"Got it — I'll call {{.ClinicName}} again in {{.RetryDelay}}. Reply CANCEL anytime to stop."),
	NotifyRetryStarted: mustTemplate("retry_started",
		"Calling {{.ClinicName}} again now — I'll text you as soon as there's news."),
	NotifyRetryFailed: mustTemplate("retry_failed",
		"My follow-up call to {{.ClinicName}} didn't go through. Reply RETRY when you'd like me to try again."),
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

// Dispatcher sends call-lifecycle texts. Delivery is fire-and-forget:
// failures are logged and swallowed so the dialogue never stalls on SMS.
type Dispatcher struct {
	sender TextSender
	logger *logging.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(sender TextSender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// Notify renders and sends the template for kind to identity. A missing
// sender, empty identity, or send failure is logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, identity string, kind NotificationKind, params NotificationParams) {
	if d == nil || d.sender == nil || identity == "" {
		return
	}
	body, err := renderNotification(kind, params)
	if err != nil {
		d.logger.Error("notify: render failed", "kind", string(kind), "error", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.sender.SendText(sendCtx, identity, body); err != nil {
		d.logger.Error("notify: send failed", "kind", string(kind), "error", err)
		return
	}
	d.logger.Info("notify: sent", "kind", string(kind))
}

func renderNotification(kind NotificationKind, params NotificationParams) (string, error) {
	tmpl, ok := notificationTemplates[kind]
	if !ok {
		return "", fmt.Errorf("notify: unknown kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("notify: execute %q: %w", kind, err)
	}
	return buf.String(), nil
}
