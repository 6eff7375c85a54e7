package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/carelineai/concierge/pkg/logging"
)

// CallStarter places a fresh outbound booking call and returns its call ID.
type CallStarter interface {
	StartCall(ctx context.Context, req BookingRequest) (string, error)
}

type retryTicket struct {
	identity string
	request  BookingRequest
	fireAt   time.Time
	timer    *time.Timer
}

// RetryScheduler arms delayed re-attempts of unconfirmed booking calls.
// At most one ticket exists per callback identity: scheduling replaces any
// existing ticket, and cancellation removes it before it can fire. A cancel
// that loses the race with a firing ticket is a no-op; the in-flight
// re-attempt is not aborted.
type RetryScheduler struct {
	mu      sync.Mutex
	tickets map[string]*retryTicket
	// lastAttempts remembers the most recent unconfirmed request per
	// identity so a later RETRY/WAIT reply can re-place the call.
	lastAttempts map[string]BookingRequest

	starter  CallStarter
	notifier *Dispatcher
	logger   *logging.Logger
}

// NewRetryScheduler creates a scheduler. The call starter is attached later
// via SetStarter because the engine and scheduler reference each other.
func NewRetryScheduler(notifier *Dispatcher, logger *logging.Logger) *RetryScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryScheduler{
		tickets:      make(map[string]*retryTicket),
		lastAttempts: make(map[string]BookingRequest),
		notifier:     notifier,
		logger:       logger,
	}
}

// SetStarter wires the component that re-places calls when tickets fire.
func (r *RetryScheduler) SetStarter(starter CallStarter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starter = starter
}

// RememberAttempt records the request that just failed to confirm so a
// patient reply can trigger a re-attempt later.
func (r *RetryScheduler) RememberAttempt(identity string, req BookingRequest) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastAttempts[identity] = req
}

// LastAttempt returns the most recent unconfirmed request for identity.
func (r *RetryScheduler) LastAttempt(identity string) (BookingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.lastAttempts[identity]
	return req, ok
}

// Schedule arms a one-shot re-attempt for identity after delay, replacing any
// existing ticket.
func (r *RetryScheduler) Schedule(identity string, req BookingRequest, delay time.Duration) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastAttempts[identity] = req
	if existing, ok := r.tickets[identity]; ok {
		existing.timer.Stop()
		delete(r.tickets, identity)
	}
	ticket := &retryTicket{
		identity: identity,
		request:  req,
		fireAt:   time.Now().Add(delay),
	}
	ticket.timer = time.AfterFunc(delay, func() { r.fire(ticket) })
	r.tickets[identity] = ticket
	r.logger.Info("retry: scheduled", "identity", maskIdentity(identity), "delay", delay.String())
}

// Cancel removes any pending ticket for identity, reporting whether one
// existed.
func (r *RetryScheduler) Cancel(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[identity]
	if !ok {
		return false
	}
	ticket.timer.Stop()
	delete(r.tickets, identity)
	r.logger.Info("retry: cancelled", "identity", maskIdentity(identity))
	return true
}

// Pending reports whether a ticket is armed for identity.
func (r *RetryScheduler) Pending(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tickets[identity]
	return ok
}

// fire runs on the ticket's timer goroutine. The ticket is removed under the
// lock before any work happens, so a concurrent Cancel sees it gone and a
// stale timer for a replaced ticket does nothing.
func (r *RetryScheduler) fire(ticket *retryTicket) {
	r.mu.Lock()
	current, ok := r.tickets[ticket.identity]
	if !ok || current != ticket {
		r.mu.Unlock()
		return
	}
	delete(r.tickets, ticket.identity)
	starter := r.starter
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if starter == nil {
		r.logger.Error("retry: no call starter configured", "identity", maskIdentity(ticket.identity))
		return
	}

	callID, err := starter.StartCall(ctx, ticket.request)
	if err != nil {
		r.logger.Error("retry: re-place failed",
			"identity", maskIdentity(ticket.identity),
			"error", err,
		)
		r.notifier.Notify(ctx, ticket.identity, NotifyRetryFailed, NotificationParams{
			PatientName: ticket.request.PatientName,
			ClinicName:  ticket.request.ClinicName,
		})
		return
	}

	r.notifier.Notify(ctx, ticket.identity, NotifyRetryStarted, NotificationParams{
		PatientName: ticket.request.PatientName,
		ClinicName:  ticket.request.ClinicName,
	})
	r.logger.Info("retry: call re-placed",
		"identity", maskIdentity(ticket.identity),
		"call_id", callID,
	)
}

// maskIdentity keeps full phone numbers out of logs.
func maskIdentity(identity string) string {
	if len(identity) <= 4 {
		return "****"
	}
	return "***" + identity[len(identity)-4:]
}
