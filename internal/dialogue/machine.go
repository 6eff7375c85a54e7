package dialogue

import (
	"context"
	"fmt"
	"time"

	"github.com/carelineai/concierge/internal/observability/metrics"
	"github.com/carelineai/concierge/pkg/logging"
)

// CallPlacer initiates an outbound call to a clinic and returns the
// provider-assigned call ID.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to string) (string, error)
}

// FallbackResponder produces a free-text next line when no intent pattern
// matched. It is injected so tests can stub it deterministically.
type FallbackResponder interface {
	NextLine(ctx context.Context, session *CallSession, utterance string) (string, error)
}

// clarifyLine is spoken whenever the fallback responder fails or returns
// nothing; the receptionist never hears an error.
const clarifyLine = "Could you share an available day and time?"

// EngineConfig holds the dialogue ceilings and timers.
type EngineConfig struct {
	CallDurationCeiling time.Duration
	HoldDurationCeiling time.Duration
	ListenTimeout       time.Duration
	HoldListenTimeout   time.Duration
	HoldPause           time.Duration
	RetryDefaultDelay   time.Duration
	MaxDeclines         int
}

// DefaultEngineConfig returns the design-value ceilings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CallDurationCeiling: 3 * time.Minute,
		HoldDurationCeiling: 90 * time.Second,
		ListenTimeout:       5 * time.Second,
		HoldListenTimeout:   5 * time.Second,
		HoldPause:           15 * time.Second,
		RetryDefaultDelay:   15 * time.Minute,
		MaxDeclines:         3,
	}
}

// TurnResult tells the telephony layer what to do next on the live call.
type TurnResult struct {
	// Say holds the line(s) to speak, in order.
	Say []string
	// Pause inserts silence before listening again (used while on hold).
	Pause time.Duration
	// Gather re-arms speech capture with the given per-turn timeout.
	Gather        bool
	GatherTimeout time.Duration
	// Hangup ends the call after speaking.
	Hangup bool
}

// Engine is the turn-driven dialogue controller. Each telephony webhook maps
// to exactly one Engine call; the provider serializes webhooks per call, so a
// turn runs without internal locking beyond the session store's own.
type Engine struct {
	store    SessionStore
	placer   CallPlacer
	fallback FallbackResponder
	notifier *Dispatcher
	retries  *RetryScheduler
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
	cfg      EngineConfig
	now      func() time.Time
}

// EngineOptions configures an Engine. Store is required; everything else is
// optional and degrades gracefully.
type EngineOptions struct {
	Store    SessionStore
	Placer   CallPlacer
	Fallback FallbackResponder
	Notifier *Dispatcher
	Retries  *RetryScheduler
	Metrics  *metrics.CallMetrics
	Logger   *logging.Logger
	Config   EngineConfig
	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewEngine creates the dialogue engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Config == (EngineConfig{}) {
		opts.Config = DefaultEngineConfig()
	}
	return &Engine{
		store:    opts.Store,
		placer:   opts.Placer,
		fallback: opts.Fallback,
		notifier: opts.Notifier,
		retries:  opts.Retries,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		cfg:      opts.Config,
		now:      opts.Now,
	}
}

// StartCall places an outbound call to the clinic and registers a session
// for it.
func (e *Engine) StartCall(ctx context.Context, req BookingRequest) (string, error) {
	if e.placer == nil {
		return "", fmt.Errorf("dialogue: call placer not configured")
	}
	if req.ClinicPhone == "" {
		return "", fmt.Errorf("dialogue: clinic phone required")
	}
	callID, err := e.placer.PlaceCall(ctx, req.ClinicPhone)
	if err != nil {
		return "", fmt.Errorf("dialogue: place call: %w", err)
	}
	session := NewSession(callID, req, e.now())
	if err := e.store.Create(ctx, session); err != nil {
		return "", fmt.Errorf("dialogue: create session: %w", err)
	}
	e.metrics.ObserveCallPlaced("api")
	e.logger.Info("call started",
		"call_id", callID,
		"clinic", req.ClinicName,
		"patient", req.PatientName,
	)
	return callID, nil
}

// Greeting produces the first spoken line once the clinic answers. The
// greeting turn is synthetic: nothing is awaited before it.
func (e *Engine) Greeting(ctx context.Context, callID string) *TurnResult {
	session, err := e.store.Get(ctx, callID)
	if err != nil {
		e.logger.Error("greeting: session lookup failed", "call_id", callID, "error", err)
		return e.lostContext()
	}
	if session == nil {
		return e.lostContext()
	}

	now := e.now()
	session.State = StateListening
	session.LastActivityAt = now

	greeting := fmt.Sprintf(
		"Hi! I'm a booking assistant calling on behalf of %s, who would like an appointment regarding %s.",
		session.Request.PatientName, session.Request.Reason,
	)
	ask := "Would you have anything available this week?"
	if len(session.Request.PreferredWindows) > 0 {
		ask = fmt.Sprintf("Would you have anything available %s?", session.Request.PreferredWindows[0])
	}

	session.AppendTranscript(SpeakerAgent, greeting+" "+ask, now)
	e.save(ctx, session)

	return &TurnResult{
		Say:           []string{greeting, ask},
		Gather:        true,
		GatherTimeout: e.cfg.ListenTimeout,
	}
}

// Turn runs the per-turn algorithm for a captured utterance. It always
// returns a speakable result, even when the session is gone.
func (e *Engine) Turn(ctx context.Context, callID, utterance string) *TurnResult {
	session, err := e.store.Get(ctx, callID)
	if err != nil {
		e.logger.Error("turn: session lookup failed", "call_id", callID, "error", err)
		return e.lostContext()
	}
	if session == nil {
		return e.lostContext()
	}

	now := e.now()
	session.LastActivityAt = now

	// The call-duration ceiling outranks everything, including a "yes" that
	// would otherwise confirm.
	if now.Sub(session.StartedAt) > e.cfg.CallDurationCeiling {
		return e.wrapUpOverCeiling(ctx, session)
	}

	if utterance != "" {
		session.AppendTranscript(SpeakerReceptionist, utterance, now)
	}

	// Hold phrases are classified before general intents. Silence while on
	// hold keeps the hold alive: hold music comes back as empty captures, and
	// only resumed speech ends a hold.
	if Classify(utterance) == IntentHold || (session.OnHoldSince != nil && utterance == "") {
		return e.handleHold(ctx, session, now)
	}
	if session.OnHoldSince != nil {
		// Non-hold speech resumed; the hold is over.
		session.OnHoldSince = nil
		if session.State == StateOnHold {
			session.State = StateListening
		}
	}

	if utterance == "" {
		return e.respond(ctx, session, &TurnResult{
			Say:           []string{"Sorry, I didn't catch that — could you say it again?"},
			Gather:        true,
			GatherTimeout: e.cfg.ListenTimeout,
		})
	}

	// A turn after a walk-in acknowledgement wraps up the call; there is no
	// slot to confirm.
	if session.Status == StatusWalkIn {
		return e.finishWalkIn(ctx, session)
	}

	intent := Classify(utterance)
	e.metrics.ObserveTurn(string(intent))

	switch intent {
	case IntentTime:
		return e.handleTime(ctx, session, utterance, now)
	case IntentYes:
		return e.handleYes(ctx, session)
	case IntentNo:
		return e.handleNo(ctx, session)
	case IntentWalkIn:
		return e.handleWalkIn(ctx, session)
	default:
		return e.handleOther(ctx, session, utterance)
	}
}

// HandleStatus reacts to call status changes from the telephony provider.
// Terminal statuses drive notifications and evict the session; failures
// suggest a retry by SMS but never arm one automatically.
func (e *Engine) HandleStatus(ctx context.Context, callID, callStatus string) {
	switch callStatus {
	case "initiated", "ringing", "answered", "in-progress":
		return
	}

	session, err := e.store.Get(ctx, callID)
	if err != nil {
		e.logger.Error("status: session lookup failed", "call_id", callID, "error", err)
		return
	}
	if session == nil {
		return
	}

	identity := session.Request.CallbackPhone
	params := NotificationParams{
		PatientName:   session.Request.PatientName,
		ClinicName:    session.Request.ClinicName,
		ConfirmedTime: session.ConfirmedTime,
		CallStatus:    callStatus,
	}

	switch callStatus {
	case "completed":
		switch session.Status {
		case StatusConfirmed:
			// Confirmation text was sent at the confirming turn.
		case StatusWalkIn:
			e.notifier.Notify(ctx, identity, NotifyWalkIn, params)
			e.metrics.ObserveNotification(string(NotifyWalkIn))
		default:
			e.rememberAttempt(session)
			e.notifier.Notify(ctx, identity, NotifyEndedUnconfirmed, params)
			e.metrics.ObserveNotification(string(NotifyEndedUnconfirmed))
		}
		e.metrics.ObserveOutcome(session.Status)
	case "failed", "busy", "no-answer", "canceled":
		session.Status = StatusAbandoned
		e.rememberAttempt(session)
		e.notifier.Notify(ctx, identity, NotifyCallFailed, params)
		e.metrics.ObserveNotification(string(NotifyCallFailed))
		e.metrics.ObserveOutcome(StatusAbandoned)
	default:
		e.logger.Warn("status: unknown call status", "call_id", callID, "status", callStatus)
		return
	}

	if err := e.store.Delete(ctx, callID); err != nil {
		e.logger.Error("status: evict failed", "call_id", callID, "error", err)
	}
	e.logger.Info("call ended",
		"call_id", callID,
		"call_status", callStatus,
		"booking_status", session.Status,
	)
}

// ----- intent branches -----

func (e *Engine) handleTime(ctx context.Context, session *CallSession, utterance string, now time.Time) *TurnResult {
	proposed := ParseSpokenTime(utterance, now)
	session.ProposedTime = proposed
	session.State = StateTimeProposed
	line := fmt.Sprintf("Just to confirm — %s for %s. Does that work?", proposed, session.Request.PatientName)
	return e.respond(ctx, session, &TurnResult{
		Say:           []string{line},
		Gather:        true,
		GatherTimeout: e.cfg.ListenTimeout,
	})
}

func (e *Engine) handleYes(ctx context.Context, session *CallSession) *TurnResult {
	if session.State != StateTimeProposed || session.ProposedTime == "" {
		// An affirmation with nothing proposed yet; steer toward a concrete time.
		line := fmt.Sprintf("Great — what day and time could you fit %s in?", session.Request.PatientName)
		return e.respond(ctx, session, &TurnResult{
			Say:           []string{line},
			Gather:        true,
			GatherTimeout: e.cfg.ListenTimeout,
		})
	}

	session.ConfirmedTime = session.ProposedTime
	session.Status = StatusConfirmed
	session.State = StateConfirmed

	closing := fmt.Sprintf("Wonderful! %s will see you %s. Thank you so much, goodbye!",
		session.Request.PatientName, session.ConfirmedTime)

	result := e.respond(ctx, session, &TurnResult{
		Say:    []string{closing},
		Hangup: true,
	})

	e.notifier.Notify(ctx, session.Request.CallbackPhone, NotifyConfirmed, NotificationParams{
		PatientName:   session.Request.PatientName,
		ClinicName:    session.Request.ClinicName,
		ConfirmedTime: session.ConfirmedTime,
	})
	e.metrics.ObserveNotification(string(NotifyConfirmed))
	e.metrics.ObserveOutcome(StatusConfirmed)
	e.evict(ctx, session.CallID)
	return result
}

func (e *Engine) handleNo(ctx context.Context, session *CallSession) *TurnResult {
	session.DeclineCount++
	session.ProposedTime = ""
	session.State = StateListening

	if session.DeclineCount >= e.cfg.MaxDeclines {
		session.State = StateEnded
		line := "I understand — it sounds like nothing lines up right now. Thanks for your time, goodbye!"
		result := e.respond(ctx, session, &TurnResult{
			Say:    []string{line},
			Hangup: true,
		})
		e.rememberAttempt(session)
		e.notifier.Notify(ctx, session.Request.CallbackPhone, NotifyEndedUnconfirmed, NotificationParams{
			PatientName: session.Request.PatientName,
			ClinicName:  session.Request.ClinicName,
		})
		e.metrics.ObserveNotification(string(NotifyEndedUnconfirmed))
		e.metrics.ObserveOutcome("declined")
		e.evict(ctx, session.CallID)
		return result
	}

	line := "No problem. Is there another day or time that would work?"
	if idx := session.DeclineCount; idx < len(session.Request.PreferredWindows) {
		line = fmt.Sprintf("No problem. Would %s work instead?", session.Request.PreferredWindows[idx])
	}
	return e.respond(ctx, session, &TurnResult{
		Say:           []string{line},
		Gather:        true,
		GatherTimeout: e.cfg.ListenTimeout,
	})
}

func (e *Engine) handleWalkIn(ctx context.Context, session *CallSession) *TurnResult {
	session.Status = StatusWalkIn
	session.State = StateListening
	line := fmt.Sprintf("Oh, that's good to know — walk-ins work for %s. Is there anything they should bring along?",
		session.Request.PatientName)
	return e.respond(ctx, session, &TurnResult{
		Say:           []string{line},
		Gather:        true,
		GatherTimeout: e.cfg.ListenTimeout,
	})
}

func (e *Engine) finishWalkIn(ctx context.Context, session *CallSession) *TurnResult {
	session.State = StateEnded
	result := e.respond(ctx, session, &TurnResult{
		Say:    []string{"Perfect, I'll pass that along. Thank you so much, goodbye!"},
		Hangup: true,
	})
	e.notifier.Notify(ctx, session.Request.CallbackPhone, NotifyWalkIn, NotificationParams{
		PatientName: session.Request.PatientName,
		ClinicName:  session.Request.ClinicName,
	})
	e.metrics.ObserveNotification(string(NotifyWalkIn))
	e.metrics.ObserveOutcome(StatusWalkIn)
	e.evict(ctx, session.CallID)
	return result
}

func (e *Engine) handleOther(ctx context.Context, session *CallSession, utterance string) *TurnResult {
	session.State = StateListening
	line := clarifyLine
	if e.fallback != nil {
		fbCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		defer cancel()
		text, err := e.fallback.NextLine(fbCtx, session, utterance)
		if err != nil {
			e.logger.Warn("fallback responder failed", "call_id", session.CallID, "error", err)
		} else if text != "" {
			line = text
		}
	}
	return e.respond(ctx, session, &TurnResult{
		Say:           []string{line},
		Gather:        true,
		GatherTimeout: e.cfg.ListenTimeout,
	})
}

// ----- hold and ceiling handling -----

func (e *Engine) handleHold(ctx context.Context, session *CallSession, now time.Time) *TurnResult {
	if session.OnHoldSince == nil {
		held := now
		session.OnHoldSince = &held
		session.State = StateOnHold
		return e.respond(ctx, session, &TurnResult{
			Say:           []string{"Of course, I'll hold."},
			Pause:         e.cfg.HoldPause,
			Gather:        true,
			GatherTimeout: e.cfg.HoldListenTimeout,
		})
	}

	if now.Sub(*session.OnHoldSince) > e.cfg.HoldDurationCeiling {
		session.State = StateEnded
		result := e.respond(ctx, session, &TurnResult{
			Say:    []string{"I'm sorry, I haven't been able to stay on the line. We'll call back later. Goodbye!"},
			Hangup: true,
		})
		identity := session.Request.CallbackPhone
		if identity != "" && e.retries != nil {
			e.retries.Schedule(identity, session.Request, e.cfg.RetryDefaultDelay)
		}
		e.notifier.Notify(ctx, identity, NotifyHoldTimeout, NotificationParams{
			PatientName: session.Request.PatientName,
			ClinicName:  session.Request.ClinicName,
			RetryDelay:  humanDelay(e.cfg.RetryDefaultDelay),
		})
		e.metrics.ObserveNotification(string(NotifyHoldTimeout))
		e.metrics.ObserveOutcome("hold_timeout")
		e.evict(ctx, session.CallID)
		return result
	}

	return e.respond(ctx, session, &TurnResult{
		Say:           []string{"Still here, no rush."},
		Pause:         e.cfg.HoldPause,
		Gather:        true,
		GatherTimeout: e.cfg.HoldListenTimeout,
	})
}

func (e *Engine) wrapUpOverCeiling(ctx context.Context, session *CallSession) *TurnResult {
	session.State = StateEnded
	result := e.respond(ctx, session, &TurnResult{
		Say:    []string{"I'm sorry, I've taken up enough of your time. We'll follow up another way. Thank you!"},
		Hangup: true,
	})
	e.rememberAttempt(session)
	e.notifier.Notify(ctx, session.Request.CallbackPhone, NotifyEndedUnconfirmed, NotificationParams{
		PatientName: session.Request.PatientName,
		ClinicName:  session.Request.ClinicName,
	})
	e.metrics.ObserveNotification(string(NotifyEndedUnconfirmed))
	e.metrics.ObserveOutcome("call_timeout")
	e.evict(ctx, session.CallID)
	return result
}

// ----- helpers -----

// respond records the agent's lines in the transcript and persists the
// session, then returns the result unchanged.
func (e *Engine) respond(ctx context.Context, session *CallSession, result *TurnResult) *TurnResult {
	now := e.now()
	for _, line := range result.Say {
		session.AppendTranscript(SpeakerAgent, line, now)
	}
	e.save(ctx, session)
	return result
}

func (e *Engine) save(ctx context.Context, session *CallSession) {
	if err := e.store.Save(ctx, session); err != nil {
		e.logger.Error("session save failed", "call_id", session.CallID, "error", err)
	}
}

func (e *Engine) evict(ctx context.Context, callID string) {
	if err := e.store.Delete(ctx, callID); err != nil {
		e.logger.Error("session evict failed", "call_id", callID, "error", err)
	}
}

func (e *Engine) rememberAttempt(session *CallSession) {
	if e.retries != nil && session.Request.CallbackPhone != "" {
		e.retries.RememberAttempt(session.Request.CallbackPhone, session.Request)
	}
}

func (e *Engine) lostContext() *TurnResult {
	return &TurnResult{
		Say:    []string{"I'm sorry, I've lost track of this call. We'll follow up another way. Goodbye!"},
		Hangup: true,
	}
}

func humanDelay(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%.0f hours", d.Hours())
	}
	return fmt.Sprintf("%.0f minutes", d.Minutes())
}
