package dialogue

import "time"

// BookingRequest is the immutable snapshot of everything needed to place and
// re-place a booking call on a patient's behalf.
type BookingRequest struct {
	// PatientName is used in spoken lines and confirmation texts.
	PatientName string `json:"patient_name"`
	// Reason is the patient's stated reason for the visit.
	Reason string `json:"reason"`
	// PreferredWindows is an ordered list of time windows the patient offered,
	// most preferred first (e.g. "Tuesday afternoon").
	PreferredWindows []string `json:"preferred_windows,omitempty"`
	// ClinicName is the display name of the clinic being called.
	ClinicName string `json:"clinic_name"`
	// ClinicPhone is the clinic's phone number in E.164.
	ClinicPhone string `json:"clinic_phone"`
	// CallbackPhone is the patient's phone in E.164; it keys retry tickets and
	// receives confirmation/failure texts. Empty means no SMS follow-up.
	CallbackPhone string `json:"callback_phone,omitempty"`
}

// TranscriptEntry is a single turn in a call transcript.
type TranscriptEntry struct {
	Speaker   string    `json:"speaker"` // "agent" or "receptionist"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SpeakerAgent        = "agent"
	SpeakerReceptionist = "receptionist"
)

// Session statuses. in_progress transitions once, to confirmed or walk_in;
// abandoned is set only from the call status webhook, never by the turn logic.
const (
	StatusInProgress = "in_progress"
	StatusConfirmed  = "confirmed"
	StatusWalkIn     = "walk_in"
	StatusAbandoned  = "abandoned"
)

// Dialogue states.
const (
	StateGreeting     = "greeting"
	StateListening    = "listening"
	StateOnHold       = "on_hold"
	StateTimeProposed = "time_proposed"
	StateConfirmed    = "confirmed"
	StateEnded        = "ended"
)

// CallSession tracks the state of one active outbound booking call.
type CallSession struct {
	// CallID is the provider's call identifier; primary key.
	CallID string `json:"call_id"`
	// Request is the booking request the call was placed for.
	Request BookingRequest `json:"request"`
	// Transcript grows every turn and is never pruned during the call.
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
	// Status is the booking outcome: in_progress, confirmed, walk_in, abandoned.
	Status string `json:"status"`
	// State is the dialogue state driving the next turn.
	State string `json:"state"`
	// ProposedTime holds a candidate time awaiting receptionist confirmation.
	ProposedTime string `json:"proposed_time,omitempty"`
	// ConfirmedTime is set exactly when Status becomes confirmed; immutable after.
	ConfirmedTime string `json:"confirmed_time,omitempty"`
	// OnHoldSince is present only while the receptionist has us on hold.
	OnHoldSince *time.Time `json:"on_hold_since,omitempty"`
	// DeclineCount counts "no" turns so the decline loop can't run forever.
	DeclineCount int `json:"decline_count"`
	// StartedAt enforces the call-duration ceiling.
	StartedAt time.Time `json:"started_at"`
	// LastActivityAt tracks the most recent turn, for idle eviction.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewSession creates an in-progress session for a freshly placed call.
func NewSession(callID string, req BookingRequest, now time.Time) *CallSession {
	return &CallSession{
		CallID:         callID,
		Request:        req,
		Status:         StatusInProgress,
		State:          StateGreeting,
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// AppendTranscript records one spoken turn.
func (s *CallSession) AppendTranscript(speaker, text string, at time.Time) {
	if text == "" {
		return
	}
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: at,
	})
}

// Terminal reports whether the dialogue has reached a terminal state.
func (s *CallSession) Terminal() bool {
	return s.State == StateConfirmed || s.State == StateEnded
}
