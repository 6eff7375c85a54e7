package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carelineai/concierge/internal/dialogue"
)

// voiceSystemPrompt keeps generated lines usable over the phone.
const voiceSystemPrompt = "You are a polite booking assistant on a live phone call with a clinic receptionist, " +
	"trying to schedule an appointment for a patient. " +
	"Reply with exactly one short spoken sentence that moves the conversation toward agreeing on an " +
	"appointment day and time. Use spoken language, no lists, no URLs, never mention being an AI."

// Responder turns unclassified receptionist utterances into a next spoken
// line using a language model. It satisfies the dialogue's fallback contract.
type Responder struct {
	client  Client
	modelID string
}

// NewResponder creates a fallback responder backed by client.
func NewResponder(client Client, modelID string) *Responder {
	return &Responder{client: client, modelID: modelID}
}

// NextLine produces the agent's next spoken line given the call so far.
func (r *Responder) NextLine(ctx context.Context, session *dialogue.CallSession, utterance string) (string, error) {
	if r == nil || r.client == nil {
		return "", errors.New("llm: responder not configured")
	}

	req := Request{
		Model: r.modelID,
		System: []string{
			voiceSystemPrompt,
			fmt.Sprintf("The patient is %s, calling %s about: %s.",
				session.Request.PatientName, session.Request.ClinicName, session.Request.Reason),
			preferredWindowsPrompt(session.Request.PreferredWindows),
		},
		Messages:    transcriptMessages(session, utterance),
		MaxTokens:   120,
		Temperature: 0.4,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: fallback completion: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func preferredWindowsPrompt(windows []string) string {
	if len(windows) == 0 {
		return "The patient is flexible about timing."
	}
	return "The patient prefers, in order: " + strings.Join(windows, "; ") + "."
}

// transcriptMessages maps the transcript into chat turns, receptionist as
// user and agent as assistant, ending with the current utterance.
func transcriptMessages(session *dialogue.CallSession, utterance string) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(session.Transcript)+1)
	for _, entry := range session.Transcript {
		role := ChatRoleUser
		if entry.Speaker == dialogue.SpeakerAgent {
			role = ChatRoleAssistant
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: entry.Text})
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Content != utterance {
		msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: utterance})
	}
	return msgs
}
