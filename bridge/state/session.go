package state

import (
	"strings"
	"time"
)

// BookingState is the scheduling/handoff sub-flow position. Exactly one
// value is active per session; every completed or abandoned flow cycles
// back to StateIdle.
type BookingState string

const (
	StateIdle                 BookingState = "idle"
	StateAwaitingTime         BookingState = "awaiting_time"
	StateAwaitingEmail        BookingState = "awaiting_email"
	StateConfirmEmail         BookingState = "confirm_email"
	StateConfirmExistingEmail BookingState = "confirm_existing_email"
	StateAwaitingInvestment   BookingState = "awaiting_investment_confirmation"
)

type Speaker string

const (
	SpeakerUser Speaker = "User"
	SpeakerAI   Speaker = "AI"
)

// Utterance is one speaker-tagged transcript entry.
type Utterance struct {
	Speaker Speaker
	Text    string
}

// CallSession is the per-call mutable state, owned exclusively by the
// session bridge for the call's lifetime. Function-call intermediates are
// kept out of the transcript; only user speech and user-facing AI replies
// are recorded.
type CallSession struct {
	CallID         string // external call identifier; conversation id equals this
	StreamID       string // media-stream identifier, for outbound frames
	CallerID       string // phone-number-like caller identity
	ConversationID string

	Transcript        []Utterance
	LastUserUtterance string

	Booking      BookingState
	PendingTime  *time.Time
	PendingEmail string

	AIReady bool
	// SuppressNextTranscriptAppend is set exactly while relaying a
	// tool-call follow-up so its restatement is not double-recorded.
	SuppressNextTranscriptAppend bool

	StartedAt time.Time
}

func NewCallSession(now time.Time) *CallSession {
	return &CallSession{
		Booking:   StateIdle,
		StartedAt: now.UTC(),
	}
}

// AppendUser records a user utterance and remembers it as the last
// question for last-exchange persistence.
func (s *CallSession) AppendUser(text string) {
	s.Transcript = append(s.Transcript, Utterance{Speaker: SpeakerUser, Text: text})
	s.LastUserUtterance = text
}

func (s *CallSession) AppendAI(text string) {
	s.Transcript = append(s.Transcript, Utterance{Speaker: SpeakerAI, Text: text})
}

// Dialogue renders the transcript in the "Speaker: text" line format fed
// to summarization and fact extraction.
func (s *CallSession) Dialogue() string {
	if len(s.Transcript) == 0 {
		return ""
	}
	var b strings.Builder
	for _, u := range s.Transcript {
		b.WriteString(string(u.Speaker))
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}
