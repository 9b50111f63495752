// Package flow holds the booking/handoff state machine as a pure
// transition function, separated from all I/O so every reachable
// (state, turn) pair can be exercised without a live socket.
package flow

import (
	"time"

	contractx "github.com/tidewater-labs/callbridge/bridge/contract"
	statex "github.com/tidewater-labs/callbridge/bridge/state"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
	RoleTool Role = "tool"
)

// Turn is one input to the machine: a user utterance, an AI utterance, or
// a tool-call request, tagged with its role.
type Turn struct {
	Role Role
	Text string
	Tool string // set only for RoleTool
}

type EffectKind string

const (
	// EffectPrompt asks the AI to speak the given instructions.
	EffectPrompt EffectKind = "prompt"
	// EffectPersistState writes the new booking state to the store.
	EffectPersistState EffectKind = "persist_state"
	// EffectCollectEmail looks up a stored email and branches to the
	// reuse-confirmation or spell-it-out path.
	EffectCollectEmail EffectKind = "collect_email"
	// EffectBook invokes the booking handler with the pending time/email.
	EffectBook EffectKind = "book"
	// EffectRedirect invokes the call-redirect handler.
	EffectRedirect EffectKind = "redirect"
)

type Effect struct {
	Kind      EffectKind
	Prompt    string
	MaxTokens int
	State     statex.BookingState
}

// Input is a snapshot of everything a transition may read.
type Input struct {
	State statex.BookingState
	Turn  Turn
	Now   time.Time
}

// Result carries the next state plus ordered side effects for the bridge
// to apply. PendingTime/PendingEmail are session updates; nil/empty means
// unchanged.
type Result struct {
	State        statex.BookingState
	PendingTime  *time.Time
	PendingEmail string
	Effects      []Effect
}

func unchanged(in Input) Result {
	return Result{State: in.State}
}

// Transition is total: for every reachable input it returns a defined next
// state. Inputs a state does not expect are no-ops that leave the state
// unchanged.
func Transition(in Input) Result {
	switch in.State {
	case statex.StateIdle:
		return fromIdle(in)
	case statex.StateAwaitingTime:
		return fromAwaitingTime(in)
	case statex.StateAwaitingEmail:
		return fromAwaitingEmail(in)
	case statex.StateConfirmEmail, statex.StateConfirmExistingEmail:
		return fromConfirmEmail(in)
	case statex.StateAwaitingInvestment:
		return fromAwaitingInvestment(in)
	default:
		return unchanged(in)
	}
}

func fromIdle(in Input) Result {
	switch in.Turn.Role {
	case RoleAI:
		if !HasBookingIntent(in.Turn.Text) {
			return unchanged(in)
		}
		return Result{
			State: statex.StateAwaitingTime,
			Effects: []Effect{
				{Kind: EffectPrompt, Prompt: PromptAskTime, MaxTokens: shortReplyTokens},
				{Kind: EffectPersistState, State: statex.StateAwaitingTime},
			},
		}
	case RoleTool:
		if in.Turn.Tool != contractx.ToolInvestmentQuery {
			return unchanged(in)
		}
		return Result{
			State: statex.StateAwaitingInvestment,
			Effects: []Effect{
				{Kind: EffectPrompt, Prompt: PromptInvestmentConsent, MaxTokens: shortReplyTokens},
				{Kind: EffectPersistState, State: statex.StateAwaitingInvestment},
			},
		}
	default:
		return unchanged(in)
	}
}

// The collecting states accept user turns only: the AI's own prompts echo
// back through transcript-done events and must never be read as answers.
func fromAwaitingTime(in Input) Result {
	if in.Turn.Role != RoleUser {
		return unchanged(in)
	}
	parsed, ok := ParseTime(in.Turn.Text, in.Now)
	if !ok {
		return Result{
			State:   statex.StateAwaitingTime,
			Effects: []Effect{{Kind: EffectPrompt, Prompt: PromptRetryTime, MaxTokens: shortReplyTokens}},
		}
	}
	return Result{
		State:       statex.StateAwaitingEmail,
		PendingTime: &parsed,
		Effects: []Effect{
			{Kind: EffectPersistState, State: statex.StateAwaitingEmail},
			{Kind: EffectCollectEmail},
		},
	}
}

func fromAwaitingEmail(in Input) Result {
	if in.Turn.Role != RoleUser {
		return unchanged(in)
	}
	email := ReconstructEmail(in.Turn.Text)
	if !ValidateEmail(email) {
		return Result{
			State:   statex.StateAwaitingEmail,
			Effects: []Effect{{Kind: EffectPrompt, Prompt: PromptInvalidEmail, MaxTokens: shortReplyTokens}},
		}
	}
	return Result{
		State:        statex.StateConfirmEmail,
		PendingEmail: email,
		Effects: []Effect{
			{Kind: EffectPersistState, State: statex.StateConfirmEmail},
			{Kind: EffectPrompt, Prompt: ConfirmEmailPrompt(email), MaxTokens: shortReplyTokens},
		},
	}
}

func fromConfirmEmail(in Input) Result {
	if in.Turn.Role != RoleUser {
		return unchanged(in)
	}
	if IsAffirmative(in.Turn.Text) {
		// The booking handler reports its own success or apology prompt
		// and persists the return to idle; either way the flow is over.
		return Result{
			State:   statex.StateIdle,
			Effects: []Effect{{Kind: EffectBook}},
		}
	}
	prompt := PromptReenterEmail
	if in.State == statex.StateConfirmExistingEmail {
		prompt = PromptNewEmail
	}
	return Result{
		State: statex.StateAwaitingEmail,
		Effects: []Effect{
			{Kind: EffectPrompt, Prompt: prompt, MaxTokens: shortReplyTokens},
			{Kind: EffectPersistState, State: statex.StateAwaitingEmail},
		},
	}
}

func fromAwaitingInvestment(in Input) Result {
	if in.Turn.Role != RoleUser {
		return unchanged(in)
	}
	if IsAffirmative(in.Turn.Text) {
		return Result{
			State: statex.StateIdle,
			Effects: []Effect{
				{Kind: EffectRedirect},
				{Kind: EffectPersistState, State: statex.StateIdle},
			},
		}
	}
	return Result{
		State: statex.StateIdle,
		Effects: []Effect{
			{Kind: EffectPrompt, Prompt: PromptInvestmentDeclined, MaxTokens: shortReplyTokens},
			{Kind: EffectPersistState, State: statex.StateIdle},
		},
	}
}
