// Package bridge owns one phone call: it relays audio between the
// telephony media stream and the AI stream, drives the booking and
// handoff flow, and finalizes the conversation when the call ends.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewater-labs/callbridge/bridge/contract"
	"github.com/tidewater-labs/callbridge/bridge/finalize"
	"github.com/tidewater-labs/callbridge/bridge/flow"
	statex "github.com/tidewater-labs/callbridge/bridge/state"
	"github.com/tidewater-labs/callbridge/bridge/tool"
	logx "github.com/tidewater-labs/callbridge/pkg/logger"
	"github.com/tidewater-labs/callbridge/pkg/realtime"
	"github.com/tidewater-labs/callbridge/pkg/telephony"
)

// Bridge is one call's session. Frames arrive from two goroutines (the
// telephony reader and the AI reader); a single mutex serializes every
// handler so session state needs no finer locking and barge-in stays
// atomic.
type Bridge struct {
	mu sync.Mutex

	ai        contract.AIPort
	tel       contract.TelephonyPort
	directory contract.CallDirectory
	calendar  contract.Calendar
	store     contract.Persistence
	memory    contract.Memory
	finalizer *finalize.Finalizer
	router    *tool.Router

	ses        *statex.CallSession
	greeted    bool
	finalized  bool
	lastAIText string

	log zerolog.Logger
}

func New(
	ai contract.AIPort,
	tel contract.TelephonyPort,
	directory contract.CallDirectory,
	calendar contract.Calendar,
	store contract.Persistence,
	memory contract.Memory,
	finalizer *finalize.Finalizer,
	log zerolog.Logger,
) *Bridge {
	b := &Bridge{
		ai:        ai,
		tel:       tel,
		directory: directory,
		calendar:  calendar,
		store:     store,
		memory:    memory,
		finalizer: finalizer,
		ses:       statex.NewCallSession(time.Now()),
		log:       log,
	}
	b.router = tool.NewRouter(ai, nil, memory, store, b.book, b.applyFlow, log)
	return b
}

// WithKnowledge installs the knowledge base. Separate from New because the
// router needs the bridge's callbacks, which need the bridge.
func (b *Bridge) WithKnowledge(knowledge contract.Knowledge) *Bridge {
	b.router = tool.NewRouter(b.ai, knowledge, b.memory, b.store, b.book, b.applyFlow, b.log)
	return b
}

// HandleTelephonyFrame processes one inbound media-stream frame.
func (b *Bridge) HandleTelephonyFrame(ctx context.Context, f telephony.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch f.Event {
	case telephony.EventMedia:
		if f.Media == nil {
			return
		}
		// Audio before the AI session is configured has nowhere to go.
		if !b.ses.AIReady {
			return
		}
		if err := b.ai.AppendAudio(f.Media.Payload); err != nil {
			b.log.Warn().Err(err).Msg("append audio failed")
		}

	case telephony.EventStart:
		if f.Start == nil {
			b.log.Error().Msg("start frame without identifiers")
			return
		}
		b.ses.CallID = f.Start.CallSid
		b.ses.StreamID = f.Start.StreamSid
		b.log = logx.ForCall(f.Start.CallSid, f.Start.StreamSid)
		b.log.Info().Msg("media stream started")
		if b.ses.AIReady {
			b.bootstrap(ctx)
		}

	case telephony.EventStop:
		b.finalizeLocked(ctx)
	}
}

// HandleAIEvent processes one inbound AI-stream event.
func (b *Bridge) HandleAIEvent(ctx context.Context, evt realtime.ServerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case realtime.EventSessionCreated:
		if err := b.ai.ConfigureSession(); err != nil {
			b.log.Error().Err(err).Msg("configure session failed")
		}

	case realtime.EventSessionUpdated:
		b.ses.AIReady = true
		if b.ses.CallID != "" {
			b.bootstrap(ctx)
		}

	case realtime.EventSpeechStarted:
		// Barge-in: flush buffered playback first so the caller hears
		// silence immediately, then cancel the in-flight response.
		if b.ses.StreamID != "" {
			if err := b.tel.SendClear(b.ses.StreamID); err != nil {
				b.log.Warn().Err(err).Msg("send clear failed")
			}
		}
		if err := b.ai.CancelResponse(); err != nil {
			b.log.Warn().Err(err).Msg("cancel response failed")
		}

	case realtime.EventAudioDelta:
		if b.ses.StreamID == "" {
			return
		}
		if err := b.tel.SendMedia(b.ses.StreamID, evt.Delta); err != nil {
			b.log.Warn().Err(err).Msg("send media failed")
		}

	case realtime.EventToolArgumentsDone:
		inv := contract.ToolInvocation{Name: evt.Name, Arguments: evt.Arguments}
		if err := b.router.Dispatch(ctx, b.ses, inv); err != nil {
			b.log.Error().Err(err).Str("tool", evt.Name).Msg("tool dispatch failed")
		}

	case realtime.EventContentDone:
		b.assistantTurn(ctx, evt.Content)

	case realtime.EventAudioTranscriptDone:
		b.assistantTurn(ctx, evt.Transcript)

	case realtime.EventUserTranscriptCompleted:
		b.userTurn(ctx, evt.Transcript)
	}
}

// Finalize runs the post-call pipeline once. Safe to call from both the
// stop frame and the socket-close path.
func (b *Bridge) Finalize(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalizeLocked(ctx)
}

func (b *Bridge) finalizeLocked(ctx context.Context) {
	if b.finalized {
		return
	}
	b.finalized = true
	b.finalizer.Run(ctx, b.ses)
	b.ses.ConversationID = ""
}

// bootstrap resolves the caller, opens the conversation, and speaks the
// opening turn. Runs once, whichever of the start frame and session
// readiness lands second.
func (b *Bridge) bootstrap(ctx context.Context) {
	if b.greeted {
		return
	}
	b.greeted = true

	greeting := flow.PromptNewCaller

	number, err := b.directory.CallerNumber(ctx, b.ses.CallID)
	if err != nil {
		// Without a caller identity there is nothing to persist; the call
		// still proceeds with the default greeting.
		b.log.Error().Err(err).Msg("caller lookup failed")
	} else {
		b.ses.CallerID = number
		greeting = b.openConversation(ctx, number)
	}

	if err := b.ai.CreateResponse(greeting, flow.GreetingTokens); err != nil {
		b.log.Error().Err(err).Msg("opening turn failed")
	}
}

// openConversation persists the caller and conversation rows and picks the
// opening prompt: a recap for a returning caller whose previous call
// finished cleanly, otherwise a generic or introductory greeting.
func (b *Bridge) openConversation(ctx context.Context, number string) string {
	caller, err := b.store.CreateOrGetCaller(ctx, number)
	if err != nil {
		b.log.Error().Err(err).Msg("create caller failed")
		return flow.PromptNewCaller
	}

	conv, err := b.store.CreateConversation(ctx, number, b.ses.CallID)
	if err != nil {
		b.log.Error().Err(err).Msg("create conversation failed")
	} else {
		b.ses.ConversationID = conv.ID
	}

	last, err := b.store.LastConversation(ctx, number)
	if err != nil {
		b.log.Error().Err(err).Msg("last conversation lookup failed")
		last = nil
	}

	switch {
	case caller.Name != "" && last != nil && last.Summary != "" &&
		last.BookingState == string(statex.StateIdle):
		return flow.ReturningCallerPrompt(caller.Name, flow.SummarizeTopic(last.Summary))
	case caller.Name != "":
		return flow.PromptGenericReturn
	default:
		return flow.PromptNewCaller
	}
}

// assistantTurn records one user-facing AI reply and feeds it to the flow.
func (b *Bridge) assistantTurn(ctx context.Context, text string) {
	text = flow.Sanitize(text)
	if text == "" || text == b.lastAIText {
		return
	}
	b.lastAIText = text

	if b.ses.SuppressNextTranscriptAppend {
		b.ses.SuppressNextTranscriptAppend = false
		return
	}

	b.ses.AppendAI(text)
	if b.ses.ConversationID != "" {
		if err := b.store.UpdateLastExchange(ctx, b.ses.ConversationID, b.ses.LastUserUtterance, text); err != nil {
			b.log.Warn().Err(err).Msg("update last exchange failed")
		}
	}

	res := flow.Transition(flow.Input{
		State: b.ses.Booking,
		Turn:  flow.Turn{Role: flow.RoleAI, Text: text},
		Now:   time.Now(),
	})
	b.applyFlow(ctx, b.ses, res)
}

// userTurn records one transcribed user utterance and feeds it to the
// flow, augmenting the AI with long-term memory when the utterance asks
// for remembered things.
func (b *Bridge) userTurn(ctx context.Context, text string) {
	text = flow.Sanitize(text)
	if text == "" {
		return
	}

	// Mid-flow utterances are flow input (a time, an email, a yes/no), not
	// memory queries.
	if b.ses.Booking == statex.StateIdle && b.ses.CallerID != "" &&
		flow.MemoryRelevant(text, flow.DefaultMemoryKeywords) {
		memories, err := b.memory.Relevant(ctx, b.ses.CallerID, text)
		if err != nil {
			b.log.Warn().Err(err).Msg("memory lookup failed")
		} else if len(memories) > 0 {
			if err := b.ai.CreateResponse(flow.MemoryAugmentedPrompt(text, memories), flow.ShortReplyTokens); err != nil {
				b.log.Warn().Err(err).Msg("memory prompt failed")
			}
		}
	}

	b.ses.AppendUser(text)

	res := flow.Transition(flow.Input{
		State: b.ses.Booking,
		Turn:  flow.Turn{Role: flow.RoleUser, Text: text},
		Now:   time.Now(),
	})
	b.applyFlow(ctx, b.ses, res)
}

// applyFlow applies one transition result: pending updates, the state
// change, then effects in order.
func (b *Bridge) applyFlow(ctx context.Context, ses *statex.CallSession, res flow.Result) {
	if res.PendingTime != nil {
		ses.PendingTime = res.PendingTime
	}
	if res.PendingEmail != "" {
		ses.PendingEmail = res.PendingEmail
	}
	ses.Booking = res.State

	for _, e := range res.Effects {
		switch e.Kind {
		case flow.EffectPrompt:
			if err := b.ai.CreateResponse(e.Prompt, e.MaxTokens); err != nil {
				b.log.Warn().Err(err).Msg("flow prompt failed")
			}
		case flow.EffectPersistState:
			b.persistState(ctx, e.State)
		case flow.EffectCollectEmail:
			b.collectEmail(ctx, ses)
		case flow.EffectBook:
			b.book(ctx, ses)
		case flow.EffectRedirect:
			b.redirect(ctx)
		}
	}
}

func (b *Bridge) persistState(ctx context.Context, st statex.BookingState) {
	if b.ses.ConversationID == "" {
		return
	}
	if err := b.store.UpdateBookingState(ctx, b.ses.ConversationID, string(st)); err != nil {
		b.log.Warn().Err(err).Msg("persist booking state failed")
	}
}

// collectEmail branches after a time is parsed: reuse a stored email with
// confirmation, or ask the caller to spell one out.
func (b *Bridge) collectEmail(ctx context.Context, ses *statex.CallSession) {
	email := ""
	if ses.CallerID != "" {
		stored, err := b.store.CallerEmail(ctx, ses.CallerID)
		if err != nil {
			b.log.Warn().Err(err).Msg("stored email lookup failed")
		} else {
			email = stored
		}
	}

	if email != "" {
		ses.PendingEmail = email
		ses.Booking = statex.StateConfirmExistingEmail
		b.persistState(ctx, statex.StateConfirmExistingEmail)
		if err := b.ai.CreateResponse(flow.ConfirmStoredEmailPrompt(email), flow.EmailConfirmTokens); err != nil {
			b.log.Warn().Err(err).Msg("stored email prompt failed")
		}
		return
	}

	ses.Booking = statex.StateAwaitingEmail
	if err := b.ai.CreateResponse(flow.PromptSpellEmail, flow.ShortReplyTokens); err != nil {
		b.log.Warn().Err(err).Msg("spell email prompt failed")
	}
}

// book creates the calendar event and booking row from the pending time
// and email, then reports the outcome to the caller. Either way the flow
// returns to idle.
func (b *Bridge) book(ctx context.Context, ses *statex.CallSession) {
	defer func() {
		ses.PendingTime = nil
		ses.PendingEmail = ""
		ses.Booking = statex.StateIdle
		b.persistState(ctx, statex.StateIdle)
	}()

	if ses.PendingTime == nil || ses.PendingEmail == "" {
		b.log.Error().Msg("booking requested without pending time or email")
		b.speak(flow.PromptBookingFailed)
		return
	}

	eventID, err := b.calendar.CreateEvent(ctx, contract.BookingRequest{
		Start: *ses.PendingTime,
		Email: ses.PendingEmail,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("calendar booking failed")
		b.speak(flow.PromptBookingFailed)
		return
	}

	booking := contract.Booking{
		ID:             eventID,
		CallerID:       ses.CallerID,
		ConversationID: ses.ConversationID,
		State:          "confirmed",
		Time:           *ses.PendingTime,
		Email:          ses.PendingEmail,
	}
	if err := b.store.CreateBooking(ctx, booking); err != nil {
		b.log.Error().Err(err).Msg("store booking failed")
	}
	if ses.CallerID != "" {
		if err := b.store.UpdateCallerEmail(ctx, ses.CallerID, ses.PendingEmail); err != nil {
			b.log.Warn().Err(err).Msg("store caller email failed")
		}
	}

	b.log.Info().Str("event_id", eventID).Msg("training session booked")
	b.speak(flow.PromptBookingSuccess)
}

// redirect hands the call to the fundraising expert. On failure the
// caller hears an apology and stays with the AI.
func (b *Bridge) redirect(ctx context.Context) {
	if err := b.directory.RedirectToExpert(ctx, b.ses.CallID); err != nil {
		b.log.Error().Err(err).Msg("redirect failed")
		b.speak(flow.PromptRedirectFailed)
		return
	}
	b.log.Info().Str("call_sid", b.ses.CallID).Msg("call redirected to expert")
}

func (b *Bridge) speak(prompt string) {
	if err := b.ai.CreateResponse(prompt, flow.ShortReplyTokens); err != nil {
		b.log.Warn().Err(err).Msg("prompt failed")
	}
}
