// Package tool routes decoded tool calls from the AI stream to their
// handlers. At most one invocation is in flight per AI turn.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewater-labs/callbridge/bridge/contract"
	"github.com/tidewater-labs/callbridge/bridge/flow"
	statex "github.com/tidewater-labs/callbridge/bridge/state"
)

// BookFunc creates the booking from the session's pending time and email
// and speaks the success or apology prompt.
type BookFunc func(ctx context.Context, ses *statex.CallSession)

// ApplyFunc applies a flow transition result to the session: state change,
// pending updates, and effects.
type ApplyFunc func(ctx context.Context, ses *statex.CallSession, res flow.Result)

// Router dispatches tool invocations. It shares the session with the
// bridge and is only ever called from the AI-reader goroutine.
type Router struct {
	ai        contract.AIPort
	knowledge contract.Knowledge
	memory    contract.Memory
	store     contract.Persistence
	book      BookFunc
	apply     ApplyFunc
	log       zerolog.Logger
}

func NewRouter(
	ai contract.AIPort,
	knowledge contract.Knowledge,
	memory contract.Memory,
	store contract.Persistence,
	book BookFunc,
	apply ApplyFunc,
	log zerolog.Logger,
) *Router {
	return &Router{
		ai:        ai,
		knowledge: knowledge,
		memory:    memory,
		store:     store,
		book:      book,
		apply:     apply,
		log:       log,
	}
}

// Dispatch runs one tool invocation against the session.
func (r *Router) Dispatch(ctx context.Context, ses *statex.CallSession, inv contract.ToolInvocation) error {
	switch inv.Name {
	case contract.ToolKnowledgeBase:
		return r.knowledgeLookup(ctx, ses, inv)
	case contract.ToolScheduleSession:
		return r.scheduleSession(ctx, ses, inv)
	case contract.ToolRetrieveEmail:
		return r.retrieveEmail(ctx, ses)
	case contract.ToolInvestmentQuery:
		return r.investmentQuery(ctx, ses)
	case contract.ToolLongTermMemory:
		return r.memoryLookup(ctx, ses, inv)
	default:
		return fmt.Errorf("%w: %s", contract.ErrUnknownTool, inv.Name)
	}
}

type knowledgeArgs struct {
	Question string `json:"question"`
}

func (r *Router) knowledgeLookup(ctx context.Context, ses *statex.CallSession, inv contract.ToolInvocation) error {
	var args knowledgeArgs
	if err := json.Unmarshal([]byte(inv.Arguments), &args); err != nil || args.Question == "" {
		return fmt.Errorf("%w: %s", contract.ErrBadToolArgs, inv.Name)
	}

	// Let the caller know the lookup is running before the search
	// round-trips.
	if err := r.ai.CreateAssistantItem(flow.PromptKnowledgeChecking); err != nil {
		r.log.Warn().Err(err).Msg("send checking notice")
	}
	ses.AppendAI(flow.PromptKnowledgeChecking)

	answer, err := r.knowledge.Ask(ctx, args.Question)
	if err != nil {
		r.log.Error().Err(err).Msg("knowledge lookup failed")
		answer = ""
	}
	if answer == "" {
		ses.AppendAI(flow.PromptKnowledgeMiss)
		if err := r.ai.CreateAssistantItem(flow.PromptKnowledgeMiss); err != nil {
			return fmt.Errorf("send knowledge miss: %w", err)
		}
		return nil
	}

	// The answer is a tool intermediate and stays off the transcript; the
	// restatement the summary request produces is suppressed with it.
	if err := r.ai.CreateToolOutput(answer); err != nil {
		return fmt.Errorf("send knowledge output: %w", err)
	}
	ses.SuppressNextTranscriptAppend = true
	if err := r.ai.CreateResponse(flow.KnowledgeSummaryPrompt(answer), flow.KnowledgeSummaryTokens); err != nil {
		return fmt.Errorf("request knowledge summary: %w", err)
	}
	return nil
}

type scheduleArgs struct {
	PreferredTime string `json:"preferred_time"`
	Email         string `json:"email"`
}

// scheduleSession handles the direct booking path, where the AI collected
// time and email itself instead of walking the state machine.
func (r *Router) scheduleSession(ctx context.Context, ses *statex.CallSession, inv contract.ToolInvocation) error {
	var args scheduleArgs
	if err := json.Unmarshal([]byte(inv.Arguments), &args); err != nil {
		return r.badSchedule(fmt.Errorf("%w: %s", contract.ErrBadToolArgs, inv.Name))
	}
	start, err := time.Parse(time.RFC3339, args.PreferredTime)
	if err != nil {
		return r.badSchedule(fmt.Errorf("%w: bad preferred_time %q", contract.ErrBadToolArgs, args.PreferredTime))
	}
	email := flow.ReconstructEmail(args.Email)
	if !flow.ValidateEmail(email) {
		return r.badSchedule(fmt.Errorf("%w: bad email %q", contract.ErrBadToolArgs, args.Email))
	}

	ses.PendingTime = &start
	ses.PendingEmail = email
	r.book(ctx, ses)
	return nil
}

// badSchedule apologizes aloud before surfacing the argument error; a
// silent turn would leave the caller hanging.
func (r *Router) badSchedule(cause error) error {
	if err := r.ai.CreateResponse(flow.PromptBookingFailed, flow.ShortReplyTokens); err != nil {
		r.log.Warn().Err(err).Msg("booking apology failed")
	}
	return cause
}

func (r *Router) retrieveEmail(ctx context.Context, ses *statex.CallSession) error {
	email, err := r.store.CallerEmail(ctx, ses.CallerID)
	if err != nil {
		r.log.Error().Err(err).Msg("caller email lookup failed")
		email = ""
	}
	if email == "" {
		if err := r.ai.CreateToolOutput("No email address on file."); err != nil {
			return fmt.Errorf("send email output: %w", err)
		}
		return r.ai.CreateResponse(flow.PromptAskEmailAfterMiss, flow.EmailConfirmTokens)
	}
	if err := r.ai.CreateToolOutput(email); err != nil {
		return fmt.Errorf("send email output: %w", err)
	}
	return r.ai.CreateResponse(flow.RetrievedEmailPrompt(email), flow.EmailConfirmTokens)
}

func (r *Router) investmentQuery(ctx context.Context, ses *statex.CallSession) error {
	// Re-triggered while already waiting on consent; asking again would
	// reset the question mid-answer.
	if ses.Booking == statex.StateAwaitingInvestment {
		r.log.Info().Msg("investment query ignored: consent already pending")
		return nil
	}
	res := flow.Transition(flow.Input{
		State: ses.Booking,
		Turn:  flow.Turn{Role: flow.RoleTool, Tool: contract.ToolInvestmentQuery},
		Now:   time.Now(),
	})
	r.apply(ctx, ses, res)
	return nil
}

type memoryArgs struct {
	Query string `json:"query"`
}

func (r *Router) memoryLookup(ctx context.Context, ses *statex.CallSession, inv contract.ToolInvocation) error {
	var args memoryArgs
	if err := json.Unmarshal([]byte(inv.Arguments), &args); err != nil || args.Query == "" {
		return fmt.Errorf("%w: %s", contract.ErrBadToolArgs, inv.Name)
	}

	memories, err := r.memory.Relevant(ctx, ses.CallerID, args.Query)
	if err != nil {
		r.log.Error().Err(err).Msg("memory lookup failed")
		memories = nil
	}

	payload, err := json.Marshal(map[string][]string{"memories": memories})
	if err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	if err := r.ai.CreateToolOutput(string(payload)); err != nil {
		return fmt.Errorf("send memory output: %w", err)
	}
	return r.ai.CreateResponse(flow.MemoryToolPrompt(memories), flow.ShortReplyTokens)
}
