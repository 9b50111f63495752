package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tidewater-labs/callbridge/bridge/contract"
	"github.com/tidewater-labs/callbridge/bridge/flow"
	statex "github.com/tidewater-labs/callbridge/bridge/state"
)

type aiCall struct {
	kind string
	text string
}

type fakeAI struct {
	calls []aiCall
}

func (f *fakeAI) ConfigureSession() error { return nil }
func (f *fakeAI) AppendAudio(payload string) error {
	f.calls = append(f.calls, aiCall{"audio", payload})
	return nil
}
func (f *fakeAI) CreateResponse(instructions string, maxOutputTokens int) error {
	f.calls = append(f.calls, aiCall{"response", instructions})
	return nil
}
func (f *fakeAI) CreateAssistantItem(text string) error {
	f.calls = append(f.calls, aiCall{"item", text})
	return nil
}
func (f *fakeAI) CreateToolOutput(output string) error {
	f.calls = append(f.calls, aiCall{"tool_output", output})
	return nil
}
func (f *fakeAI) CancelResponse() error {
	f.calls = append(f.calls, aiCall{"cancel", ""})
	return nil
}

func (f *fakeAI) kinds() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.kind)
	}
	return out
}

type fakeKnowledge struct {
	answer string
	err    error
}

func (f *fakeKnowledge) Ask(ctx context.Context, question string) (string, error) {
	return f.answer, f.err
}

type fakeMemory struct {
	relevant []string
	stored   []string
}

func (f *fakeMemory) Relevant(ctx context.Context, callerID, query string) ([]string, error) {
	return f.relevant, nil
}

func (f *fakeMemory) Store(ctx context.Context, callerID, conversationID, contextText string) error {
	f.stored = append(f.stored, contextText)
	return nil
}

type fakeStore struct {
	email string
}

func (f *fakeStore) CreateOrGetCaller(ctx context.Context, phoneNumber string) (contractx.Caller, error) {
	return contractx.Caller{PhoneNumber: phoneNumber}, nil
}
func (f *fakeStore) UpdateCallerName(ctx context.Context, phoneNumber, name string) error { return nil }
func (f *fakeStore) UpdateCallerEmail(ctx context.Context, phoneNumber, email string) error {
	return nil
}
func (f *fakeStore) CallerEmail(ctx context.Context, phoneNumber string) (string, error) {
	return f.email, nil
}
func (f *fakeStore) CreateConversation(ctx context.Context, phoneNumber, callSid string) (contractx.Conversation, error) {
	return contractx.Conversation{ID: callSid, CallerID: phoneNumber}, nil
}
func (f *fakeStore) UpdateLastExchange(ctx context.Context, conversationID, question, answer string) error {
	return nil
}
func (f *fakeStore) UpdateBookingState(ctx context.Context, conversationID, state string) error {
	return nil
}
func (f *fakeStore) LastConversation(ctx context.Context, phoneNumber string) (*contractx.Conversation, error) {
	return nil, nil
}
func (f *fakeStore) FinalizeConversation(ctx context.Context, conversationID, transcript, summary string) error {
	return nil
}
func (f *fakeStore) CreateBooking(ctx context.Context, b contractx.Booking) error { return nil }

func newTestRouter(ai *fakeAI, knowledge *fakeKnowledge, store *fakeStore) (*Router, *int, *[]flow.Result) {
	booked := 0
	var applied []flow.Result
	r := NewRouter(
		ai,
		knowledge,
		&fakeMemory{relevant: []string{"company: Acme"}},
		store,
		func(ctx context.Context, ses *statex.CallSession) { booked++ },
		func(ctx context.Context, ses *statex.CallSession, res flow.Result) {
			applied = append(applied, res)
			ses.Booking = res.State
		},
		zerolog.Nop(),
	)
	return r, &booked, &applied
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(&fakeAI{}, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())
	err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{Name: "mystery_tool"})
	if !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKnowledgeLookupHit(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, _, _ := newTestRouter(ai, &fakeKnowledge{answer: "We support LangGraph and CrewAI."}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	args, _ := json.Marshal(map[string]string{"question": "which frameworks?"})
	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolKnowledgeBase,
		Arguments: string(args),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := ai.kinds()
	want := []string{"item", "tool_output", "response"}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected ai calls: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected ai calls: %v", kinds)
		}
	}
	if !ses.SuppressNextTranscriptAppend {
		t.Fatal("expected the spoken summary to be suppressed")
	}
	if !strings.Contains(ai.calls[2].text, "LangGraph") {
		t.Fatalf("summary prompt missing the answer: %s", ai.calls[2].text)
	}
	// Only the checking notice lands on the transcript; the raw answer is
	// a tool intermediate, not something the caller heard.
	if len(ses.Transcript) != 1 {
		t.Fatalf("unexpected transcript length: %d", len(ses.Transcript))
	}
	if ses.Transcript[0].Text != flow.PromptKnowledgeChecking {
		t.Fatalf("unexpected transcript entry: %s", ses.Transcript[0].Text)
	}
}

func TestKnowledgeLookupMiss(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, _, _ := newTestRouter(ai, &fakeKnowledge{answer: ""}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	args, _ := json.Marshal(map[string]string{"question": "what is the meaning of life?"})
	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolKnowledgeBase,
		Arguments: string(args),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ses.SuppressNextTranscriptAppend {
		t.Fatal("a miss must not suppress the next transcript append")
	}
	last := ai.calls[len(ai.calls)-1]
	if last.kind != "item" || last.text != flow.PromptKnowledgeMiss {
		t.Fatalf("unexpected final ai call: %+v", last)
	}
}

func TestKnowledgeLookupBadArgs(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(&fakeAI{}, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())
	err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolKnowledgeBase,
		Arguments: `{"question":""}`,
	})
	if !errors.Is(err, contractx.ErrBadToolArgs) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScheduleSession(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, booked, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	args, _ := json.Marshal(map[string]string{
		"preferred_time": "2025-03-12T15:00:00Z",
		"email":          "john@example.com",
	})
	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolScheduleSession,
		Arguments: string(args),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *booked != 1 {
		t.Fatalf("expected one booking, got %d", *booked)
	}
	if ses.PendingTime == nil || ses.PendingTime.Hour() != 15 {
		t.Fatalf("unexpected pending time: %v", ses.PendingTime)
	}
	if ses.PendingEmail != "john@example.com" {
		t.Fatalf("unexpected pending email: %s", ses.PendingEmail)
	}
}

func TestScheduleSessionBadTime(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, booked, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolScheduleSession,
		Arguments: `{"preferred_time":"sometime tomorrow","email":"john@example.com"}`,
	})
	if !errors.Is(err, contractx.ErrBadToolArgs) {
		t.Fatalf("unexpected error: %v", err)
	}
	if *booked != 0 {
		t.Fatal("a bad time must not book")
	}
	// The caller still hears an apology instead of dead air.
	if len(ai.calls) != 1 || ai.calls[0].kind != "response" || ai.calls[0].text != flow.PromptBookingFailed {
		t.Fatalf("unexpected ai calls: %+v", ai.calls)
	}
}

func TestScheduleSessionBadEmail(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, booked, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolScheduleSession,
		Arguments: `{"preferred_time":"2025-03-12T15:00:00Z","email":"not an address"}`,
	})
	if !errors.Is(err, contractx.ErrBadToolArgs) {
		t.Fatalf("unexpected error: %v", err)
	}
	if *booked != 0 {
		t.Fatal("a bad email must not book")
	}
	if len(ai.calls) != 1 || ai.calls[0].text != flow.PromptBookingFailed {
		t.Fatalf("unexpected ai calls: %+v", ai.calls)
	}
}

func TestRetrieveEmailFound(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, _, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{email: "jane@corp.io"})
	ses := statex.NewCallSession(time.Now())
	ses.CallerID = "+15551234567"

	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name: contractx.ToolRetrieveEmail,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.calls[0].kind != "tool_output" || ai.calls[0].text != "jane@corp.io" {
		t.Fatalf("unexpected tool output: %+v", ai.calls[0])
	}
	if !strings.Contains(ai.calls[1].text, "j a n e") {
		t.Fatalf("expected the address spelled out: %s", ai.calls[1].text)
	}
}

func TestRetrieveEmailMissing(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, _, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name: contractx.ToolRetrieveEmail,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.calls[1].text != flow.PromptAskEmailAfterMiss {
		t.Fatalf("unexpected prompt: %s", ai.calls[1].text)
	}
}

func TestInvestmentQueryOpensConsent(t *testing.T) {
	t.Parallel()

	r, _, applied := newTestRouter(&fakeAI{}, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())

	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name: contractx.ToolInvestmentQuery,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*applied) != 1 {
		t.Fatalf("expected one applied transition, got %d", len(*applied))
	}
	if ses.Booking != statex.StateAwaitingInvestment {
		t.Fatalf("unexpected state: %s", ses.Booking)
	}
}

func TestInvestmentQueryAlreadyPending(t *testing.T) {
	t.Parallel()

	r, _, applied := newTestRouter(&fakeAI{}, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())
	ses.Booking = statex.StateAwaitingInvestment

	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name: contractx.ToolInvestmentQuery,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*applied) != 0 {
		t.Fatal("a re-triggered investment query must be a no-op")
	}
}

func TestMemoryLookup(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}
	r, _, _ := newTestRouter(ai, &fakeKnowledge{}, &fakeStore{})
	ses := statex.NewCallSession(time.Now())
	ses.CallerID = "+15551234567"

	if err := r.Dispatch(context.Background(), ses, contractx.ToolInvocation{
		Name:      contractx.ToolLongTermMemory,
		Arguments: `{"query":"what company do I work for?"}`,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload map[string][]string
	if err := json.Unmarshal([]byte(ai.calls[0].text), &payload); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if len(payload["memories"]) != 1 || payload["memories"][0] != "company: Acme" {
		t.Fatalf("unexpected memories payload: %v", payload)
	}
	if !strings.Contains(ai.calls[1].text, "company: Acme") {
		t.Fatalf("response prompt missing memories: %s", ai.calls[1].text)
	}
}
