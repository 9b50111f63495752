package contract

import "context"

// AIPort is the outbound side of the AI stream. All sends are
// fire-and-forget from the bridge's perspective; a send on a closed stream
// surfaces as an error that the caller logs and ignores.
type AIPort interface {
	ConfigureSession() error
	AppendAudio(payload string) error
	CreateResponse(instructions string, maxOutputTokens int) error
	CreateAssistantItem(text string) error
	CreateToolOutput(output string) error
	CancelResponse() error
}

// TelephonyPort is the outbound side of the media stream.
type TelephonyPort interface {
	SendMedia(streamSid, payload string) error
	SendClear(streamSid string) error
}

// CallDirectory resolves and manipulates live calls through the telephony
// provider's REST API.
type CallDirectory interface {
	CallerNumber(ctx context.Context, callSid string) (string, error)
	RedirectToExpert(ctx context.Context, callSid string) error
}

// Calendar creates an event and returns its external id.
type Calendar interface {
	CreateEvent(ctx context.Context, req BookingRequest) (string, error)
}

// Knowledge answers a question from the document index. An empty answer
// with a nil error means nothing relevant was found.
type Knowledge interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Memory is the long-term memory store scoped to a caller.
type Memory interface {
	Relevant(ctx context.Context, callerID, query string) ([]string, error)
	Store(ctx context.Context, callerID, conversationID, contextText string) error
}

// Persistence is the relational store. Implementations retry transient
// failures internally; callers treat a returned error as final.
type Persistence interface {
	CreateOrGetCaller(ctx context.Context, phoneNumber string) (Caller, error)
	UpdateCallerName(ctx context.Context, phoneNumber, name string) error
	UpdateCallerEmail(ctx context.Context, phoneNumber, email string) error
	CallerEmail(ctx context.Context, phoneNumber string) (string, error)

	CreateConversation(ctx context.Context, phoneNumber, callSid string) (Conversation, error)
	UpdateLastExchange(ctx context.Context, conversationID, question, answer string) error
	UpdateBookingState(ctx context.Context, conversationID, state string) error
	LastConversation(ctx context.Context, phoneNumber string) (*Conversation, error)
	FinalizeConversation(ctx context.Context, conversationID, transcript, summary string) error

	CreateBooking(ctx context.Context, b Booking) error
}

// Extractor turns free text into structured facts. All methods are pure
// from the bridge's perspective: text in, fact (or empty) out.
type Extractor interface {
	Summarize(ctx context.Context, dialogue string) (string, error)
	ExtractName(ctx context.Context, summary string) (string, error)
	ExtractEmail(ctx context.Context, summary string) (string, error)
	ExtractFacts(ctx context.Context, dialogue string) (map[string]string, error)
}
