package contract

import "time"

// ToolInvocation is one decoded tool call from the AI stream. Ephemeral:
// at most one is in flight per AI turn and it is never persisted.
type ToolInvocation struct {
	Name      string
	Arguments string // JSON-encoded argument object as received
}

// Tool names exposed to the AI backend. The schema set is fixed.
const (
	ToolKnowledgeBase   = "access_knowledge_base"
	ToolScheduleSession = "schedule_training_session"
	ToolRetrieveEmail   = "retrieve_user_email"
	ToolInvestmentQuery = "handle_investment_query"
	ToolLongTermMemory  = "access_long_term_memory"
)

// Caller is the persisted record of one phone number. Name and Email are
// empty until learned.
type Caller struct {
	PhoneNumber string
	Name        string
	Email       string
	CreatedAt   time.Time
}

// Conversation is the persisted record of one call; its ID equals the
// external call identifier.
type Conversation struct {
	ID           string
	CallerID     string
	Transcript   string
	Summary      string
	LastQuestion string
	LastAnswer   string
	BookingState string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// Booking is one confirmed calendar booking, keyed by the external
// calendar event id.
type Booking struct {
	ID             string
	CallerID       string
	ConversationID string
	State          string
	Time           time.Time
	Email          string
}

// MemoryRecord is one long-term memory fact for a caller. Created only at
// finalization, never mutated.
type MemoryRecord struct {
	CallerID       string
	ConversationID string
	Context        string
	Embedding      []float32
	CreatedAt      time.Time
}

// Document is one knowledge-base entry returned by similarity search.
type Document struct {
	Context  string
	Metadata map[string]string
}

// BookingRequest is the narrow contract with the calendar service:
// create an event, return its external id.
type BookingRequest struct {
	Start time.Time
	Email string
}
