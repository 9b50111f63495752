// Package store is the Postgres persistence layer: callers,
// conversations, bookings, long-term memories, and the knowledge-base
// documents, with pgvector columns for the semantic indexes.
package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	PhoneNumber string    `bun:"phone_number,pk"`
	Name        string    `bun:"name"`
	Email       string    `bun:"email"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:now()"`
}

// conversationRow's id is the external call identifier, which makes
// conversation creation naturally idempotent.
type conversationRow struct {
	bun.BaseModel `bun:"table:conversations"`

	ID           string     `bun:"id,pk"`
	CallerID     string     `bun:"caller_id"`
	Transcript   string     `bun:"transcript"`
	Summary      string     `bun:"summary"`
	LastQuestion string     `bun:"last_question"`
	LastAnswer   string     `bun:"last_answer"`
	BookingState string     `bun:"booking_state"`
	StartedAt    time.Time  `bun:"started_at,nullzero,default:now()"`
	EndedAt      *time.Time `bun:"ended_at"`
}

// bookingRow's id is the external calendar event id.
type bookingRow struct {
	bun.BaseModel `bun:"table:bookings"`

	ID             string    `bun:"id,pk"`
	CallerID       string    `bun:"caller_id"`
	ConversationID string    `bun:"conversation_id"`
	State          string    `bun:"state"`
	Time           time.Time `bun:"time"`
	Email          string    `bun:"email"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:now()"`
}

type memoryRow struct {
	bun.BaseModel `bun:"table:memories"`

	ID             int64           `bun:"id,pk,autoincrement"`
	CallerID       string          `bun:"caller_id"`
	ConversationID string          `bun:"conversation_id"`
	Context        string          `bun:"context"`
	Embedding      pgvector.Vector `bun:"embedding,type:vector(1536)"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,default:now()"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents"`

	ID        int64             `bun:"id,pk,autoincrement"`
	Context   string            `bun:"context"`
	Metadata  map[string]string `bun:"metadata,type:jsonb"`
	Embedding pgvector.Vector   `bun:"embedding,type:vector(1536)"`
}
