package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/tidewater-labs/callbridge/bridge/contract"
	"github.com/tidewater-labs/callbridge/pkg/recall"
	"github.com/tidewater-labs/callbridge/pkg/retryx"
)

type Config struct {
	DSN string `envconfig:"DSN" required:"true"`
}

// Client implements the persistence contract plus the semantic indexes.
// Every operation goes through the retry gateway; a returned error means
// the attempts were exhausted.
type Client struct {
	db     *bun.DB
	policy retryx.Policy
}

var (
	_ contract.Persistence = (*Client)(nil)
	_ recall.DocumentIndex = (*Client)(nil)
	_ recall.MemoryIndex   = (*Client)(nil)
)

func NewClient(cfg Config, policy retryx.Policy) *Client {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Client{db: db, policy: policy}
}

func (c *Client) Close() error {
	return c.db.Close()
}

// CreateOrGetCaller inserts the caller if unseen and returns the stored
// record either way.
func (c *Client) CreateOrGetCaller(ctx context.Context, phoneNumber string) (contract.Caller, error) {
	return retryx.DoValue(ctx, c.policy, "create_or_get_caller", func(ctx context.Context) (contract.Caller, error) {
		row := &userRow{PhoneNumber: phoneNumber}
		if _, err := c.db.NewInsert().
			Model(row).
			On("CONFLICT (phone_number) DO NOTHING").
			Exec(ctx); err != nil {
			return contract.Caller{}, fmt.Errorf("insert caller: %w", err)
		}

		var stored userRow
		if err := c.db.NewSelect().
			Model(&stored).
			Where("phone_number = ?", phoneNumber).
			Scan(ctx); err != nil {
			return contract.Caller{}, fmt.Errorf("select caller: %w", err)
		}
		return contract.Caller{
			PhoneNumber: stored.PhoneNumber,
			Name:        stored.Name,
			Email:       stored.Email,
			CreatedAt:   stored.CreatedAt,
		}, nil
	})
}

// UpdateCallerName sets the name only when none is stored yet; a learned
// name is never overwritten by a later extraction.
func (c *Client) UpdateCallerName(ctx context.Context, phoneNumber, name string) error {
	return retryx.Do(ctx, c.policy, "update_caller_name", func(ctx context.Context) error {
		_, err := c.db.NewUpdate().
			Model((*userRow)(nil)).
			Set("name = ?", name).
			Where("phone_number = ?", phoneNumber).
			Where("name IS NULL OR name = ''").
			Exec(ctx)
		return err
	})
}

func (c *Client) UpdateCallerEmail(ctx context.Context, phoneNumber, email string) error {
	return retryx.Do(ctx, c.policy, "update_caller_email", func(ctx context.Context) error {
		_, err := c.db.NewUpdate().
			Model((*userRow)(nil)).
			Set("email = ?", email).
			Where("phone_number = ?", phoneNumber).
			Exec(ctx)
		return err
	})
}

// CallerEmail returns the stored email, empty when none is known.
func (c *Client) CallerEmail(ctx context.Context, phoneNumber string) (string, error) {
	return retryx.DoValue(ctx, c.policy, "caller_email", func(ctx context.Context) (string, error) {
		var stored userRow
		err := c.db.NewSelect().
			Model(&stored).
			Column("email").
			Where("phone_number = ?", phoneNumber).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return stored.Email, nil
	})
}

// CreateConversation opens the conversation row for a call. Keyed by the
// call id, so a duplicate start frame is a no-op.
func (c *Client) CreateConversation(ctx context.Context, phoneNumber, callSid string) (contract.Conversation, error) {
	return retryx.DoValue(ctx, c.policy, "create_conversation", func(ctx context.Context) (contract.Conversation, error) {
		row := &conversationRow{
			ID:           callSid,
			CallerID:     phoneNumber,
			BookingState: "idle",
			StartedAt:    time.Now().UTC(),
		}
		if _, err := c.db.NewInsert().
			Model(row).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx); err != nil {
			return contract.Conversation{}, fmt.Errorf("insert conversation: %w", err)
		}

		var stored conversationRow
		if err := c.db.NewSelect().
			Model(&stored).
			Where("id = ?", callSid).
			Scan(ctx); err != nil {
			return contract.Conversation{}, fmt.Errorf("select conversation: %w", err)
		}
		return conversationFromRow(stored), nil
	})
}

func (c *Client) UpdateLastExchange(ctx context.Context, conversationID, question, answer string) error {
	return retryx.Do(ctx, c.policy, "update_last_exchange", func(ctx context.Context) error {
		_, err := c.db.NewUpdate().
			Model((*conversationRow)(nil)).
			Set("last_question = ?", question).
			Set("last_answer = ?", answer).
			Where("id = ?", conversationID).
			Exec(ctx)
		return err
	})
}

func (c *Client) UpdateBookingState(ctx context.Context, conversationID, state string) error {
	return retryx.Do(ctx, c.policy, "update_booking_state", func(ctx context.Context) error {
		_, err := c.db.NewUpdate().
			Model((*conversationRow)(nil)).
			Set("booking_state = ?", state).
			Where("id = ?", conversationID).
			Exec(ctx)
		return err
	})
}

// LastConversation returns the caller's most recent finished conversation,
// or nil when this is their first.
func (c *Client) LastConversation(ctx context.Context, phoneNumber string) (*contract.Conversation, error) {
	return retryx.DoValue(ctx, c.policy, "last_conversation", func(ctx context.Context) (*contract.Conversation, error) {
		var stored conversationRow
		err := c.db.NewSelect().
			Model(&stored).
			Where("caller_id = ?", phoneNumber).
			Where("ended_at IS NOT NULL").
			Order("started_at DESC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		conv := conversationFromRow(stored)
		return &conv, nil
	})
}

// FinalizeConversation stores the transcript and summary and stamps the
// end time.
func (c *Client) FinalizeConversation(ctx context.Context, conversationID, transcript, summary string) error {
	return retryx.Do(ctx, c.policy, "finalize_conversation", func(ctx context.Context) error {
		now := time.Now().UTC()
		_, err := c.db.NewUpdate().
			Model((*conversationRow)(nil)).
			Set("transcript = ?", transcript).
			Set("summary = ?", summary).
			Set("ended_at = ?", now).
			Where("id = ?", conversationID).
			Exec(ctx)
		return err
	})
}

func (c *Client) CreateBooking(ctx context.Context, b contract.Booking) error {
	return retryx.Do(ctx, c.policy, "create_booking", func(ctx context.Context) error {
		row := &bookingRow{
			ID:             b.ID,
			CallerID:       b.CallerID,
			ConversationID: b.ConversationID,
			State:          b.State,
			Time:           b.Time,
			Email:          b.Email,
		}
		_, err := c.db.NewInsert().
			Model(row).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		return err
	})
}

// SearchDocuments returns the knowledge-base entries nearest the
// embedding, by cosine distance.
func (c *Client) SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]contract.Document, error) {
	return retryx.DoValue(ctx, c.policy, "search_documents", func(ctx context.Context) ([]contract.Document, error) {
		var rows []documentRow
		if err := c.db.NewSelect().
			Model(&rows).
			Column("context", "metadata").
			OrderExpr("embedding <=> ?", pgvector.NewVector(embedding)).
			Limit(limit).
			Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]contract.Document, 0, len(rows))
		for _, r := range rows {
			out = append(out, contract.Document{Context: r.Context, Metadata: r.Metadata})
		}
		return out, nil
	})
}

// SearchMemories returns the caller's memories nearest the embedding.
func (c *Client) SearchMemories(ctx context.Context, callerID string, embedding []float32, limit int) ([]contract.MemoryRecord, error) {
	return retryx.DoValue(ctx, c.policy, "search_memories", func(ctx context.Context) ([]contract.MemoryRecord, error) {
		var rows []memoryRow
		if err := c.db.NewSelect().
			Model(&rows).
			Where("caller_id = ?", callerID).
			OrderExpr("embedding <=> ?", pgvector.NewVector(embedding)).
			Limit(limit).
			Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]contract.MemoryRecord, 0, len(rows))
		for _, r := range rows {
			out = append(out, contract.MemoryRecord{
				CallerID:       r.CallerID,
				ConversationID: r.ConversationID,
				Context:        r.Context,
				Embedding:      r.Embedding.Slice(),
				CreatedAt:      r.CreatedAt,
			})
		}
		return out, nil
	})
}

func (c *Client) InsertMemory(ctx context.Context, rec contract.MemoryRecord) error {
	return retryx.Do(ctx, c.policy, "insert_memory", func(ctx context.Context) error {
		row := &memoryRow{
			CallerID:       rec.CallerID,
			ConversationID: rec.ConversationID,
			Context:        rec.Context,
			Embedding:      pgvector.NewVector(rec.Embedding),
		}
		_, err := c.db.NewInsert().Model(row).Exec(ctx)
		return err
	})
}

func conversationFromRow(r conversationRow) contract.Conversation {
	return contract.Conversation{
		ID:           r.ID,
		CallerID:     r.CallerID,
		Transcript:   r.Transcript,
		Summary:      r.Summary,
		LastQuestion: r.LastQuestion,
		LastAnswer:   r.LastAnswer,
		BookingState: r.BookingState,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
	}
}
