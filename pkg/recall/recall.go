// Package recall implements semantic retrieval: the document knowledge
// base and the per-caller long-term memory, both backed by embedding
// similarity search.
package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidewater-labs/callbridge/bridge/contract"
)

// Embedder turns text into a vector. Satisfied by openaix.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentIndex is similarity search over the knowledge base.
type DocumentIndex interface {
	SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]contract.Document, error)
}

// MemoryIndex is similarity search plus append over a caller's memories.
type MemoryIndex interface {
	SearchMemories(ctx context.Context, callerID string, embedding []float32, limit int) ([]contract.MemoryRecord, error)
	InsertMemory(ctx context.Context, rec contract.MemoryRecord) error
}

const (
	documentLimit = 5
	memoryLimit   = 3
)

// Knowledge answers questions from the document index.
type Knowledge struct {
	embedder Embedder
	index    DocumentIndex
}

var _ contract.Knowledge = (*Knowledge)(nil)

func NewKnowledge(embedder Embedder, index DocumentIndex) *Knowledge {
	return &Knowledge{embedder: embedder, index: index}
}

// Ask embeds the question, retrieves the nearest documents, and joins them
// into one answer blob. Empty answer with nil error means no match.
func (k *Knowledge) Ask(ctx context.Context, question string) (string, error) {
	vec, err := k.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	docs, err := k.index.SearchDocuments(ctx, vec, documentLimit)
	if err != nil {
		return "", fmt.Errorf("search documents: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, renderDocument(d))
	}
	return strings.Join(lines, "\n"), nil
}

func renderDocument(d contract.Document) string {
	if len(d.Metadata) == 0 {
		return d.Context
	}
	pairs := make([]string, 0, len(d.Metadata))
	for k, v := range d.Metadata {
		pairs = append(pairs, fmt.Sprintf("%s: %s", k, v))
	}
	return fmt.Sprintf("%s (%s)", d.Context, strings.Join(pairs, ", "))
}

// Memory is the per-caller long-term memory store.
type Memory struct {
	embedder Embedder
	index    MemoryIndex
}

var _ contract.Memory = (*Memory)(nil)

func NewMemory(embedder Embedder, index MemoryIndex) *Memory {
	return &Memory{embedder: embedder, index: index}
}

// Relevant returns the caller's memories closest to the query, as plain
// context strings.
func (m *Memory) Relevant(ctx context.Context, callerID, query string) ([]string, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	recs, err := m.index.SearchMemories(ctx, callerID, vec, memoryLimit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Context)
	}
	return out, nil
}

// Store embeds and appends one memory fact for the caller.
func (m *Memory) Store(ctx context.Context, callerID, conversationID, contextText string) error {
	vec, err := m.embedder.Embed(ctx, contextText)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	rec := contract.MemoryRecord{
		CallerID:       callerID,
		ConversationID: conversationID,
		Context:        contextText,
		Embedding:      vec,
	}
	if err := m.index.InsertMemory(ctx, rec); err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}
