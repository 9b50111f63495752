// Package finalize runs the post-call pipeline: summarize the transcript,
// extract the caller's name, email, and long-term facts, and persist all
// of it. Each step is best effort; a failed step is logged and the rest of
// the pipeline still runs.
package finalize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tidewater-labs/callbridge/bridge/contract"
	statex "github.com/tidewater-labs/callbridge/bridge/state"
)

type Finalizer struct {
	extractor contract.Extractor
	store     contract.Persistence
	memory    contract.Memory
	log       zerolog.Logger
}

func New(extractor contract.Extractor, store contract.Persistence, memory contract.Memory, log zerolog.Logger) *Finalizer {
	return &Finalizer{extractor: extractor, store: store, memory: memory, log: log}
}

// Run finalizes one finished call. A session that never bound a
// conversation (the start frame never arrived) has nothing to finalize.
func (f *Finalizer) Run(ctx context.Context, ses *statex.CallSession) {
	if ses.ConversationID == "" {
		f.log.Debug().Msg("no conversation bound, skipping finalization")
		return
	}

	dialogue := ses.Dialogue()

	summary, err := f.extractor.Summarize(ctx, dialogue)
	if err != nil {
		f.log.Error().Err(err).Msg("summarize failed")
		summary = ""
	}

	if summary != "" {
		f.extractIdentity(ctx, ses, summary)
	}
	f.extractMemories(ctx, ses, dialogue)

	if err := f.store.FinalizeConversation(ctx, ses.ConversationID, dialogue, summary); err != nil {
		f.log.Error().Err(err).Msg("finalize conversation failed")
	}
}

func (f *Finalizer) extractIdentity(ctx context.Context, ses *statex.CallSession, summary string) {
	name, err := f.extractor.ExtractName(ctx, summary)
	if err != nil {
		f.log.Error().Err(err).Msg("name extraction failed")
	} else if name != "" {
		if err := f.store.UpdateCallerName(ctx, ses.CallerID, name); err != nil {
			f.log.Error().Err(err).Msg("store caller name failed")
		}
	}

	email, err := f.extractor.ExtractEmail(ctx, summary)
	if err != nil {
		f.log.Error().Err(err).Msg("email extraction failed")
	} else if email != "" {
		if err := f.store.UpdateCallerEmail(ctx, ses.CallerID, email); err != nil {
			f.log.Error().Err(err).Msg("store caller email failed")
		}
	}
}

func (f *Finalizer) extractMemories(ctx context.Context, ses *statex.CallSession, dialogue string) {
	facts, err := f.extractor.ExtractFacts(ctx, dialogue)
	if err != nil {
		f.log.Error().Err(err).Msg("fact extraction failed")
		return
	}
	for field, value := range facts {
		entry := fmt.Sprintf("%s: %s", field, value)
		if err := f.memory.Store(ctx, ses.CallerID, ses.ConversationID, entry); err != nil {
			f.log.Error().Err(err).Str("fact", field).Msg("store memory failed")
		}
	}
}
