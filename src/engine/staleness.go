package engine

import (
	"context"
)

// propagateStaleness runs after finalize commits a new analysis version. It
// asks the impact oracle which derived document types the change affects and
// flips their staleness flag. The call is best-effort: on oracle failure the
// change is logged and skipped, since staleness under-detection is preferred
// over blocking the user.
//
// A true verdict sets the flag; a false verdict leaves an existing flag
// untouched. Staleness is cleared only by a new committed version of that
// type or explicit user dismissal.
func (e *Engine) propagateStaleness(ctx context.Context, conversationID, oldContent, newContent string) {
	verdict, err := e.oracle.AssessImpact(ctx, oldContent, newContent)
	if err != nil {
		e.logger.Warn("impact oracle failed; staleness not updated",
			"conversation_id", conversationID, "error", err)
		return
	}

	flagged := map[DocType]bool{
		DocTest:         verdict.Test,
		DocTraceability: verdict.Traceability,
		DocDiagram:      verdict.Diagram,
	}

	for _, docType := range DerivedFromAnalysis {
		if !flagged[docType] {
			continue
		}
		if err := e.store.SetDocumentStale(ctx, conversationID, string(docType), true); err != nil {
			e.logger.Warn("failed to persist staleness flag",
				"conversation_id", conversationID, "doc_type", docType, "error", err)
			continue
		}
		e.events.PublishDocument(EventDocumentStale, conversationID, docType, 0, "analysis changed")
	}
}

// DismissStaleness clears a document's staleness flag on explicit user
// request.
func (e *Engine) DismissStaleness(ctx context.Context, conversationID string, docType DocType) error {
	return e.store.SetDocumentStale(ctx, conversationID, string(docType), false)
}
