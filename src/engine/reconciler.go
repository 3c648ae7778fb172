package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/reqforge/reqforge/src/aisdk"
	"github.com/reqforge/reqforge/src/storage"
)

// runStream applies one generation stream's events in arrival order.
// Document fragments accumulate in the job buffer; text, thought, and
// acknowledgment mutations land on the in-flight message in memory and are
// persisted at finalize. msg is nil for messageless document generations, in
// which case chat-facing chunks are ignored.
//
// The cancellation token is checked before each event is applied: once the
// user stops the job, no further chunk takes effect, but I/O already in
// flight is never forcibly unwound.
func (e *Engine) runStream(ctx context.Context, job *GenerationJob, msg *storage.Message, stream aisdk.Stream) error {
	return aisdk.StreamToCallback(stream, func(event aisdk.StreamEvent) error {
		if job.Cancelled() {
			return ErrGenerationCancelled
		}

		switch ev := event.(type) {
		case *aisdk.TextChunk:
			if msg == nil {
				return nil
			}
			msg.Content += ev.Text
			e.events.PublishMessage(EventTextChunk, job.ConversationID, msg.ID, ev.Text, "")

		case *aisdk.DocumentChunk:
			docType, err := ParseDocType(ev.DocType)
			if err != nil {
				e.logger.Warn("dropping fragment for unknown document type",
					"conversation_id", job.ConversationID, "doc_type", ev.DocType)
				return nil
			}
			job.AppendFragment(docType, ev.Fragment)
			e.events.PublishDocument(EventDocProgress, job.ConversationID, docType, 0, "")

		case *aisdk.ThoughtChunk:
			if msg == nil {
				return nil
			}
			// Each thought replaces the previous reasoning trace.
			msg.Thought = ev.Thought
			e.events.PublishMessage(EventThought, job.ConversationID, msg.ID, ev.Thought, "")

		case *aisdk.FunctionCallChunk:
			e.handleFunctionCall(ctx, job, msg, ev)

		case *aisdk.UsageChunk:
			e.ledger.Commit(job.ConversationID, ev.Tokens)

		case *aisdk.ErrorChunk:
			return &ProviderError{Message: ev.Message, Code: ev.Code}
		}
		return nil
	})
}

// handleFunctionCall dispatches a mid-stream command. A validation failure
// is recoverable: it attaches to the message and the stream continues.
func (e *Engine) handleFunctionCall(ctx context.Context, job *GenerationJob, msg *storage.Message, call *aisdk.FunctionCallChunk) {
	result, err := e.dispatcher.Dispatch(ctx, job, call)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && msg != nil {
			msg.Error = cmdErr.Error()
			e.events.PublishMessage(EventMessageErrored, job.ConversationID, msg.ID, "", cmdErr.Error())
			return
		}
		e.logger.Warn("function call failed",
			"conversation_id", job.ConversationID, "command", call.Name, "error", err)
		return
	}
	if result == nil {
		return // ignored extra call
	}

	if msg != nil && result.Ack != "" {
		if msg.Content != "" {
			msg.Content += "\n"
		}
		msg.Content += result.Ack
		msg.Ack = result.Ack
		e.events.PublishMessage(EventFunctionAck, job.ConversationID, msg.ID, result.Ack, "")
	}
	if result.Notice != "" {
		e.events.PublishNotice(job.ConversationID, result.Notice)
	}
	if result.FollowUp != nil {
		job.QueueFollowUp(*result.FollowUp)
	}
}

// finalizeJob is the barrier converting the job's buffers into committed
// versions. It runs once per job; chunks arriving after it begins are
// discarded by the buffer, and a cancelled job commits nothing. Committing a
// new analysis version triggers staleness propagation with the pre-commit
// content as the old side of the diff.
func (e *Engine) finalizeJob(ctx context.Context, job *GenerationJob) []*storage.DocumentVersion {
	if !job.BeginFinalize() {
		return nil
	}
	if job.Cancelled() {
		// A cancelled generation must never produce a persisted version.
		job.TakeBuffers()
		return nil
	}

	buffered := job.TakeBuffers()
	docTypes := make([]DocType, 0, len(buffered))
	for docType := range buffered {
		docTypes = append(docTypes, docType)
	}
	sort.Slice(docTypes, func(i, j int) bool { return docTypes[i] < docTypes[j] })

	var committed []*storage.DocumentVersion
	for _, docType := range docTypes {
		content := buffered[docType]
		if content == "" {
			continue
		}

		var oldContent string
		if docType == DocAnalysis {
			if head, err := e.versions.Head(ctx, job.ConversationID, docType); err == nil && head != nil {
				oldContent = head.Content
			}
		}

		version, err := e.versions.Commit(ctx, job.ConversationID, docType, content, ReasonGenerated, job.templateFor(docType))
		if err != nil && !errors.Is(err, ErrHeadUpdateFailed) {
			// Optimistic state is kept; the failure surfaces as a notice.
			e.logger.Error("failed to commit generated document",
				"conversation_id", job.ConversationID, "doc_type", docType, "error", err)
			e.events.PublishNotice(job.ConversationID, "Failed to save generated "+string(docType)+" document.")
			continue
		}
		if err != nil {
			e.events.PublishNotice(job.ConversationID, "Saved "+string(docType)+" document, but its head pointer lagged; it will be repaired on next read.")
		}

		committed = append(committed, version)
		e.events.PublishDocument(EventDocumentCommitted, job.ConversationID, docType, version.Number, version.Reason)

		if docType == DocAnalysis {
			e.propagateStaleness(ctx, job.ConversationID, oldContent, content)
		}
	}

	return committed
}
