package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/reqforge/reqforge/src/aisdk"
	"github.com/reqforge/reqforge/src/storage"
)

// SendOptions tunes how a turn is started.
type SendOptions struct {
	// IsRetry resubmits the already-persisted preceding user message
	// instead of appending a new one.
	IsRetry bool
}

// SendMessage runs one chat turn: persist the user message, stream the
// assistant reply into a placeholder message, then land in exactly one of
// finalized, aborted, or errored. The returned message is nil when the turn
// was aborted or errored before any content arrived.
func (e *Engine) SendMessage(ctx context.Context, conversationID, text string, opts SendOptions) (*storage.Message, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	if !opts.IsRetry {
		userMsg := &storage.Message{
			ConversationID: conversationID,
			Role:           aisdk.RoleUser,
			Content:        text,
		}
		if err := e.store.CreateMessage(ctx, userMsg); err != nil {
			return nil, fmt.Errorf("failed to persist user message: %w", err)
		}
		e.events.PublishMessage(EventUserMessage, conversationID, userMsg.ID, text, "")
	}

	placeholder := &storage.Message{
		ConversationID: conversationID,
		Role:           aisdk.RoleAssistant,
		IsStreaming:    true,
	}
	if err := e.store.CreateMessage(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("failed to create assistant message: %w", err)
	}

	job := e.startJob(ctx, conversationID, placeholder.ID)
	defer e.finishJob(job)

	e.events.PublishMessage(EventStreamStart, conversationID, placeholder.ID, "", "")

	// The turn's end state must persist even when the request context is
	// torn down mid-stream.
	persistCtx := context.WithoutCancel(ctx)

	req, err := e.buildRequest(ctx, conversationID, true)
	if err != nil {
		e.deleteMessageQuiet(persistCtx, placeholder.ID)
		return nil, err
	}

	stream, err := e.provider.GenerateStream(job.Context(), req)
	if err != nil {
		e.deleteMessageQuiet(persistCtx, placeholder.ID)
		e.events.PublishMessage(EventMessageErrored, conversationID, placeholder.ID, "", err.Error())
		return nil, err
	}

	runErr := e.runStream(ctx, job, placeholder, stream)
	e.events.PublishMessage(EventStreamEnd, conversationID, placeholder.ID, "", "")

	switch {
	case job.Cancelled() || errors.Is(runErr, ErrGenerationCancelled):
		return e.abortTurn(persistCtx, job, placeholder)
	case runErr != nil:
		return e.errorTurn(persistCtx, job, placeholder, runErr)
	default:
		return e.finalizeTurn(persistCtx, job, placeholder)
	}
}

// StopGeneration cancels the in-flight generation for a conversation.
func (e *Engine) StopGeneration(conversationID string) error {
	job := e.activeJob(conversationID)
	if job == nil {
		return ErrNoActiveGeneration
	}
	job.Cancel()
	return nil
}

// RetryMessage deletes a failed or unsatisfying assistant message and runs
// a fresh turn from the preceding user message's original text.
func (e *Engine) RetryMessage(ctx context.Context, messageID string) (*storage.Message, error) {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Role != aisdk.RoleAssistant {
		return nil, fmt.Errorf("only assistant messages can be retried")
	}

	userText, err := e.precedingUserText(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := e.store.DeleteMessage(ctx, messageID); err != nil {
		return nil, fmt.Errorf("failed to remove message being retried: %w", err)
	}
	return e.SendMessage(ctx, msg.ConversationID, userText, SendOptions{IsRetry: true})
}

// EditDraft returns the text of the user message preceding an assistant
// message, so the client can prefill the input for an edit-and-resend.
// Nothing is deleted until the edited text is actually sent.
func (e *Engine) EditDraft(ctx context.Context, messageID string) (string, error) {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", ErrMessageNotFound
	}
	return e.precedingUserText(ctx, msg)
}

func (e *Engine) precedingUserText(ctx context.Context, msg *storage.Message) (string, error) {
	history, err := e.store.ListMessages(ctx, msg.ConversationID)
	if err != nil {
		return "", err
	}
	at := -1
	for i := range history {
		if history[i].ID == msg.ID {
			at = i
			break
		}
	}
	for i := at - 1; i >= 0; i-- {
		if history[i].Role == aisdk.RoleUser {
			return history[i].Content, nil
		}
	}
	return "", fmt.Errorf("no user message precedes message %s", msg.ID)
}

// GenerateDocument runs a messageless generation targeting a single
// document type: derived-document commands queue these as follow-ups, and
// template changes use them to regenerate under the new template.
func (e *Engine) GenerateDocument(ctx context.Context, conversationID string, genReq GenerationRequest) (*storage.DocumentVersion, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	template, err := e.templates.Resolve(genReq.DocType, genReq.TemplateID)
	if err != nil {
		return nil, err
	}

	job := e.startJob(ctx, conversationID, "")
	defer e.finishJob(job)
	job.SetTemplate(genReq.DocType, template.ID)

	req, err := e.buildRequest(ctx, conversationID, false)
	if err != nil {
		return nil, err
	}
	req.TargetDoc = string(genReq.DocType)
	req.Template = template.Prompt
	if genReq.Instructions != "" {
		req.Messages = append(req.Messages, &aisdk.Message{
			Role:    aisdk.RoleUser,
			Content: genReq.Instructions,
		})
	}

	stream, err := e.provider.GenerateStream(job.Context(), req)
	if err != nil {
		return nil, err
	}

	runErr := e.runStream(ctx, job, nil, stream)
	persistCtx := context.WithoutCancel(ctx)

	if job.Cancelled() || errors.Is(runErr, ErrGenerationCancelled) {
		job.BeginFinalize()
		job.TakeBuffers()
		return nil, nil
	}
	if runErr != nil {
		job.BeginFinalize()
		job.TakeBuffers()
		return nil, runErr
	}

	committed := e.finalizeJob(persistCtx, job)
	for i := range committed {
		if committed[i].DocType == string(genReq.DocType) {
			return committed[i], nil
		}
	}
	return nil, fmt.Errorf("generation produced no %s content", genReq.DocType)
}

// ChangeTemplate switches a document to a different prompt template. The
// current content is archived as a version first so nothing is lost, then
// the document is regenerated under the new template.
func (e *Engine) ChangeTemplate(ctx context.Context, conversationID string, docType DocType, templateID string) (*storage.DocumentVersion, error) {
	template, err := e.templates.Resolve(docType, templateID)
	if err != nil {
		return nil, err
	}

	head, err := e.versions.Head(ctx, conversationID, docType)
	if err != nil {
		return nil, err
	}
	if head != nil && head.Content != "" {
		if _, err := e.versions.Commit(ctx, conversationID, docType, head.Content, ReasonArchived, head.TemplateID); err != nil && !errors.Is(err, ErrHeadUpdateFailed) {
			return nil, fmt.Errorf("failed to archive current %s content: %w", docType, err)
		}
	}

	return e.GenerateDocument(ctx, conversationID, GenerationRequest{
		DocType:    docType,
		TemplateID: template.ID,
	})
}

func (e *Engine) abortTurn(ctx context.Context, job *GenerationJob, msg *storage.Message) (*storage.Message, error) {
	job.BeginFinalize()
	job.TakeBuffers()

	if msg.Content == "" {
		e.deleteMessageQuiet(ctx, msg.ID)
		e.events.PublishMessage(EventMessageAborted, job.ConversationID, msg.ID, "", "")
		return nil, nil
	}

	msg.IsStreaming = false
	if err := e.store.UpdateMessage(ctx, msg); err != nil {
		e.logger.Warn("failed to persist aborted message", "message_id", msg.ID, "error", err)
		e.events.PublishNotice(job.ConversationID, "Stopped reply could not be saved.")
	}
	e.events.PublishMessage(EventMessageAborted, job.ConversationID, msg.ID, msg.Content, "")
	return msg, nil
}

func (e *Engine) errorTurn(ctx context.Context, job *GenerationJob, msg *storage.Message, runErr error) (*storage.Message, error) {
	job.BeginFinalize()
	job.TakeBuffers()

	if msg.Content == "" {
		e.deleteMessageQuiet(ctx, msg.ID)
		e.events.PublishMessage(EventMessageErrored, job.ConversationID, msg.ID, "", runErr.Error())
		return nil, runErr
	}

	msg.Error = runErr.Error()
	msg.IsStreaming = false
	if err := e.store.UpdateMessage(ctx, msg); err != nil {
		e.logger.Warn("failed to persist errored message", "message_id", msg.ID, "error", err)
		e.events.PublishNotice(job.ConversationID, "Partial reply could not be saved.")
	}
	e.events.PublishMessage(EventMessageErrored, job.ConversationID, msg.ID, msg.Content, runErr.Error())
	return msg, nil
}

func (e *Engine) finalizeTurn(ctx context.Context, job *GenerationJob, msg *storage.Message) (*storage.Message, error) {
	msg.IsStreaming = false
	if err := e.store.UpdateMessage(ctx, msg); err != nil {
		e.logger.Warn("failed to persist finalized message", "message_id", msg.ID, "error", err)
		e.events.PublishNotice(job.ConversationID, "Assistant reply could not be saved.")
	}

	e.finalizeJob(ctx, job)
	e.events.PublishMessage(EventMessageFinalized, job.ConversationID, msg.ID, msg.Content, "")

	// Queued document generations run as their own jobs once the turn is
	// fully landed.
	e.finishJob(job)
	for _, followUp := range job.FollowUps() {
		if _, err := e.GenerateDocument(ctx, job.ConversationID, followUp); err != nil {
			e.logger.Warn("follow-up generation failed",
				"conversation_id", job.ConversationID,
				"doc_type", followUp.DocType,
				"error", err)
			e.events.PublishNotice(job.ConversationID,
				fmt.Sprintf("Generation of the %s document failed.", followUp.DocType))
		}
	}
	return msg, nil
}

// buildRequest assembles the provider request from the persisted history
// and the repaired document heads. Commands are offered on chat turns only;
// targeted document generations must not trigger further commands.
func (e *Engine) buildRequest(ctx context.Context, conversationID string, withCommands bool) (*aisdk.GenerateRequest, error) {
	history, err := e.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages := make([]*aisdk.Message, 0, len(history))
	for i := range history {
		m := &history[i]
		if m.IsStreaming || m.Content == "" {
			continue
		}
		messages = append(messages, &aisdk.Message{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	documents := make(map[string]string)
	for _, docType := range AllDocTypes() {
		head, err := e.versions.Head(ctx, conversationID, docType)
		if err != nil {
			return nil, err
		}
		if head != nil && head.Content != "" {
			documents[string(docType)] = head.Content
		}
	}

	req := &aisdk.GenerateRequest{
		Model:     e.model,
		Messages:  messages,
		Documents: documents,
	}
	if withCommands {
		req.Commands = e.dispatcher.Specs()
	}
	return req, nil
}

func (e *Engine) deleteMessageQuiet(ctx context.Context, messageID string) {
	if err := e.store.DeleteMessage(ctx, messageID); err != nil {
		e.logger.Warn("failed to delete empty assistant message", "message_id", messageID, "error", err)
	}
}
