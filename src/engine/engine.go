package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reqforge/reqforge/src/aisdk"
	"github.com/reqforge/reqforge/src/storage"
)

// Config holds the dependencies for creating an Engine.
type Config struct {
	Store     Store
	Provider  aisdk.Provider
	Oracle    aisdk.ImpactOracle
	Templates []PromptTemplate
	Model     string

	// LedgerFlushInterval debounces token persistence; zero uses the default.
	LedgerFlushInterval time.Duration

	Logger *slog.Logger
}

// Engine hosts the synchronization engine state: the version store, the
// token ledger, the dispatcher, the event broker, and the single in-flight
// generation job per conversation.
type Engine struct {
	store      Store
	provider   aisdk.Provider
	oracle     aisdk.ImpactOracle
	versions   *VersionStore
	ledger     *TokenLedger
	dispatcher *Dispatcher
	events     *EventBroker
	templates  *TemplateRegistry
	logger     *slog.Logger
	model      string

	mu   sync.Mutex
	jobs map[string]*GenerationJob
}

// New creates an engine
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	versions := NewVersionStore(cfg.Store, logger)

	return &Engine{
		store:      cfg.Store,
		provider:   cfg.Provider,
		oracle:     cfg.Oracle,
		versions:   versions,
		ledger:     NewTokenLedger(cfg.Store, cfg.LedgerFlushInterval, logger),
		dispatcher: NewDispatcher(versions, logger),
		events:     NewEventBroker(),
		templates:  NewTemplateRegistry(cfg.Templates),
		logger:     logger,
		model:      cfg.Model,
		jobs:       make(map[string]*GenerationJob),
	}
}

// Events returns the broker clients subscribe to for streaming updates.
func (e *Engine) Events() *EventBroker {
	return e.events
}

// Ledger returns the token ledger.
func (e *Engine) Ledger() *TokenLedger {
	return e.ledger
}

// Close drains pending state at teardown.
func (e *Engine) Close(ctx context.Context) error {
	return e.ledger.Drain(ctx)
}

// startJob registers a new generation job for a conversation, cancelling any
// existing one first. There is never more than one job, and so never more
// than one buffer per (conversation, document type), alive at once.
func (e *Engine) startJob(parent context.Context, conversationID, messageID string) *GenerationJob {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.jobs[conversationID]; prev != nil {
		prev.Cancel()
	}
	job := newGenerationJob(parent, conversationID, messageID)
	e.jobs[conversationID] = job
	return job
}

func (e *Engine) finishJob(job *GenerationJob) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.jobs[job.ConversationID] == job {
		delete(e.jobs, job.ConversationID)
	}
}

func (e *Engine) activeJob(conversationID string) *GenerationJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobs[conversationID]
}

// StartConversation creates a new conversation. If this very first write
// fails the whole action fails and no partial conversation exists.
func (e *Engine) StartConversation(ctx context.Context, title string) (*storage.Conversation, error) {
	conv := &storage.Conversation{Title: title}
	if err := e.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (e *Engine) GetConversation(ctx context.Context, conversationID string) (*storage.Conversation, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations lists all conversations, most recently active first.
func (e *Engine) ListConversations(ctx context.Context) ([]storage.Conversation, error) {
	return e.store.ListConversations(ctx)
}

// DeleteConversation removes a conversation and everything hanging off it,
// cancelling any in-flight generation first.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	if job := e.activeJob(conversationID); job != nil {
		job.Cancel()
	}
	return e.store.DeleteConversation(ctx, conversationID)
}

// Messages returns a conversation's messages in chronological order.
func (e *Engine) Messages(ctx context.Context, conversationID string) ([]storage.Message, error) {
	return e.store.ListMessages(ctx, conversationID)
}

// SetMessageFeedback records user feedback on a message.
func (e *Engine) SetMessageFeedback(ctx context.Context, messageID string, rating *int, comment string) error {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	return e.store.SetMessageFeedback(ctx, messageID, rating, comment)
}

// Documents returns the repaired document heads for a conversation.
func (e *Engine) Documents(ctx context.Context, conversationID string) ([]storage.Document, error) {
	var docs []storage.Document
	for _, docType := range AllDocTypes() {
		head, err := e.versions.Head(ctx, conversationID, docType)
		if err != nil {
			return nil, err
		}
		if head != nil {
			docs = append(docs, *head)
		}
	}
	return docs, nil
}

// Document returns one repaired document head, or ErrVersionNotFound when
// the type has never been committed for the conversation.
func (e *Engine) Document(ctx context.Context, conversationID string, docType DocType) (*storage.Document, error) {
	head, err := e.versions.Head(ctx, conversationID, docType)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, fmt.Errorf("%w: no %s document", ErrVersionNotFound, docType)
	}
	return head, nil
}

// DocumentVersions returns the full version history for a document type,
// oldest first.
func (e *Engine) DocumentVersions(ctx context.Context, conversationID string, docType DocType) ([]storage.DocumentVersion, error) {
	return e.store.ListVersions(ctx, conversationID, string(docType))
}

// RestoreVersion commits a new version copying an old one's content.
func (e *Engine) RestoreVersion(ctx context.Context, conversationID string, docType DocType, number int) (*storage.DocumentVersion, error) {
	version, err := e.versions.Restore(ctx, conversationID, docType, number)
	if err != nil && !errors.Is(err, ErrHeadUpdateFailed) {
		return nil, err
	}
	if err != nil {
		e.events.PublishNotice(conversationID, "Version restored, but its document head could not be updated; it will be repaired on next read.")
	}
	e.events.PublishDocument(EventDocumentCommitted, conversationID, docType, version.Number, version.Reason)
	return version, nil
}

// Profile returns the singleton user profile with lifetime token totals.
func (e *Engine) Profile(ctx context.Context) (*storage.Profile, error) {
	return e.store.GetProfile(ctx)
}

// RenameConversation updates a conversation's title.
func (e *Engine) RenameConversation(ctx context.Context, conversationID, title string) error {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	return e.store.UpdateConversationTitle(ctx, conversationID, title)
}

// TemplatesFor lists the prompt templates registered for a document type.
func (e *Engine) TemplatesFor(docType DocType) []PromptTemplate {
	return e.templates.ForType(docType)
}
