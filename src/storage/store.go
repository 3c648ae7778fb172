package storage

import (
	"context"
	"fmt"
)

// Store exposes the durable record operations as methods over one database
// handle. The engine consumes this through its own interface so tests can
// substitute an in-memory implementation.
type Store struct {
	db *DB
}

// NewStore wraps an open database
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateConversation(ctx context.Context, conversation *Conversation) error {
	return CreateConversation(ctx, s.db.db, conversation)
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return GetConversationByID(ctx, s.db.db, conversationID)
}

func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	return ListConversations(ctx, s.db.db)
}

func (s *Store) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	return UpdateConversationTitle(ctx, s.db.db, conversationID, title)
}

func (s *Store) AddConversationTokens(ctx context.Context, conversationID string, amount int) error {
	return AddConversationTokens(ctx, s.db.db, conversationID, amount)
}

// DeleteConversation cascades to messages, documents, and versions. The
// deletes run newest-dependency-first so a failure part way leaves no
// orphaned children once the conversation row itself is gone.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := DeleteVersionsByConversationID(ctx, s.db.db, conversationID); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if err := DeleteDocumentsByConversationID(ctx, s.db.db, conversationID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if err := DeleteMessagesByConversationID(ctx, s.db.db, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return DeleteConversation(ctx, s.db.db, conversationID)
}

func (s *Store) CreateMessage(ctx context.Context, message *Message) error {
	return CreateMessage(ctx, s.db.db, message)
}

func (s *Store) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	return GetMessageByID(ctx, s.db.db, messageID)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return GetMessagesByConversationID(ctx, s.db.db, conversationID)
}

func (s *Store) UpdateMessage(ctx context.Context, message *Message) error {
	return UpdateMessage(ctx, s.db.db, message)
}

func (s *Store) SetMessageFeedback(ctx context.Context, messageID string, rating *int, comment string) error {
	return SetMessageFeedback(ctx, s.db.db, messageID, rating, comment)
}

func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	return DeleteMessage(ctx, s.db.db, messageID)
}

func (s *Store) GetDocument(ctx context.Context, conversationID, docType string) (*Document, error) {
	return GetDocument(ctx, s.db.db, conversationID, docType)
}

func (s *Store) ListDocuments(ctx context.Context, conversationID string) ([]Document, error) {
	return GetDocumentsByConversationID(ctx, s.db.db, conversationID)
}

func (s *Store) UpsertDocument(ctx context.Context, doc *Document) error {
	return UpsertDocument(ctx, s.db.db, doc)
}

func (s *Store) SetDocumentStale(ctx context.Context, conversationID, docType string, stale bool) error {
	return SetDocumentStale(ctx, s.db.db, conversationID, docType, stale)
}

func (s *Store) InsertVersion(ctx context.Context, version *DocumentVersion) error {
	return InsertVersion(ctx, s.db.db, version)
}

func (s *Store) MaxVersionNumber(ctx context.Context, conversationID, docType string) (int, error) {
	return MaxVersionNumber(ctx, s.db.db, conversationID, docType)
}

func (s *Store) GetVersion(ctx context.Context, conversationID, docType string, number int) (*DocumentVersion, error) {
	return GetVersion(ctx, s.db.db, conversationID, docType, number)
}

func (s *Store) GetLatestVersion(ctx context.Context, conversationID, docType string) (*DocumentVersion, error) {
	return GetLatestVersion(ctx, s.db.db, conversationID, docType)
}

func (s *Store) ListVersions(ctx context.Context, conversationID, docType string) ([]DocumentVersion, error) {
	return GetVersionsByDocument(ctx, s.db.db, conversationID, docType)
}

func (s *Store) GetProfile(ctx context.Context) (*Profile, error) {
	return GetProfile(ctx, s.db.db)
}

func (s *Store) AddProfileTokens(ctx context.Context, amount int) error {
	// Ensure the singleton row exists before the additive update.
	if _, err := GetProfile(ctx, s.db.db); err != nil {
		return err
	}
	return AddProfileTokens(ctx, s.db.db, amount)
}
