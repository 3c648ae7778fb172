package engine

import (
	"context"

	"github.com/reqforge/reqforge/src/storage"
)

// Store is the durable record store consumed by the engine. The sqlite
// implementation lives in the storage package; tests substitute an in-memory
// one. The store gives no cross-record transaction guarantee: the engine is
// written to stay correct when one of two related writes fails.
type Store interface {
	CreateConversation(ctx context.Context, conversation *storage.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*storage.Conversation, error)
	ListConversations(ctx context.Context) ([]storage.Conversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID, title string) error
	AddConversationTokens(ctx context.Context, conversationID string, amount int) error
	DeleteConversation(ctx context.Context, conversationID string) error

	CreateMessage(ctx context.Context, message *storage.Message) error
	GetMessage(ctx context.Context, messageID string) (*storage.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]storage.Message, error)
	UpdateMessage(ctx context.Context, message *storage.Message) error
	SetMessageFeedback(ctx context.Context, messageID string, rating *int, comment string) error
	DeleteMessage(ctx context.Context, messageID string) error

	GetDocument(ctx context.Context, conversationID, docType string) (*storage.Document, error)
	ListDocuments(ctx context.Context, conversationID string) ([]storage.Document, error)
	UpsertDocument(ctx context.Context, doc *storage.Document) error
	SetDocumentStale(ctx context.Context, conversationID, docType string, stale bool) error

	InsertVersion(ctx context.Context, version *storage.DocumentVersion) error
	MaxVersionNumber(ctx context.Context, conversationID, docType string) (int, error)
	GetVersion(ctx context.Context, conversationID, docType string, number int) (*storage.DocumentVersion, error)
	GetLatestVersion(ctx context.Context, conversationID, docType string) (*storage.DocumentVersion, error)
	ListVersions(ctx context.Context, conversationID, docType string) ([]storage.DocumentVersion, error)

	GetProfile(ctx context.Context) (*storage.Profile, error)
	AddProfileTokens(ctx context.Context, amount int) error
}
