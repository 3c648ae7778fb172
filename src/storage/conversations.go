package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// CreateConversation creates a new conversation in the database
func CreateConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = time.Now()
	}

	query := `INSERT INTO conversations (id, title, total_tokens, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conversation.ID, conversation.Title, conversation.TotalTokens, conversation.CreatedAt, conversation.UpdatedAt)
	return err
}

// GetConversationByID retrieves a conversation by its ID
func GetConversationByID(ctx context.Context, db sqlscan.Querier, conversationID string) (*Conversation, error) {
	query := `SELECT id, title, total_tokens, created_at, updated_at FROM conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations retrieves all conversations ordered by most recent update
func ListConversations(ctx context.Context, db sqlscan.Querier) ([]Conversation, error) {
	query := `SELECT id, title, total_tokens, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	var conversations []Conversation
	if err := sqlscan.Select(ctx, db, &conversations, query); err != nil {
		return nil, err
	}
	return conversations, nil
}

// UpdateConversationTitle updates a conversation's title
func UpdateConversationTitle(ctx context.Context, db Execer, conversationID, title string) error {
	query := `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, title, time.Now(), conversationID)
	return err
}

// AddConversationTokens adds the given amount to a conversation's running
// token total. The addition happens in SQL so a stale in-memory total is
// never written over a newer one.
func AddConversationTokens(ctx context.Context, db Execer, conversationID string, amount int) error {
	query := `UPDATE conversations SET total_tokens = total_tokens + ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, amount, time.Now(), conversationID)
	return err
}

// DeleteConversation deletes a single conversation row. Cascading deletion of
// messages, documents, and versions is handled by the caller record by
// record, since the store gives no cross-record transaction guarantee.
func DeleteConversation(ctx context.Context, db Execer, conversationID string) error {
	query := `DELETE FROM conversations WHERE id = ?`
	_, err := db.ExecContext(ctx, query, conversationID)
	return err
}
