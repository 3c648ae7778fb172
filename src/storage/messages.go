package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, role, content, thought, ack, error, feedback_rating, feedback_comment, is_streaming, created_at`

// CreateMessage creates a new message in the database
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		message.Thought,
		message.Ack,
		message.Error,
		message.FeedbackRating,
		message.FeedbackComment,
		message.IsStreaming,
		message.CreatedAt,
	)
	return err
}

// GetMessageByID retrieves a message by its ID
func GetMessageByID(ctx context.Context, db sqlscan.Querier, messageID string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	var m Message
	err := sqlscan.Get(ctx, db, &m, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &m, nil
}

// GetMessagesByConversationID retrieves all messages for a conversation ordered by creation time
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at`
	var messages []Message
	err := sqlscan.Select(ctx, db, &messages, query, conversationID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateMessage updates a message's mutable fields. Only assistant messages
// owned by an active generation job are ever updated.
func UpdateMessage(ctx context.Context, db Execer, message *Message) error {
	query := `UPDATE messages SET content = ?, thought = ?, ack = ?, error = ?, is_streaming = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query,
		message.Content,
		message.Thought,
		message.Ack,
		message.Error,
		message.IsStreaming,
		message.ID,
	)
	return err
}

// SetMessageFeedback records user feedback on a message
func SetMessageFeedback(ctx context.Context, db Execer, messageID string, rating *int, comment string) error {
	query := `UPDATE messages SET feedback_rating = ?, feedback_comment = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, rating, comment, messageID)
	return err
}

// DeleteMessage deletes a message by ID
func DeleteMessage(ctx context.Context, db Execer, messageID string) error {
	query := `DELETE FROM messages WHERE id = ?`
	_, err := db.ExecContext(ctx, query, messageID)
	return err
}

// DeleteMessagesByConversationID deletes all messages belonging to a conversation
func DeleteMessagesByConversationID(ctx context.Context, db Execer, conversationID string) error {
	query := `DELETE FROM messages WHERE conversation_id = ?`
	_, err := db.ExecContext(ctx, query, conversationID)
	return err
}
