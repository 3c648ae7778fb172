package storage

import "time"

// Conversation is the durable record for one conversation.
type Conversation struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	TotalTokens int       `db:"total_tokens" json:"total_tokens"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Message is the durable record for one chat message. User messages are
// immutable once created; assistant messages are mutable only while their
// owning generation job is active.
type Message struct {
	ID              string    `db:"id" json:"id"`
	ConversationID  string    `db:"conversation_id" json:"conversation_id"`
	Role            string    `db:"role" json:"role"`
	Content         string    `db:"content" json:"content"`
	Thought         string    `db:"thought" json:"thought,omitempty"`
	Ack             string    `db:"ack" json:"ack,omitempty"`
	Error           string    `db:"error" json:"error,omitempty"`
	FeedbackRating  *int      `db:"feedback_rating" json:"feedback_rating,omitempty"`
	FeedbackComment string    `db:"feedback_comment" json:"feedback_comment,omitempty"`
	IsStreaming     bool      `db:"is_streaming" json:"is_streaming"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Document is the mutable "head" state for one (conversation, doc type):
// current content, a pointer to the current version, and the staleness flag.
type Document struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	DocType        string    `db:"doc_type" json:"doc_type"`
	Content        string    `db:"content" json:"content"`
	CurrentVersion int       `db:"current_version" json:"current_version"`
	TemplateID     string    `db:"template_id" json:"template_id,omitempty"`
	IsStale        bool      `db:"is_stale" json:"is_stale"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentVersion is an immutable numbered snapshot. Numbers are scoped to
// (conversation, doc type), start at 1, and are never reused.
type DocumentVersion struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	DocType        string    `db:"doc_type" json:"doc_type"`
	Number         int       `db:"number" json:"number"`
	Content        string    `db:"content" json:"content"`
	Reason         string    `db:"reason" json:"reason"`
	TemplateID     string    `db:"template_id" json:"template_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Profile is the single account-level record, holding the global token
// counter.
type Profile struct {
	ID          int       `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	TotalTokens int       `db:"total_tokens" json:"total_tokens"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
