// Package aisdk defines the contracts between the synchronization engine and
// the AI generation provider: chat messages, generation requests, the stream
// event union, and the impact oracle.
package aisdk

import (
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single message in a conversation as sent to the
// provider. Persistence-side fields (feedback, errors, streaming state) live
// on the storage record, not here.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Metadata for message tracking
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CommandSpec describes one entry of the function-call vocabulary offered to
// the provider. Parameters is a JSON Schema for the command's arguments.
type CommandSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// GenerateRequest is the input to both one-shot and streaming generation.
type GenerateRequest struct {
	Model    string     `json:"model"`
	Messages []*Message `json:"messages"`

	// Documents carries the current committed content of every document the
	// provider should see, keyed by document type.
	Documents map[string]string `json:"documents,omitempty"`

	// Commands is the function-call vocabulary available for this turn.
	Commands []*CommandSpec `json:"commands,omitempty"`

	// Template is the prompt template body when generating a document, and
	// TargetDoc names the document type being generated. Both are empty for
	// plain chat turns.
	Template  string `json:"template,omitempty"`
	TargetDoc string `json:"target_doc,omitempty"`
}

// GenerateResponse is the result of a one-shot generation call.
type GenerateResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// ImpactVerdict is the impact oracle's judgment of which derived document
// types are semantically affected by an analysis change. The booleans are
// independent of one another.
type ImpactVerdict struct {
	Test         bool `json:"test"`
	Traceability bool `json:"traceability"`
	Diagram      bool `json:"diagram"`
}
