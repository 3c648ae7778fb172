package engine

import (
	"errors"
	"fmt"
)

// Common error variables
var (
	// ErrConversationNotFound indicates the conversation doesn't exist
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the message doesn't exist
	ErrMessageNotFound = errors.New("message not found")

	// ErrVersionNotFound indicates the requested document version doesn't exist
	ErrVersionNotFound = errors.New("document version not found")

	// ErrUnknownDocType indicates a document type outside the fixed enumeration
	ErrUnknownDocType = errors.New("unknown document type")

	// ErrUnknownCommand indicates a function call outside the command table
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoActiveGeneration indicates there is no generation job to act on
	ErrNoActiveGeneration = errors.New("no active generation")

	// ErrGenerationCancelled is the cooperative stop signal. It is not an
	// error condition shown to the user.
	ErrGenerationCancelled = errors.New("generation cancelled")

	// ErrHeadUpdateFailed indicates the version snapshot was written but the
	// document head pointer update failed. The head is repaired on next read;
	// callers surface this as a transient notice, not a failed commit.
	ErrHeadUpdateFailed = errors.New("document head update failed")
)

// ProviderError is a provider failure raised mid-stream. It is attached to
// the in-flight message as a recoverable error.
type ProviderError struct {
	Message string
	Code    string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// CommandError is a validation failure local to one function call. It is
// attached to the message and does not abort the rest of the stream.
type CommandError struct {
	Command string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
