package engine

import (
	"sync"
	"time"
)

// EventType represents the type of conversation event
type EventType string

const (
	// User events
	EventUserMessage EventType = "user_message"

	// Assistant streaming events
	EventStreamStart EventType = "stream_start"
	EventTextChunk   EventType = "text_chunk"
	EventThought     EventType = "thought"
	EventDocProgress EventType = "doc_progress"
	EventFunctionAck EventType = "function_ack"
	EventStreamEnd   EventType = "stream_end"

	// Terminal message events
	EventMessageFinalized EventType = "message_finalized"
	EventMessageAborted   EventType = "message_aborted"
	EventMessageErrored   EventType = "message_errored"

	// Document events
	EventDocumentCommitted EventType = "document_committed"
	EventDocumentStale     EventType = "document_stale"

	// Transient, dismissible persistence notices
	EventNotice EventType = "notice"
)

// ConversationEvent is the base interface for all conversation events
type ConversationEvent interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetConversationID() string
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
}

func (e BaseEvent) GetType() EventType        { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time   { return e.Timestamp }
func (e BaseEvent) GetConversationID() string { return e.ConversationID }

// MessageEvent carries message-scoped payloads (user message, stream chunks,
// terminal states).
type MessageEvent struct {
	BaseEvent
	MessageID string `json:"message_id"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DocumentEvent carries document-scoped payloads (progress, commits,
// staleness flips).
type DocumentEvent struct {
	BaseEvent
	DocType string `json:"doc_type"`
	Version int    `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// NoticeEvent is a transient, dismissible notice (persistence failures that
// kept optimistic in-memory state).
type NoticeEvent struct {
	BaseEvent
	Notice string `json:"notice"`
}

// EventBroker fans conversation events out to per-conversation subscribers.
// Publishing never blocks; a slow subscriber drops events rather than
// stalling chunk application.
type EventBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan ConversationEvent]struct{}
}

// NewEventBroker creates an event broker
func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[string]map[chan ConversationEvent]struct{}),
	}
}

// Subscribe registers a subscriber for one conversation's events. The
// returned cancel function must be called to release the subscription.
func (b *EventBroker) Subscribe(conversationID string) (<-chan ConversationEvent, func()) {
	ch := make(chan ConversationEvent, 64)

	b.mu.Lock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[chan ConversationEvent]struct{})
	}
	b.subs[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[conversationID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, conversationID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers of its conversation.
func (b *EventBroker) Publish(event ConversationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[event.GetConversationID()] {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop rather than block the stream.
		}
	}
}

func (b *EventBroker) base(eventType EventType, conversationID string) BaseEvent {
	return BaseEvent{
		Type:           eventType,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
	}
}

// PublishMessage publishes a message-scoped event.
func (b *EventBroker) PublishMessage(eventType EventType, conversationID, messageID, content, errText string) {
	b.Publish(&MessageEvent{
		BaseEvent: b.base(eventType, conversationID),
		MessageID: messageID,
		Content:   content,
		Error:     errText,
	})
}

// PublishDocument publishes a document-scoped event.
func (b *EventBroker) PublishDocument(eventType EventType, conversationID string, docType DocType, version int, reason string) {
	b.Publish(&DocumentEvent{
		BaseEvent: b.base(eventType, conversationID),
		DocType:   string(docType),
		Version:   version,
		Reason:    reason,
	})
}

// PublishNotice publishes a transient notice.
func (b *EventBroker) PublishNotice(conversationID, notice string) {
	b.Publish(&NoticeEvent{
		BaseEvent: b.base(EventNotice, conversationID),
		Notice:    notice,
	})
}
