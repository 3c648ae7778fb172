package aisdk

import "encoding/json"

// StreamEvent is one element of a generation stream. The set of kinds is
// closed: every consumer switches over all of them, and a new kind means
// touching every switch rather than falling through a default case.
type StreamEvent interface {
	streamEvent()
}

// TextChunk appends text to the in-flight assistant message.
type TextChunk struct {
	Text string `json:"text"`
}

// DocumentChunk appends a fragment to the generation job's buffer for one
// document type. It is never applied to a document directly.
type DocumentChunk struct {
	DocType  string `json:"doc_type"`
	Fragment string `json:"fragment"`
}

// ThoughtChunk replaces the message's latest reasoning trace.
type ThoughtChunk struct {
	Thought string `json:"thought"`
}

// FunctionCallChunk is a structured command emitted mid-stream.
type FunctionCallChunk struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// UsageChunk reports consumption units to forward to the token ledger.
type UsageChunk struct {
	Tokens int `json:"tokens"`
}

// ErrorChunk aborts the stream with a provider failure.
type ErrorChunk struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (*TextChunk) streamEvent()         {}
func (*DocumentChunk) streamEvent()     {}
func (*ThoughtChunk) streamEvent()      {}
func (*FunctionCallChunk) streamEvent() {}
func (*UsageChunk) streamEvent()        {}
func (*ErrorChunk) streamEvent()        {}
