package apclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/reqforge/reqforge/src/aisdk"
)

// wireChunk is one SSE data payload from the generation backend. Type
// selects which of the remaining fields are meaningful.
type wireChunk struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// document
	DocType  string `json:"doc_type,omitempty"`
	Fragment string `json:"fragment,omitempty"`

	// thought
	Thought string `json:"thought,omitempty"`

	// function_call
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// usage
	Tokens int `json:"tokens,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// sseStream reads "data: " lines off the response body and decodes each into
// a typed stream event.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	closed  bool
}

func newSSEStream(body io.ReadCloser, logger *slog.Logger) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{
		body:    body,
		scanner: scanner,
		logger:  logger.With("component", "sse_stream"),
	}
}

// Read returns the next event, or io.EOF when the stream is done.
func (s *sseStream) Read() (aisdk.StreamEvent, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// A malformed chunk is dropped, not fatal.
			s.logger.Debug("skipping malformed chunk", "error", err)
			continue
		}

		event, err := chunk.toEvent()
		if err != nil {
			s.logger.Debug("skipping unknown chunk", "type", chunk.Type)
			continue
		}
		return event, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (c *wireChunk) toEvent() (aisdk.StreamEvent, error) {
	switch c.Type {
	case "text":
		return &aisdk.TextChunk{Text: c.Text}, nil
	case "document":
		return &aisdk.DocumentChunk{DocType: c.DocType, Fragment: c.Fragment}, nil
	case "thought":
		return &aisdk.ThoughtChunk{Thought: c.Thought}, nil
	case "function_call":
		return &aisdk.FunctionCallChunk{Name: c.Name, Arguments: c.Arguments}, nil
	case "usage":
		return &aisdk.UsageChunk{Tokens: c.Tokens}, nil
	case "error":
		return &aisdk.ErrorChunk{Message: c.Message, Code: c.Code}, nil
	default:
		return nil, fmt.Errorf("unknown chunk type %q", c.Type)
	}
}
