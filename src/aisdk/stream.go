package aisdk

import (
	"errors"
	"io"
	"strings"
)

// StreamCallback is a function called for each event in a stream.
type StreamCallback func(event StreamEvent) error

// StreamToCallback reads a stream and calls the callback for each event.
// A callback error stops the loop and is returned to the caller.
func StreamToCallback(stream Stream, callback StreamCallback) error {
	defer stream.Close()

	for {
		event, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil // End of stream
			}
			return err
		}

		if event == nil {
			return nil // End of stream
		}

		if err := callback(event); err != nil {
			return err
		}
	}
}

// CollectText reads a stream to completion and returns the concatenated text
// content plus the total reported token usage.
func CollectText(stream Stream) (string, int, error) {
	var content strings.Builder
	var tokens int

	err := StreamToCallback(stream, func(event StreamEvent) error {
		switch ev := event.(type) {
		case *TextChunk:
			content.WriteString(ev.Text)
		case *UsageChunk:
			tokens += ev.Tokens
		case *DocumentChunk, *ThoughtChunk, *FunctionCallChunk:
			// Not part of the text payload.
		case *ErrorChunk:
			return errors.New(ev.Message)
		}
		return nil
	})

	return content.String(), tokens, err
}
