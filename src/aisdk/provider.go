package aisdk

import (
	"context"
)

// Stream reads an ordered sequence of events from one generation call.
type Stream interface {
	// Read returns the next event from the stream, or io.EOF when the
	// stream has completed naturally.
	Read() (StreamEvent, error)

	// Close closes the stream.
	Close() error
}

// Provider represents the AI generation provider.
type Provider interface {
	// Generate performs a one-shot generation call.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GenerateStream opens a streaming generation call.
	GenerateStream(ctx context.Context, req *GenerateRequest) (Stream, error)
}

// ImpactOracle classifies which derived document types are semantically
// affected by a source-document change. The judgment is externally defined
// and inherently non-deterministic; implementations must not be replaced by
// local heuristics.
type ImpactOracle interface {
	AssessImpact(ctx context.Context, oldContent, newContent string) (ImpactVerdict, error)
}
