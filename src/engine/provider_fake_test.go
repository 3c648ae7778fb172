package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/reqforge/reqforge/src/aisdk"
)

// fakeStream replays a fixed event sequence. onEvent fires before an event
// is returned, letting tests cancel the job at a precise point in the
// stream.
type fakeStream struct {
	events  []aisdk.StreamEvent
	idx     int
	onEvent func(idx int)
	closed  bool
}

func (s *fakeStream) Read() (aisdk.StreamEvent, error) {
	if s.idx >= len(s.events) {
		return nil, io.EOF
	}
	if s.onEvent != nil {
		s.onEvent(s.idx)
	}
	event := s.events[s.idx]
	s.idx++
	return event, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeProvider hands out queued streams in order and records every request
// it sees.
type fakeProvider struct {
	mu        sync.Mutex
	streams   []*fakeStream
	requests  []*aisdk.GenerateRequest
	streamErr error
}

func (p *fakeProvider) queue(stream *fakeStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = append(p.streams, stream)
}

func (p *fakeProvider) requestAt(i int) *aisdk.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.requests) {
		return nil
	}
	return p.requests[i]
}

func (p *fakeProvider) Generate(_ context.Context, req *aisdk.GenerateRequest) (*aisdk.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil, errors.New("one-shot generation not supported by fake")
}

func (p *fakeProvider) GenerateStream(_ context.Context, req *aisdk.GenerateRequest) (aisdk.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if len(p.streams) == 0 {
		return &fakeStream{}, nil
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return stream, nil
}

// fakeOracle returns a fixed verdict and records what it was asked.
type fakeOracle struct {
	mu      sync.Mutex
	verdict aisdk.ImpactVerdict
	err     error
	calls   int
	lastOld string
	lastNew string
}

func (o *fakeOracle) AssessImpact(_ context.Context, oldContent, newContent string) (aisdk.ImpactVerdict, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.lastOld = oldContent
	o.lastNew = newContent
	if o.err != nil {
		return aisdk.ImpactVerdict{}, o.err
	}
	return o.verdict, nil
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(store Store, provider aisdk.Provider, oracle aisdk.ImpactOracle, templates ...PromptTemplate) *Engine {
	return New(Config{
		Store:               store,
		Provider:            provider,
		Oracle:              oracle,
		Templates:           templates,
		Model:               "test-model",
		LedgerFlushInterval: 10 * time.Millisecond,
		Logger:              testLogger(),
	})
}
