package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqforge/reqforge/src/aisdk"
	"github.com/reqforge/reqforge/src/config"
	"github.com/reqforge/reqforge/src/engine"
	"github.com/reqforge/reqforge/src/storage"
)

// scriptedStream replays a fixed event sequence, then EOF.
type scriptedStream struct {
	events []aisdk.StreamEvent
	idx    int
}

func (s *scriptedStream) Read() (aisdk.StreamEvent, error) {
	if s.idx >= len(s.events) {
		return nil, io.EOF
	}
	event := s.events[s.idx]
	s.idx++
	return event, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedProvider serves the queued streams in order.
type scriptedProvider struct {
	mu      sync.Mutex
	streams []*scriptedStream
}

func (p *scriptedProvider) queue(events ...aisdk.StreamEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = append(p.streams, &scriptedStream{events: events})
}

func (p *scriptedProvider) Generate(ctx context.Context, req *aisdk.GenerateRequest) (*aisdk.GenerateResponse, error) {
	return &aisdk.GenerateResponse{Text: `{"test":false,"traceability":false,"diagram":false}`}, nil
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, req *aisdk.GenerateRequest) (aisdk.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return &scriptedStream{}, nil
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return stream, nil
}

type quietOracle struct{}

func (quietOracle) AssessImpact(ctx context.Context, oldContent, newContent string) (aisdk.ImpactVerdict, error) {
	return aisdk.ImpactVerdict{}, nil
}

func newTestServer(t *testing.T) (*Server, *scriptedProvider) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provider := &scriptedProvider{}
	eng := engine.New(engine.Config{
		Store:    storage.NewStore(db),
		Provider: provider,
		Oracle:   quietOracle{},
		Templates: []engine.PromptTemplate{
			{ID: "analysis-default", Name: "Default", DocType: engine.DocAnalysis, Prompt: "Analyze."},
		},
		Model:               "test-model",
		LedgerFlushInterval: 10 * time.Millisecond,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { eng.Close(context.Background()) })

	server := NewServer(eng, config.ServerConfig{Host: "127.0.0.1", Port: 0}, nil)
	return server, provider
}

func doJSON(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/conversations", `{"title":"New feature"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	conv := decodeBody[storage.Conversation](t, rec)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "New feature", conv.Title)

	rec = doJSON(t, server, http.MethodPut, "/api/v1/conversations/"+conv.ID, `{"title":"Renamed"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations/"+conv.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decodeBody[storage.Conversation](t, rec).Title)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]storage.Conversation](t, rec), 1)

	rec = doJSON(t, server, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageCommitsDocumentOverHTTP(t *testing.T) {
	server, provider := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/conversations", `{"title":"turn"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	conv := decodeBody[storage.Conversation](t, rec)

	provider.queue(
		&aisdk.TextChunk{Text: "Updated the analysis."},
		&aisdk.DocumentChunk{DocType: "analysis", Fragment: "## Findings\n"},
		&aisdk.DocumentChunk{DocType: "analysis", Fragment: "The system has two actors."},
		&aisdk.UsageChunk{Tokens: 50},
	)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", `{"text":"analyze this"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decodeBody[storage.Message](t, rec)
	assert.Equal(t, "Updated the analysis.", msg.Content)
	assert.False(t, msg.IsStreaming)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/documents/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody[storage.Document](t, rec)
	assert.Equal(t, "## Findings\nThe system has two actors.", doc.Content)
	assert.Equal(t, 1, doc.CurrentVersion)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/documents/analysis/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decodeBody[[]storage.DocumentVersion](t, rec)
	require.Len(t, versions, 1)
	assert.Equal(t, "generated by assistant", versions[0].Reason)
}

func TestDocTypeValidationOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/conversations", `{"title":"types"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	conv := decodeBody[storage.Conversation](t, rec)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/documents/poem", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopWithoutActiveGeneration(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/conversations", `{"title":"idle"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	conv := decodeBody[storage.Conversation](t, rec)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListTemplatesOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/templates/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	templates := decodeBody[[]engine.PromptTemplate](t, rec)
	require.Len(t, templates, 1)
	assert.Equal(t, "analysis-default", templates[0].ID)
}

func TestProfileOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[storage.Profile](t, rec)
	assert.Equal(t, 1, profile.ID)
}
