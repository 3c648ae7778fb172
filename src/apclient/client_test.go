package apclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqforge/reqforge/src/aisdk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Logger:     testLogger(),
		RetryDelay: time.Millisecond,
	})
}

func TestGenerateSendsAuthAndPayload(t *testing.T) {
	var gotAuth, gotPath string
	var gotPayload map[string]any

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(aisdk.GenerateResponse{Text: "ok", TokensUsed: 7})
	}))

	resp, err := client.Generate(context.Background(), &aisdk.GenerateRequest{
		Model:    "test-model",
		Messages: []*aisdk.Message{{Role: aisdk.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 7, resp.TokensUsed)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/generate", gotPath)
	assert.Equal(t, "test-model", gotPayload["model"])
	assert.Equal(t, false, gotPayload["stream"])
}

func TestGenerateEmptyTextIsError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(aisdk.GenerateResponse{Text: ""})
	}))

	_, err := client.Generate(context.Background(), &aisdk.GenerateRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(aisdk.GenerateResponse{Text: "third time lucky"})
	}))

	resp, err := client.Generate(context.Background(), &aisdk.GenerateRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Request-ID", "req-123")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{
			Type:    "invalid_request",
			Message: "model is required",
			Code:    "missing_model",
		}})
	}))

	_, err := client.Generate(context.Background(), &aisdk.GenerateRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing_model", apiErr.Code)
	assert.Equal(t, "req-123", apiErr.RequestID)
	assert.False(t, apiErr.IsRetryable())
}

func TestHandleErrorRateLimit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{
			Message: "slow down",
			Code:    "rate_limit_exceeded",
		}})
	}))

	_, err := client.Generate(context.Background(), &aisdk.GenerateRequest{Model: "m"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimit())
	assert.True(t, apiErr.IsRetryable())
	assert.Equal(t, "30", apiErr.Details["retry_after"])
}

func TestGenerateStreamYieldsChunks(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["stream"])
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"text\",\"text\":\"streamed\"}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))

	stream, err := client.GenerateStream(context.Background(), &aisdk.GenerateRequest{Model: "m"})
	require.NoError(t, err)
	defer stream.Close()

	event, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, "streamed", event.(*aisdk.TextChunk).Text)

	_, err = stream.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGenerateStreamErrorStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{
			Message: "bad key",
			Code:    "invalid_api_key",
		}})
	}))

	_, err := client.GenerateStream(context.Background(), &aisdk.GenerateRequest{Model: "m"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsAuthError())
}

func TestGetRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, GetRetryDelay(assert.AnError, 1))
	assert.Equal(t, 4*time.Second, GetRetryDelay(assert.AnError, 3))
	assert.Equal(t, time.Minute, GetRetryDelay(assert.AnError, 20))

	rateLimited := &APIError{
		StatusCode: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"retry_after": float64(12)},
	}
	assert.Equal(t, 12*time.Second, GetRetryDelay(rateLimited, 1))
}
