package refiner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrefine/internal/chat"
	"textrefine/internal/config"
	"textrefine/internal/models"
)

type recordedRequest struct {
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

// fakeEndpoint serves one scripted handler per request, in order.
type fakeEndpoint struct {
	mu       sync.Mutex
	handlers []http.HandlerFunc
	requests []recordedRequest
	srv      *httptest.Server
}

func newFakeEndpoint(t *testing.T, handlers ...http.HandlerFunc) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{handlers: handlers}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		i := len(f.requests)
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if i >= len(f.handlers) {
			http.Error(w, "unexpected request", http.StatusTeapot)
			return
		}
		f.handlers[i](w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEndpoint) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeEndpoint) config() models.ChatConfig {
	return models.ChatConfig{Endpoint: f.srv.URL, APIKey: "sk-test", Model: "gpt-test", SystemPrompt: "guidelines"}
}

func jsonReply(content, finish string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		payload := map[string]any{"choices": []any{map[string]any{
			"message":       map[string]any{"content": content},
			"finish_reason": finish,
		}}}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func streamReply(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n\n")
		}
	}
}

func statusReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestService(endpoint *fakeEndpoint) *Service {
	opts := DefaultOptions()
	opts.RetryBaseDelay = time.Millisecond
	return New(chat.NewTransport(endpoint.srv.Client(), nil), opts, nil)
}

var hello = []models.ChatMessage{{Role: models.RoleUser, Content: "hello world"}}

func TestRefineStreams(t *testing.T) {
	endpoint := newFakeEndpoint(t, streamReply(
		`data: {"choices":[{"delta":{"content":"{\"optimized_text\":"}}]}`,
		`data: {"choices":[{"delta":{"content":"\"Hello, world.\"}"},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	))

	resp, err := newTestService(endpoint).RefineResponse(context.Background(), endpoint.config(), hello)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", resp.OptimizedText)

	calls := endpoint.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Stream)
	assert.Equal(t, 0.7, calls[0].Temperature)
	assert.Equal(t, 2000, calls[0].MaxTokens)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, models.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[1].Content, `"text_to_optimize": "hello world"`)
}

func TestRefineFallsBackOnceWithoutStreaming(t *testing.T) {
	endpoint := newFakeEndpoint(t,
		streamReply(`data: {garbage`, `data: [DONE]`),
		jsonReply(`{"optimized_text":"Recovered."}`, "stop"),
	)

	raw, err := newTestService(endpoint).Refine(context.Background(), endpoint.config(), hello)
	require.NoError(t, err)
	assert.Equal(t, `{"optimized_text":"Recovered."}`, raw)

	calls := endpoint.calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Stream)
	assert.False(t, calls[1].Stream)
}

func TestRefineEmptyStreamFallsBack(t *testing.T) {
	endpoint := newFakeEndpoint(t,
		streamReply(`: keep-alive`),
		jsonReply("plain answer", "stop"),
	)

	_, err := newTestService(endpoint).Refine(context.Background(), endpoint.config(), hello)
	require.NoError(t, err)
	assert.Len(t, endpoint.calls(), 2)
}

func TestRefineSurfacesAuthErrorWithoutRetry(t *testing.T) {
	endpoint := newFakeEndpoint(t, statusReply(http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`))

	_, err := newTestService(endpoint).Refine(context.Background(), endpoint.config(), hello)
	require.Error(t, err)
	assert.Equal(t, "invalid key", err.Error())
	assert.Equal(t, chat.KindHTTP, chat.KindOf(err))
	assert.Len(t, endpoint.calls(), 1)
}

func TestRefineRetriesTransientStatus(t *testing.T) {
	endpoint := newFakeEndpoint(t,
		statusReply(http.StatusServiceUnavailable, "busy"),
		streamReply(`data: {"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`, `data: [DONE]`),
	)

	raw, err := newTestService(endpoint).Refine(context.Background(), endpoint.config(), hello)
	require.NoError(t, err)
	assert.Equal(t, "ok", raw)
	assert.Len(t, endpoint.calls(), 2)
}

func TestRefineContinuesTruncatedOutput(t *testing.T) {
	endpoint := newFakeEndpoint(t,
		streamReply(`data: {"choices":[{"delta":{"content":"{\"optimized_text\":"},"finish_reason":"length"}]}`, `data: [DONE]`),
		streamReply(`data: {"choices":[{"delta":{"content":"\"Done.\"}"},"finish_reason":"stop"}]}`, `data: [DONE]`),
	)

	resp, err := newTestService(endpoint).RefineResponse(context.Background(), endpoint.config(), hello)
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.OptimizedText)

	calls := endpoint.calls()
	require.Len(t, calls, 2)
	second := calls[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: `{"optimized_text":`}, second[2])
	assert.Contains(t, second[3].Content, `"task": "continue_output"`)
}

func TestRefineCanceledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan struct{})
	endpoint := newFakeEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		close(released)
	})

	_, err := newTestService(endpoint).Refine(ctx, endpoint.config(), hello)
	require.Error(t, err)
	assert.True(t, chat.IsCanceled(err))
	assert.Equal(t, "request aborted", err.Error())

	<-released
	assert.Len(t, endpoint.calls(), 1)
}

func TestRefineMissingKeySendsNothing(t *testing.T) {
	endpoint := newFakeEndpoint(t)
	cfg := endpoint.config()
	cfg.APIKey = ""

	_, err := newTestService(endpoint).Refine(context.Background(), cfg, hello)
	require.Error(t, err)
	assert.Equal(t, chat.KindPrecondition, chat.KindOf(err))
	assert.Empty(t, endpoint.calls())
}

func TestTranslate(t *testing.T) {
	endpoint := newFakeEndpoint(t, jsonReply("Bonjour le monde", "stop"))

	opts := DefaultOptions()
	opts.TranslateLanguage = "French"
	svc := New(chat.NewTransport(endpoint.srv.Client(), nil), opts, nil)

	translated, err := svc.Translate(context.Background(), endpoint.config(), "Hello world")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour le monde", translated)

	calls := endpoint.calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Stream)
	assert.Equal(t, 0.3, calls[0].Temperature)
	assert.Equal(t, 2000, calls[0].MaxTokens)
	require.Len(t, calls[0].Messages, 1)
	assert.True(t, strings.HasPrefix(calls[0].Messages[0].Content, "Translate the following text into French."))
}

func TestTranslateContinuesWithPlainInstruction(t *testing.T) {
	endpoint := newFakeEndpoint(t,
		jsonReply("first", "length"),
		jsonReply(" second", "stop"),
	)

	translated, err := newTestService(endpoint).Translate(context.Background(), endpoint.config(), "Hello world")
	require.NoError(t, err)
	assert.Equal(t, "first second", translated)

	second := endpoint.calls()[1].Messages
	require.Len(t, second, 3)
	assert.False(t, strings.HasPrefix(second[2].Content, "{"))
}

func TestTranslateDoesNotFallBack(t *testing.T) {
	endpoint := newFakeEndpoint(t, statusReply(http.StatusOK, "not json"))

	_, err := newTestService(endpoint).Translate(context.Background(), endpoint.config(), "Hello")
	require.Error(t, err)
	assert.Equal(t, chat.KindResponse, chat.KindOf(err))
	assert.Len(t, endpoint.calls(), 1)
}

func TestShouldFallback(t *testing.T) {
	assert.False(t, ShouldFallback(nil))
	assert.False(t, ShouldFallback(context.Canceled))
	assert.False(t, ShouldFallback(&chat.Error{Kind: chat.KindHTTP, Status: 500}))
	assert.True(t, ShouldFallback(&chat.Error{Kind: chat.KindStreamFormat}))
}

func TestOptionsFromConfig(t *testing.T) {
	zero := 0
	opts := OptionsFromConfig(config.ChatConfig{
		MaxRetries:            &zero,
		RetryBaseDelay:        time.Second,
		MaxContinuationRounds: &zero,
		TranslateLanguage:     "German",
	})
	assert.Equal(t, Options{MaxRetries: 0, RetryBaseDelay: time.Second, MaxContinuationRounds: 0, TranslateLanguage: "German"}, opts)

	assert.Equal(t, DefaultOptions(), OptionsFromConfig(config.ChatConfig{}))
}
