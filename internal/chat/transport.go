package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"textrefine/internal/models"
	"textrefine/internal/tracing"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "textrefine/0.1"

	maxResponseBody = 10 << 20
	maxErrorBody    = 64 << 10

	defaultHTTPTimeout     = 120 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Completer performs one chat-completions call and returns its result.
type Completer interface {
	Complete(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage, opts models.RequestOptions) (models.ChatCompletionResult, error)
}

// Transport issues exactly one HTTP POST per Complete call.
type Transport struct {
	client *http.Client
	logger *slog.Logger
}

// NewTransport builds a Transport. A nil client gets a tuned default.
func NewTransport(client *http.Client, logger *slog.Logger) *Transport {
	if client == nil {
		client = NewHTTPClient(defaultHTTPTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{client: client, logger: logger}
}

// NewHTTPClient returns a client with pooled keep-alive connections. A zero
// timeout leaves long streams bounded only by the caller's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type requestPayload struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason json.RawMessage `json:"finish_reason"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Completer.
func (t *Transport) Complete(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage, opts models.RequestOptions) (result models.ChatCompletionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "chat.transport",
		tracing.String("llm.model", cfg.Model),
		tracing.Bool("llm.stream", opts.Stream),
	)
	defer func() { tracing.End(span, err) }()

	if err := ctx.Err(); err != nil {
		return models.ChatCompletionResult{}, canceledError(err)
	}
	if err := CheckConfig(cfg); err != nil {
		return models.ChatCompletionResult{}, err
	}

	opts = opts.WithDefaults()
	body, err := json.Marshal(requestPayload{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      opts.Stream,
	})
	if err != nil {
		return models.ChatCompletionResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(cfg.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.ChatCompletionResult{}, &Error{Kind: KindPrecondition, Message: fmt.Sprintf("construct request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	if opts.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", contentTypeJSON)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return models.ChatCompletionResult{}, transportError(ctx, "chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ChatCompletionResult{}, parseAPIError(ctx, resp)
	}

	if opts.Stream {
		result, err = DecodeStream(ctx, resp.Body)
	} else {
		result, err = decodeCompletion(ctx, resp.Body)
	}
	if err != nil {
		return models.ChatCompletionResult{}, err
	}

	span.SetAttributes(
		tracing.String("llm.finish_reason", result.FinishReason),
		tracing.Int("llm.content_length", len(result.Content)),
	)
	t.logger.Debug("chat completion received",
		"model", cfg.Model,
		"stream", opts.Stream,
		"finish_reason", result.FinishReason,
		"content_length", len(result.Content),
	)
	return result, nil
}

// CheckConfig fails with KindPrecondition when no network call may be attempted.
func CheckConfig(cfg models.ChatConfig) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return &Error{Kind: KindPrecondition, Message: "API endpoint is not configured"}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &Error{Kind: KindPrecondition, Message: "API key is not configured"}
	}
	return nil
}

func decodeCompletion(ctx context.Context, body io.Reader) (models.ChatCompletionResult, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBody))
	if err != nil {
		return models.ChatCompletionResult{}, transportError(ctx, "read response", err)
	}

	var decoded completionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return models.ChatCompletionResult{}, &Error{Kind: KindResponse, Message: fmt.Sprintf("decode provider response: %v", err), Err: err}
	}

	var result models.ChatCompletionResult
	if len(decoded.Choices) > 0 {
		choice := decoded.Choices[0]
		result.Content, _ = rawString(choice.Message.Content)
		result.FinishReason, _ = rawString(choice.FinishReason)
	}
	return result, nil
}

func parseAPIError(ctx context.Context, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && ctx.Err() != nil {
		return canceledError(ctx.Err())
	}

	var payload apiErrorResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		return httpError(resp.StatusCode, payload.Error.Message)
	}
	return httpError(resp.StatusCode, "")
}

// transportError classifies a low-level failure, preferring cancellation when
// the caller's context has ended.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return canceledError(ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return canceledError(err)
	}
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

// rawString returns the value of a JSON string literal.
func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
