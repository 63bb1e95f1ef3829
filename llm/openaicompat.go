package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave/types"
)

// OpenAICompatBackend speaks the OpenAI chat-completions wire format,
// which most hosted and self-hosted inference servers accept.
type OpenAICompatBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// OpenAICompatOption configures an OpenAICompatBackend.
type OpenAICompatOption func(*OpenAICompatBackend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) OpenAICompatOption {
	return func(b *OpenAICompatBackend) { b.httpClient = hc }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) OpenAICompatOption {
	return func(b *OpenAICompatBackend) { b.logger = logger }
}

// NewOpenAICompatBackend creates a backend against baseURL, e.g.
// "https://api.openai.com/v1" or a local vLLM endpoint.
func NewOpenAICompatBackend(baseURL, apiKey string, opts ...OpenAICompatOption) *OpenAICompatBackend {
	b := &OpenAICompatBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *OpenAICompatBackend) Name() string { return "openai-compat" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete implements Backend.
func (b *OpenAICompatBackend) Complete(ctx context.Context, req *Request) (string, error) {
	body := chatRequest{
		Model:       req.Params.Model,
		Messages:    buildMessages(req),
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		MaxTokens:   req.Params.MaxTokens,
		Stop:        req.Params.Stop,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.Fatal(types.ErrInvalidRequest, "marshal request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", types.Fatal(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.Transient(types.ErrUpstreamError, "request failed").
			WithBackend(b.Name()).WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", types.Transient(types.ErrUpstreamError, "read response").
			WithBackend(b.Name()).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", b.mapHTTPError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", types.Transient(types.ErrUpstreamError, "decode response").
			WithBackend(b.Name()).WithCause(err)
	}
	if parsed.Error != nil {
		return "", types.Transient(types.ErrUpstreamError, parsed.Error.Message).
			WithBackend(b.Name())
	}
	if len(parsed.Choices) == 0 {
		return "", types.Transient(types.ErrUpstreamError, "empty choices").
			WithBackend(b.Name())
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildMessages(req *Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: string(RoleSystem), Content: req.System})
	}
	for _, m := range req.History {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: string(RoleUser), Content: req.Prompt})
	return msgs
}

// mapHTTPError classifies an upstream HTTP status. Auth and validation
// failures are fatal, rate limits and server faults are transient.
func (b *OpenAICompatBackend) mapHTTPError(status int, body []byte) *types.Error {
	msg := upstreamMessage(body)

	switch status {
	case http.StatusBadRequest:
		return types.Fatal(types.ErrInvalidRequest, msg).WithBackend(b.Name())
	case http.StatusUnauthorized:
		return types.Fatal(types.ErrUnauthorized, msg).WithBackend(b.Name())
	case http.StatusForbidden:
		return types.Fatal(types.ErrForbidden, msg).WithBackend(b.Name())
	case http.StatusTooManyRequests:
		return types.Transient(types.ErrRateLimited, msg).WithBackend(b.Name())
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.Transient(types.ErrUpstreamError, msg).WithBackend(b.Name())
	case http.StatusGatewayTimeout:
		return types.Transient(types.ErrUpstreamTimeout, msg).WithBackend(b.Name())
	case 529: // overloaded
		return types.Transient(types.ErrRateLimited, msg).WithBackend(b.Name())
	}
	if status >= 500 {
		return types.Transient(types.ErrUpstreamError, msg).WithBackend(b.Name())
	}
	return types.Fatal(types.ErrUpstreamError, msg).WithBackend(b.Name())
}

func upstreamMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	if trimmed == "" {
		return "upstream error"
	}
	return fmt.Sprintf("upstream error: %s", trimmed)
}
