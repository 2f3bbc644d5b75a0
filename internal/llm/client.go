// Package llm speaks the OpenAI-compatible chat-completions protocol exposed
// by llama-server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"essaylens/internal/metrics"
)

const defaultTimeout = 120 * time.Second

// Client is a chat-completions client bound to one backend.
type Client struct {
	chatURL     string
	model       string
	apiKey      string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
	log         zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel sets the model name sent with each request.
func WithModel(name string) ClientOption { return func(c *Client) { c.model = name } }

// WithAPIKey sends a bearer token with each request.
func WithAPIKey(key string) ClientOption { return func(c *Client) { c.apiKey = key } }

// WithDefaultTemperature sets the temperature used when a call does not choose one.
func WithDefaultTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithTimeout bounds blocking calls end to end, and streaming calls between
// two received chunks. Zero disables the client-side timeout.
func WithTimeout(d time.Duration) ClientOption { return func(c *Client) { c.timeout = d } }

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l zerolog.Logger) ClientOption { return func(c *Client) { c.log = l } }

// NewClient returns a client for the server rooted at baseURL
// (e.g. http://127.0.0.1:8080).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	c := &Client{
		chatURL: strings.TrimRight(baseURL, "/") + "/v1/chat/completions",
		model:   "llama",
		timeout: defaultTimeout,
		// Timeout=0: every request carries a context deadline instead.
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("component", "llm").Logger()
	return c
}

// ChatURL is the chat-completions endpoint this client posts to.
func (c *Client) ChatURL() string { return c.chatURL }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	Messages       []wireMessage  `json:"messages"`
	Stream         bool           `json:"stream,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	TopP           *float64       `json:"top_p,omitempty"`
	TopK           *int           `json:"top_k,omitempty"`
	RepeatPenalty  *float64       `json:"repeat_penalty,omitempty"`
	Seed           *int           `json:"seed,omitempty"`
	Stop           []string       `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) buildRequest(system, user string, maxTokens int, stream bool, opts []CallOption) chatRequest {
	o := resolveCallOptions(opts)
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
		Messages: []wireMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:         stream,
		ResponseFormat: o.responseFormat,
		TopP:           o.topP,
		TopK:           o.topK,
		RepeatPenalty:  o.repeatPenalty,
		Seed:           o.seed,
		Stop:           o.stop,
	}
	if o.temperature != nil {
		req.Temperature = *o.temperature
	}
	return req
}

// post sends body and returns the response when the status is 200. Any other
// status becomes an *HTTPError carrying a truncated body.
func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chat request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		// read a little past the cap so multi-byte runes are not cut mid-sequence
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: truncateRunes(string(raw), maxErrorBody)}
	}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) roundTrip(ctx context.Context, mode string, body chatRequest) (Message, error) {
	start := time.Now()
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.post(ctx, body)
	if err != nil {
		observe(mode, outcomeOf(err), start)
		return Message{}, err
	}
	defer resp.Body.Close()
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observe(mode, "transport_error", start)
		return Message{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		observe(mode, "transport_error", start)
		return Message{}, ErrEmptyResponse
	}
	m := out.Choices[0].Message
	observe(mode, "ok", start)
	c.log.Debug().Str("mode", mode).Int("max_tokens", body.MaxTokens).Dur("dur", time.Since(start)).Int("content_len", len(m.Content)).Msg("chat done")
	role := m.Role
	if role == "" {
		role = "assistant"
	}
	return Message{Role: role, Content: m.Content, Reasoning: m.ReasoningContent}, nil
}

// Chat sends one system and one user message and returns the trimmed
// assistant content. An empty string means the backend returned no content.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) (string, error) {
	m, err := c.roundTrip(ctx, "chat", c.buildRequest(system, user, maxTokens, false, opts))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(m.Content), nil
}

// ChatMessage is Chat but keeps the role and any separate reasoning text.
func (c *Client) ChatMessage(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) (Message, error) {
	m, err := c.roundTrip(ctx, "message", c.buildRequest(system, user, maxTokens, false, opts))
	if err != nil {
		return Message{}, err
	}
	m.Content = strings.TrimSpace(m.Content)
	m.Reasoning = strings.TrimSpace(m.Reasoning)
	return m, nil
}

// JSONSchemaChat asks the backend for JSON constrained by schema and returns
// the parsed value. Conformance to schema is the backend's job; this only
// guarantees the result is valid JSON, repairing wrapped output when needed.
func (c *Client) JSONSchemaChat(ctx context.Context, system, user string, maxTokens int, schema map[string]any) (json.RawMessage, error) {
	body := c.buildRequest(system, user, maxTokens, false, nil)
	body.ResponseFormat = map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "response",
			"schema": schema,
		},
	}
	m, err := c.roundTrip(ctx, "json", body)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSONReply(m.Content)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("json", "decode_error").Inc()
		c.log.Warn().Int("content_len", len(m.Content)).Msg("model returned invalid JSON")
		return nil, err
	}
	return raw, nil
}

func observe(mode, outcome string, start time.Time) {
	metrics.ChatRequestsTotal.WithLabelValues(mode, outcome).Inc()
	metrics.ChatDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if IsHTTPError(err) {
		return "http_error"
	}
	return "transport_error"
}

var (
	_ Chatter  = (*Client)(nil)
	_ Streamer = (*Client)(nil)
)
