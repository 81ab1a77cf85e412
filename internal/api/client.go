// Package api is the HTTP client for the refinery backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"refinery/internal/session"
)

// UserHeader carries the opaque user identity on every request.
const UserHeader = "X-User-ID"

const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is ignored when set
	Logger     *zap.Logger
}

// Client implements session.Backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

var _ session.Backend = (*Client)(nil)

// NewClient creates a client for the backend at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		log:        log,
	}, nil
}

type contentRequest struct {
	Content string `json:"content"`
}

type createResponse struct {
	ChatID          flexibleID `json:"chat_id"`
	OptimizedPrompt *string    `json:"optimized_prompt"`
}

type historyMessage struct {
	ID      flexibleID `json:"id"`
	Role    string     `json:"role"`
	Content string     `json:"content"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

type chatSummary struct {
	ID        flexibleID `json:"id"`
	Title     string     `json:"title"`
	CreatedAt string     `json:"created_at"`
}

type listResponse struct {
	Chats []chatSummary `json:"chats"`
}

// CreateChat starts a conversation with its first message.
func (c *Client) CreateChat(ctx context.Context, user session.UserID, content string) (session.Created, error) {
	const op = "create chat"
	var resp createResponse
	if err := c.do(ctx, op, http.MethodPost, "/chat", user, contentRequest{Content: content}, &resp); err != nil {
		return session.Created{}, err
	}
	if resp.ChatID == "" {
		return session.Created{}, connectivity(op, http.StatusOK, "response has no chat_id", nil)
	}
	if resp.OptimizedPrompt == nil {
		return session.Created{}, connectivity(op, http.StatusOK, "response has no optimized_prompt", nil)
	}
	return session.Created{ID: session.ChatID(resp.ChatID), Content: *resp.OptimizedPrompt}, nil
}

// ContinueChat appends a message to an existing conversation.
func (c *Client) ContinueChat(ctx context.Context, user session.UserID, id session.ChatID, content string) (string, error) {
	const op = "continue chat"
	var resp createResponse
	path := "/chat/" + url.PathEscape(string(id)) + "/message"
	if err := c.do(ctx, op, http.MethodPost, path, user, contentRequest{Content: content}, &resp); err != nil {
		return "", err
	}
	if resp.OptimizedPrompt == nil {
		return "", connectivity(op, http.StatusOK, "response has no optimized_prompt", nil)
	}
	return *resp.OptimizedPrompt, nil
}

// ChatHistory returns the ordered messages of a conversation.
func (c *Client) ChatHistory(ctx context.Context, user session.UserID, id session.ChatID) ([]session.Message, error) {
	const op = "fetch history"
	var resp historyResponse
	if err := c.do(ctx, op, http.MethodGet, "/chat/"+url.PathEscape(string(id)), user, nil, &resp); err != nil {
		return nil, err
	}

	msgs := make([]session.Message, 0, len(resp.Messages))
	for i, m := range resp.Messages {
		role := session.Role(m.Role)
		if role != session.RoleUser && role != session.RoleAssistant {
			return nil, connectivity(op, http.StatusOK, fmt.Sprintf("message %d has unknown role %q", i, m.Role), nil)
		}
		msgs = append(msgs, session.Message{ID: string(m.ID), Role: role, Content: m.Content})
	}
	return msgs, nil
}

// ListChats returns the user's conversation summaries in backend order.
func (c *Client) ListChats(ctx context.Context, user session.UserID) ([]session.Summary, error) {
	const op = "list chats"
	var resp listResponse
	if err := c.do(ctx, op, http.MethodGet, "/chats", user, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]session.Summary, 0, len(resp.Chats))
	for _, ch := range resp.Chats {
		out = append(out, session.Summary{
			ID:        session.ChatID(ch.ID),
			Title:     ch.Title,
			CreatedAt: parseTime(ch.CreatedAt),
		})
	}
	return out, nil
}

// do performs one request and decodes a successful body into out.
func (c *Client) do(ctx context.Context, op, method, path string, user session.UserID, body, out any) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(UserHeader, string(user))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return connectivity(op, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return connectivity(op, resp.StatusCode, "failed to read response", err)
	}
	c.log.Debug("request done",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	// An explicit error payload wins over the status code.
	var env envelope
	if json.Unmarshal(data, &env) == nil {
		if msg, failed := env.failure(); failed {
			return service(op, resp.StatusCode, msg)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.detailText()
		if msg == "" {
			msg = snippet(data)
		}
		return connectivity(op, resp.StatusCode, msg, nil)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return connectivity(op, resp.StatusCode, "malformed response", err)
	}
	return nil
}

// envelope captures the error fields any response may carry. error is a
// string or, from unhandled-exception responses, a boolean next to detail.
type envelope struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func (e envelope) failure() (string, bool) {
	if len(e.Error) == 0 {
		return "", false
	}
	var s string
	if json.Unmarshal(e.Error, &s) == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	var b bool
	if json.Unmarshal(e.Error, &b) == nil && b {
		msg := e.detailText()
		if msg == "" {
			msg = "unspecified backend error"
		}
		return msg, true
	}
	return "", false
}

func (e envelope) detailText() string {
	if len(e.Detail) == 0 || string(e.Detail) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(e.Detail, &s) == nil {
		return s
	}
	return string(e.Detail)
}

// flexibleID accepts ids encoded as strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("id must be a string or a number")
		}
		*f = flexibleID(n.String())
		return nil
	}
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
