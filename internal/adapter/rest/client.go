package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketlive/internal/domain/entity"
	"marketlive/internal/infrastructure/auth"
	"marketlive/internal/metrics"
	apperrors "marketlive/pkg/errors"
)

// envelope mirrors the backend's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorInfo      `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client wraps the marketplace backend's REST surface consumed by the engine:
// message history, message posting, mark-read and the transactions list.
type Client struct {
	baseURL string
	http    *http.Client
	session *auth.Session
}

func NewClient(baseURL string, session *auth.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
}

// FetchMessages returns a conversation's full message history, tagged with
// the fetched origin.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]entity.Message, error) {
	var msgs []entity.Message
	err := c.do(ctx, "fetch_messages", http.MethodGet,
		"/v1/conversations/"+conversationID+"/messages", nil, &msgs)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Origin = entity.OriginFetched
	}
	return msgs, nil
}

type postMessageRequest struct {
	Body string `json:"body"`
}

// PostMessage submits a new message. The backend echoes it over the push
// channel; the response body carries no message identity the engine uses.
func (c *Client) PostMessage(ctx context.Context, conversationID, body string) error {
	return c.do(ctx, "post_message", http.MethodPost,
		"/v1/conversations/"+conversationID+"/messages",
		postMessageRequest{Body: body}, nil)
}

// MarkRead tells the backend all currently visible messages are read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, "mark_read", http.MethodPut,
		"/v1/conversations/"+conversationID+"/read", nil, nil)
}

// FetchTransactions returns the user's transactions list for one partition.
func (c *Client) FetchTransactions(ctx context.Context, archived bool) ([]entity.TransactionSummary, error) {
	var items []entity.TransactionSummary
	err := c.do(ctx, "fetch_transactions", http.MethodGet,
		"/v1/transactions?archived="+strconv.FormatBool(archived), nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Internal("failed to encode request", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Internal("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RESTRequests.WithLabelValues(op, "error").Inc()
		return apperrors.Network("request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RESTRequests.WithLabelValues(op, "error").Inc()
		return apperrors.Network("failed to read response", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.RESTRequests.WithLabelValues(op, "error").Inc()
		return apperrors.Network("malformed response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		metrics.RESTRequests.WithLabelValues(op, "denied").Inc()
		return apperrors.AuthRequired(envMessage(env, "authentication required"), nil)
	}
	if resp.StatusCode >= 400 || !env.Success {
		metrics.RESTRequests.WithLabelValues(op, "error").Inc()
		code := "NETWORK"
		if env.Error != nil && env.Error.Code != "" {
			code = env.Error.Code
		}
		return apperrors.New(code, envMessage(env, "request rejected"), resp.StatusCode, nil)
	}

	metrics.RESTRequests.WithLabelValues(op, "ok").Inc()

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperrors.Network("malformed response data", err)
		}
	}
	return nil
}

func envMessage(env envelope, fallback string) string {
	if env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return fallback
}
