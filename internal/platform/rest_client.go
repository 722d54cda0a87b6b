package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

// RESTClient implements ChannelOps and TranscriptSink against the platform
// sidecar's HTTP API.
type RESTClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewRESTClient builds a client from platform config.
func NewRESTClient(cfg config.PlatformConfig, logger *zap.Logger) *RESTClient {
	return &RESTClient{
		baseURL: cfg.BaseURL,
		token:   cfg.BotToken,
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
		logger:  logger,
	}
}

func (c *RESTClient) CreateChannel(ctx context.Context, tenantID string, spec ChannelSpec) (string, error) {
	var resp struct {
		ChannelID string `json:"channel_id"`
	}
	path := fmt.Sprintf("/tenants/%s/channels", url.PathEscape(tenantID))
	if err := c.do(ctx, http.MethodPost, path, spec, &resp); err != nil {
		return "", err
	}
	return resp.ChannelID, nil
}

func (c *RESTClient) DeleteChannel(ctx context.Context, channelID, reason string) error {
	path := fmt.Sprintf("/channels/%s?reason=%s", url.PathEscape(channelID), url.QueryEscape(reason))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *RESTClient) RenderHistory(ctx context.Context, channelID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *RESTClient) GrantAccess(ctx context.Context, channelID, userID string) error {
	path := fmt.Sprintf("/channels/%s/permissions/%s", url.PathEscape(channelID), url.PathEscape(userID))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *RESTClient) LookupUserName(ctx context.Context, userID string) (string, error) {
	var resp struct {
		Username string `json:"username"`
	}
	path := fmt.Sprintf("/users/%s", url.PathEscape(userID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Username, nil
}

func (c *RESTClient) NotifyUser(ctx context.Context, userID, message string) error {
	body := map[string]string{"content": message}
	path := fmt.Sprintf("/users/%s/messages", url.PathEscape(userID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Publish sends the transcript document to the tenant's configured log
// surface and returns the platform's pointer to it.
func (c *RESTClient) Publish(ctx context.Context, tenantID string, record *domain.TranscriptRecord) (string, error) {
	body := map[string]any{
		"ticket_id":  record.TicketID,
		"body":       record.Body,
		"sha256":     record.SHA256,
		"size_bytes": record.SizeBytes,
	}
	var resp struct {
		MessageID string `json:"message_id"`
	}
	path := fmt.Sprintf("/tenants/%s/transcripts", url.PathEscape(tenantID))
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
