package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRetries       = 3
	maxResponseBytes = 1 << 20
	userAgent        = "DiscordBot (https://github.com/flemzord/sitewatch, 1)"
)

// Message flags understood by the create message endpoint.
const (
	FlagSuppressEmbeds        = 1 << 2
	FlagSuppressNotifications = 1 << 12
)

// AllowedMentions controls which mentions in content ping anyone.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// CreateMessageRequest is the body of POST /channels/{id}/messages.
type CreateMessageRequest struct {
	Content         string           `json:"content"`
	Flags           int              `json:"flags,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// Message is the subset of a created message the sender reads back.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// APIError is an error body returned by the Discord REST API.
type APIError struct {
	Status     int     `json:"-"`
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after,omitempty"`
	Global     bool    `json:"global,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("discord: %d %s (retry after %.2fs)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("discord: %d %s (code %d)", e.Status, e.Message, e.Code)
}

// Client is a thin HTTP wrapper around the Discord REST API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	backoffUnit time.Duration
}

// NewClient creates a Discord REST client. A nil limiter disables
// client-side rate limiting.
func NewClient(token, baseURL string, timeout time.Duration, limiter *rate.Limiter) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		token:       token,
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		limiter:     limiter,
		backoffUnit: time.Second,
	}
}

// CreateMessage posts a message to a channel. A 429 is retried after the
// retry_after delay reported by Discord, up to maxRetries attempts.
func (c *Client) CreateMessage(ctx context.Context, channelID string, req CreateMessageRequest) (*Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("discord: marshal message: %w", err)
	}
	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)

	for attempt := range maxRetries {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("discord: create message: %w", err)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("discord: create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bot "+c.token)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("discord: create message: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("discord: read response: %w", err)
		}

		if resp.StatusCode < 300 {
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				return nil, fmt.Errorf("discord: decode message: %w", err)
			}
			return &msg, nil
		}

		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRetries-1 {
			return nil, apiErr
		}

		wait := c.backoffUnit << attempt
		if apiErr.RetryAfter > 0 {
			wait = time.Duration(apiErr.RetryAfter * float64(c.backoffUnit))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("discord: create message: max retries exceeded")
}
