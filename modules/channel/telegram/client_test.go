package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestClient(url string) *Client {
	c := NewClient("TOKEN", url, time.Second, nil)
	c.backoffUnit = time.Millisecond
	return c
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getMe" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		writeJSON(t, w, http.StatusOK, APIResponse[User]{
			OK:     true,
			Result: User{ID: 123, IsBot: true, FirstName: "Watcher", Username: "watch_bot"},
		})
	}))
	defer srv.Close()

	user, err := newTestClient(srv.URL).GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if user.ID != 123 || !user.IsBot || user.Username != "watch_bot" {
		t.Errorf("user = %+v", user)
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if raw["chat_id"] != float64(-1001) {
			t.Errorf("chat_id = %#v, want number -1001", raw["chat_id"])
		}
		if raw["parse_mode"] != "MarkdownV2" {
			t.Errorf("parse_mode = %v", raw["parse_mode"])
		}
		writeJSON(t, w, http.StatusOK, APIResponse[Message]{
			OK:     true,
			Result: Message{MessageID: 99, Chat: Chat{ID: -1001, Type: "channel"}, Text: "hello"},
		})
	}))
	defer srv.Close()

	msg, err := newTestClient(srv.URL).SendMessage(context.Background(), SendMessageRequest{
		ChatID:    "-1001",
		Text:      "hello",
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if msg.MessageID != 99 {
		t.Errorf("MessageID = %d, want 99", msg.MessageID)
	}
}

func TestChatID_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   ChatID
		want string
	}{
		{"42", `42`},
		{"-1001234567890", `-1001234567890`},
		{"@news", `"@news"`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.id)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", tt.id, err)
		}
		if string(got) != tt.want {
			t.Errorf("Marshal(%q) = %s, want %s", tt.id, got, tt.want)
		}

		var back ChatID
		if err := json.Unmarshal(got, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", got, err)
		}
		if back != tt.id {
			t.Errorf("round trip %q = %q", tt.id, back)
		}
	}

	var bad ChatID
	if err := json.Unmarshal([]byte(`true`), &bad); err == nil {
		t.Error("expected error for boolean chat_id")
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, APIResponse[any]{
			OK:          false,
			ErrorCode:   400,
			Description: "Bad Request: chat not found",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetMe(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 400 || apiErr.Description != "Bad Request: chat not found" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestRateLimitRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(t, w, http.StatusTooManyRequests, APIResponse[any]{
				ErrorCode:   429,
				Description: "Too Many Requests: retry after 1",
				Parameters:  &ResponseParameters{RetryAfter: 1},
			})
			return
		}
		writeJSON(t, w, http.StatusOK, APIResponse[User]{OK: true, Result: User{ID: 1}})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).GetMe(context.Background()); err != nil {
		t.Fatalf("GetMe() error after retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestRateLimitExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusTooManyRequests, APIResponse[any]{
			ErrorCode:   429,
			Description: "Too Many Requests",
			Parameters:  &ResponseParameters{RetryAfter: 1},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetMe(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter != 1 {
		t.Fatalf("err = %v, want APIError with retry_after", err)
	}
	if got := calls.Load(); got != maxRetries {
		t.Errorf("calls = %d, want %d", got, maxRetries)
	}
}

func TestContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusTooManyRequests, APIResponse[any]{
			ErrorCode:  429,
			Parameters: &ResponseParameters{RetryAfter: 60},
		})
	}))
	defer srv.Close()

	c := NewClient("TOKEN", srv.URL, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.GetMe(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).GetMe(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
