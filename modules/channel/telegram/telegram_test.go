package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/security/securitytest"
	"github.com/flemzord/sitewatch/pkg/message"
)

const testToken = "123456:ABC-DEF_ghijk"

// fakeAPI records sendMessage requests and answers getMe.
type fakeAPI struct {
	mu   sync.Mutex
	sent []SendMessageRequest
	fail bool
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + testToken + "/getMe":
			writeJSON(t, w, http.StatusOK, APIResponse[User]{OK: true, Result: User{ID: 7, IsBot: true, Username: "watch_bot"}})
		case "/bot" + testToken + "/sendMessage":
			var req SendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode sendMessage: %v", err)
			}
			f.mu.Lock()
			f.sent = append(f.sent, req)
			fail, n := f.fail, len(f.sent)
			f.mu.Unlock()
			if fail {
				writeJSON(t, w, http.StatusForbidden, APIResponse[any]{ErrorCode: 403, Description: "Forbidden: bot was kicked"})
				return
			}
			writeJSON(t, w, http.StatusOK, APIResponse[Message]{OK: true, Result: Message{MessageID: n}})
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeAPI) requests() []SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendMessageRequest(nil), f.sent...)
}

func newTestTelegram(t *testing.T, mutate func(*Config)) (*Telegram, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	cfg := Config{Token: testToken, APIURL: srv.URL, RatePerSecond: 30, Burst: 30}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.defaults()
	return New(cfg, nil), api
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Token: testToken}, ""},
		{"missing token", Config{}, "token is required"},
		{"bad token", Config{Token: "invalid-token"}, "token format"},
		{"bad api url", Config{Token: testToken, APIURL: "not-a-url"}, "api_url"},
		{"message too long", Config{Token: testToken, MaxMessageLength: 10000}, "max_message_length"},
		{"message too short", Config{Token: testToken, MaxMessageLength: 10}, "max_message_length"},
		{"rate too high", Config{Token: testToken, RatePerSecond: 100}, "rate_per_second"},
		{"negative burst", Config{Token: testToken, Burst: -1}, "burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.defaults()
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.defaults()
	if cfg.APIURL != defaultAPIURL || cfg.MaxMessageLength != 4096 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.RatePerSecond != defaultRatePerSecond || cfg.Burst != defaultBurst {
		t.Errorf("rate defaults = %g/%d", cfg.RatePerSecond, cfg.Burst)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	tg, api := newTestTelegram(t, nil)
	msg := message.NewTextMessage(Name, "-1001", "Job **news**:\nhttps://example.com/a")
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reqs := api.requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.ChatID != "-1001" || req.ParseMode != "MarkdownV2" {
		t.Errorf("request = %+v", req)
	}
	if want := "Job *news*:\nhttps://example\\.com/a"; req.Text != want {
		t.Errorf("text = %q, want %q", req.Text, want)
	}
	if req.DisableWebPagePreview || req.DisableNotification {
		t.Error("hints set without configuration")
	}
}

func TestSend_Hints(t *testing.T) {
	t.Parallel()

	tg, api := newTestTelegram(t, func(c *Config) { c.Silent = true })
	msg := message.NewTextMessage(Name, "@news", "hi").WithHints(message.OutboundHints{DisablePreview: true})
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	req := api.requests()[0]
	if req.ChatID != "@news" {
		t.Errorf("ChatID = %q", req.ChatID)
	}
	if !req.DisableWebPagePreview || !req.DisableNotification {
		t.Errorf("hints = preview %v, silent %v", req.DisableWebPagePreview, req.DisableNotification)
	}
}

func TestSend_Chunks(t *testing.T) {
	t.Parallel()

	tg, api := newTestTelegram(t, func(c *Config) { c.MaxMessageLength = 64 })
	lines := []string{"Job **news**:"}
	for range 10 {
		lines = append(lines, "https://example.com/item")
	}
	if err := tg.Send(context.Background(), message.NewTextMessage(Name, "42", strings.Join(lines, "\n"))); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reqs := api.requests()
	if len(reqs) < 2 {
		t.Fatalf("got %d requests, want several chunks", len(reqs))
	}
	if !strings.HasPrefix(reqs[0].Text, "Job *news*:") {
		t.Errorf("first chunk = %q", reqs[0].Text)
	}
	for _, r := range reqs {
		if len(r.Text) > 64 {
			t.Errorf("chunk of %d bytes exceeds limit", len(r.Text))
		}
	}
}

func TestSend_Denied(t *testing.T) {
	t.Parallel()

	tg, api := newTestTelegram(t, func(c *Config) { c.AllowTargets = []string{"42", "@News"} })
	audit, events := securitytest.NewTestAuditLogger()
	tg.audit = audit

	if err := tg.Send(context.Background(), message.NewTextMessage(Name, "@news", "ok")); err != nil {
		t.Fatalf("allowed target: %v", err)
	}
	err := tg.Send(context.Background(), message.NewTextMessage(Name, "99", "nope"))
	if !errors.Is(err, channel.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
	if n := len(api.requests()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	got := events()
	if len(got) != 1 || got[0].Type != security.EventDeliveryDenied || got[0].ChannelID != "telegram:99" {
		t.Errorf("audit events = %+v", got)
	}
}

func TestSend_Errors(t *testing.T) {
	t.Parallel()

	tg, api := newTestTelegram(t, nil)
	if err := tg.Send(context.Background(), message.NewTextMessage(Name, " ", "x")); !errors.Is(err, channel.ErrEmptyTarget) {
		t.Errorf("empty target err = %v", err)
	}

	api.mu.Lock()
	api.fail = true
	api.mu.Unlock()
	err := tg.Send(context.Background(), message.NewTextMessage(Name, "42", "x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 403 {
		t.Errorf("err = %v, want APIError 403", err)
	}
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	var node yaml.Node
	raw := "token: " + testToken + "\napi_url: " + srv.URL + "\nallow_targets: [\"42\"]\n"
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatal(err)
	}

	appCtx := core.NewAppContext(nil, t.TempDir())
	redactor := security.NewRedactor()
	appCtx.RegisterService(security.RedactorService, redactor)

	tg := &Telegram{}
	if err := tg.Configure(&node); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := tg.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := tg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := tg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tg.BotUser() == nil || tg.BotUser().Username != "watch_bot" {
		t.Errorf("BotUser = %+v", tg.BotUser())
	}

	svc, err := core.ServiceAs[channel.Channel](appCtx, channel.ServiceName(Name))
	if err != nil || svc != tg {
		t.Errorf("service = %v, %v", svc, err)
	}
	if got := redactor.Redact("key " + testToken); strings.Contains(got, testToken) {
		t.Errorf("token not registered with redactor: %q", got)
	}
}

func TestStart_BadToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, APIResponse[any]{ErrorCode: 401, Description: "Unauthorized"})
	}))
	defer srv.Close()

	cfg := Config{Token: testToken, APIURL: srv.URL}
	cfg.defaults()
	if err := New(cfg, nil).Start(); err == nil {
		t.Error("Start should fail on 401")
	}

	cfg.SkipVerify = true
	if err := New(cfg, nil).Start(); err != nil {
		t.Errorf("Start with skip_verify: %v", err)
	}
}
