package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/internal/channel/channeltest"
	"github.com/flemzord/sitewatch/internal/config"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/fetch"
)

type stubBackend struct{ prefix string }

func (s stubBackend) SelectorPrefix() string { return s.prefix }

func (s stubBackend) FetchItems(_ context.Context, _, selector string) ([]string, error) {
	return []string{s.prefix + selector}, nil
}

func newWireContext() *core.AppContext {
	return core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), "")
}

func TestBuildFetchMux_FromServices(t *testing.T) {
	t.Parallel()

	appCtx := newWireContext()
	appCtx.RegisterService(fetch.ServiceName("html"), stubBackend{prefix: ""})
	appCtx.RegisterService(fetch.ServiceName("feed"), stubBackend{prefix: "feed:"})

	mux, err := buildFetchMux(appCtx, []string{"store.sqlite", "fetcher.feed", "fetcher.html", "channel.telegram"})
	if err != nil {
		t.Fatalf("buildFetchMux: %v", err)
	}
	items, err := mux.FetchItems(context.Background(), "u", "feed:title")
	if err != nil || len(items) != 1 || items[0] != "feed:title" {
		t.Errorf("FetchItems(feed:title) = %q, %v", items, err)
	}
}

func TestBuildFetchMux_Errors(t *testing.T) {
	t.Parallel()

	if _, err := buildFetchMux(newWireContext(), []string{"fetcher.html"}); err == nil {
		t.Error("expected error for a fetcher that published no backend")
	}
	if _, err := buildFetchMux(newWireContext(), []string{"store.sqlite"}); err == nil {
		t.Error("expected error without fetchers")
	}
}

func TestBuildDispatcher_AppliesNotifyHints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		notify        config.NotifyConfig
		wantHints     bool
		wantSilent    bool
		wantNoPreview bool
	}{
		{name: "none", notify: config.NotifyConfig{}},
		{name: "silent", notify: config.NotifyConfig{Silent: true}, wantHints: true, wantSilent: true},
		{name: "no preview", notify: config.NotifyConfig{DisablePreview: true}, wantHints: true, wantNoPreview: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := channeltest.NewMockChannel()
			appCtx := newWireContext()
			appCtx.RegisterService(channel.ServiceName("telegram"), mock)

			d, err := buildDispatcher(appCtx, []string{"channel.telegram"}, tt.notify)
			if err != nil {
				t.Fatalf("buildDispatcher: %v", err)
			}
			if err := d.Send(context.Background(), "telegram:42", "hello"); err != nil {
				t.Fatalf("Send: %v", err)
			}

			sent := mock.Sent()
			if len(sent) != 1 {
				t.Fatalf("sent %d messages, want 1", len(sent))
			}
			h := sent[0].Hints
			if (h != nil) != tt.wantHints {
				t.Fatalf("hints = %+v, want set=%v", h, tt.wantHints)
			}
			if h != nil && (h.DisableNotification != tt.wantSilent || h.DisablePreview != tt.wantNoPreview) {
				t.Errorf("hints = %+v", *h)
			}
		})
	}
}

func TestBuildDispatcher_UnknownDefault(t *testing.T) {
	t.Parallel()

	appCtx := newWireContext()
	appCtx.RegisterService(channel.ServiceName("telegram"), channeltest.NewMockChannel())

	_, err := buildDispatcher(appCtx, []string{"channel.telegram"}, config.NotifyConfig{DefaultChannel: "discord"})
	if err == nil {
		t.Error("expected error for an unknown default channel")
	}
}
