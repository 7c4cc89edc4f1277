package app

import (
	"context"
	"fmt"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/internal/config"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/fetch"
	"github.com/flemzord/sitewatch/internal/reload"
	"github.com/flemzord/sitewatch/pkg/message"
)

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so the periodic driver participates in
// the App lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
	handle    *cron.Handle
	cancel    context.CancelFunc
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron.scheduler"}
}

func (m *schedulerModule) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := m.scheduler.RunOnInterval(ctx)
	if err != nil {
		cancel()
		return err
	}
	m.handle = h
	m.cancel = cancel
	return nil
}

// Stop lets in-flight passes finish before cancelling their context.
func (m *schedulerModule) Stop(ctx context.Context) error {
	if m.handle == nil {
		return nil
	}
	err := m.handle.Stop(ctx)
	m.cancel()
	return err
}

// reloadModule runs the configuration watcher inside the App lifecycle.
type reloadModule struct {
	reloader *reload.Reloader
}

func (m *reloadModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "config.reload"}
}

func (m *reloadModule) Start() error {
	m.reloader.Start(context.Background())
	return nil
}

func (m *reloadModule) Stop(context.Context) error {
	m.reloader.Stop()
	return nil
}

// buildFetchMux registers the backend every loaded fetcher module
// published as fetch.ServiceName(name) with a new Mux.
func buildFetchMux(appCtx *core.AppContext, ids []string) (*fetch.Mux, error) {
	mux := fetch.NewMux()
	for _, mid := range namespaceIDs(ids, "fetcher") {
		b, err := core.ServiceAs[fetch.Backend](appCtx, fetch.ServiceName(mid.Name()))
		if err != nil {
			return nil, fmt.Errorf("fetcher %s: %w", mid, err)
		}
		if err := mux.Handle(b); err != nil {
			return nil, fmt.Errorf("registering fetcher %s: %w", mid, err)
		}
	}
	if len(mux.Prefixes()) == 0 {
		return nil, fmt.Errorf("no fetcher module configured")
	}
	return mux, nil
}

// buildDispatcher registers every channel published as
// channel.ServiceName(name) under its short name ("telegram"), which is
// the prefix job channel IDs use.
func buildDispatcher(appCtx *core.AppContext, ids []string, notify config.NotifyConfig) (*channel.Dispatcher, error) {
	defaultChannel := notify.DefaultChannel
	dispatcher := channel.NewDispatcher(defaultChannel)
	for _, mid := range namespaceIDs(ids, "channel") {
		ch, err := core.ServiceAs[channel.Channel](appCtx, channel.ServiceName(mid.Name()))
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", mid, err)
		}
		if err := dispatcher.Register(mid.Name(), ch); err != nil {
			return nil, fmt.Errorf("registering channel %s: %w", mid, err)
		}
	}
	if len(dispatcher.Channels()) == 0 {
		return nil, fmt.Errorf("no channel module configured")
	}
	if h, ok := notifyHints(notify); ok {
		dispatcher.SetHints(h)
	}
	if defaultChannel != "" {
		if _, ok := dispatcher.Get(defaultChannel); !ok {
			return nil, fmt.Errorf("notify.default_channel %q is not a configured channel", defaultChannel)
		}
	}
	return dispatcher, nil
}

func namespaceIDs(ids []string, ns string) []core.ModuleID {
	var out []core.ModuleID
	for _, id := range ids {
		if mid := core.ModuleID(id); mid.Namespace() == ns {
			out = append(out, mid)
		}
	}
	return out
}

// notifyHints returns the delivery hints set in the notify section, and
// false when there are none.
func notifyHints(cfg config.NotifyConfig) (message.OutboundHints, bool) {
	h := message.OutboundHints{
		DisablePreview:      cfg.DisablePreview,
		DisableNotification: cfg.Silent,
	}
	return h, h != message.OutboundHints{}
}
