// Package html implements the fetcher.html module: it retrieves a page
// and extracts items with a CSS selector.
package html

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/fetch"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/watch"
)

func init() {
	core.RegisterModule(&Fetcher{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Fetcher)(nil)
	_ core.Provisioner  = (*Fetcher)(nil)
	_ core.Validator    = (*Fetcher)(nil)
	_ fetch.Backend     = (*Fetcher)(nil)
	_ watch.Fetcher     = (*Fetcher)(nil)
)

// Fetcher is the default fetch backend. It handles every selector that no
// other backend claims.
type Fetcher struct {
	config Config
	client *fetch.Client
	logger *slog.Logger
}

// New creates a Fetcher without the module lifecycle.
func New(cfg Config, client *fetch.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{config: cfg, client: client, logger: logger}
}

// ModuleInfo implements core.Module.
func (f *Fetcher) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "fetcher.html",
		New: func() core.Module { return &Fetcher{} },
	}
}

// Configure implements core.Configurable.
func (f *Fetcher) Configure(node *yaml.Node) error {
	if err := node.Decode(&f.config); err != nil {
		return fmt.Errorf("html: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (f *Fetcher) Provision(ctx *core.AppContext) error {
	f.logger = ctx.Logger

	filter, _ := ctx.GetService(security.URLFilterService)
	audit, _ := ctx.GetService(security.AuditService)
	cfg := fetch.ClientConfig{
		Timeout:      f.config.Timeout,
		UserAgent:    f.config.UserAgent,
		MaxBodyBytes: f.config.MaxBodyBytes,
	}
	cfg.Filter, _ = filter.(*security.URLFilter)
	cfg.Audit, _ = audit.(*security.AuditLogger)
	f.client = fetch.NewClient(cfg)

	ctx.RegisterService(fetch.ServiceName("html"), f)
	return nil
}

// Validate implements core.Validator.
func (f *Fetcher) Validate() error {
	return f.config.validate()
}

// SelectorPrefix implements fetch.Backend.
func (f *Fetcher) SelectorPrefix() string { return "" }

// FetchItems implements watch.Fetcher.
func (f *Fetcher) FetchItems(ctx context.Context, url, selector string) ([]string, error) {
	page, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	items, err := Extract(page.Body, page.URL, selector, f.config.TextOnly)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("page extracted", "url", url, "selector", selector, "items", len(items))
	return items, nil
}
