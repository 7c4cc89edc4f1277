// Package feed implements the fetcher.feed module: selectors of the form
// "feed:<field>" watch the entries of an RSS, Atom or JSON feed.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/fetch"
	"github.com/flemzord/sitewatch/internal/security"
)

// Prefix is the selector prefix claimed by this backend.
const Prefix = "feed:"

func init() {
	core.RegisterModule(&Fetcher{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Fetcher)(nil)
	_ core.Provisioner  = (*Fetcher)(nil)
	_ fetch.Backend     = (*Fetcher)(nil)
)

// Config holds the feed fetcher configuration.
type Config struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Fetcher extracts one field from every feed entry.
type Fetcher struct {
	config Config
	client *fetch.Client
	logger *slog.Logger
}

// New creates a Fetcher without the module lifecycle.
func New(client *fetch.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// ModuleInfo implements core.Module.
func (f *Fetcher) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "fetcher.feed",
		New: func() core.Module { return &Fetcher{} },
	}
}

// Configure implements core.Configurable.
func (f *Fetcher) Configure(node *yaml.Node) error {
	if err := node.Decode(&f.config); err != nil {
		return fmt.Errorf("feed: decode config: %w", err)
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

	ctx.RegisterService(fetch.ServiceName("feed"), f)
	return nil
}

// SelectorPrefix implements fetch.Backend.
func (f *Fetcher) SelectorPrefix() string { return Prefix }

// FetchItems implements watch.Fetcher. field is one of link (default),
// guid or title.
func (f *Fetcher) FetchItems(ctx context.Context, url, field string) ([]string, error) {
	pick, err := fieldFunc(field)
	if err != nil {
		return nil, err
	}

	page, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", url, err)
	}

	var items []string
	seen := make(map[string]struct{})
	for _, entry := range parsed.Items {
		value := strings.TrimSpace(pick(entry))
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		items = append(items, value)
	}
	f.logger.Debug("feed extracted", "url", url, "field", field, "items", len(items))
	return items, nil
}

func fieldFunc(field string) (func(*gofeed.Item) string, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "", "link":
		return func(it *gofeed.Item) string {
			if it.Link != "" {
				return it.Link
			}
			return it.GUID
		}, nil
	case "guid", "id":
		return func(it *gofeed.Item) string { return it.GUID }, nil
	case "title":
		return func(it *gofeed.Item) string { return it.Title }, nil
	default:
		return nil, fmt.Errorf("feed: unknown field %q (want link, guid or title)", field)
	}
}
