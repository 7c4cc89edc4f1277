// Package gateway provides the admin HTTP server: health, Prometheus
// metrics, status, and the job management API. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/metrics"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/watch"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// JobRegistry is the subset of *watch.Registry the API drives.
type JobRegistry interface {
	All() []watch.Job
	Get(guildID, name string) (watch.Job, bool)
	Create(ctx context.Context, def watch.Definition) (watch.Job, error)
	SetActive(ctx context.Context, guildID, name string, active bool) error
}

// pinger is implemented by stores that can report their health.
type pinger interface {
	Ping(ctx context.Context) error
}

// channelLister is implemented by the notification dispatcher.
type channelLister interface {
	Channels() []string
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it, and it resolves everything it serves from the service
// registry at Start.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	audit   *security.AuditLogger
	limiter *rate.Limiter

	mu        sync.Mutex
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	jobs      JobRegistry
	store     pinger
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	channels  channelLister
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.config.defaults()
	g.limiter = rate.NewLimiter(rate.Limit(g.config.Auth.RatePerSecond), g.config.Auth.Burst)

	if a, err := core.ServiceAs[*security.AuditLogger](ctx, security.AuditService); err == nil {
		g.audit = a
	}
	if r, err := core.ServiceAs[*security.Redactor](ctx, security.RedactorService); err == nil {
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if (g.config.Auth.BasicUser == "") != (g.config.Auth.BasicPass == "") {
		return errors.New("gateway: basic_user and basic_pass must be set together")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()

	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway auth not configured, admin API disabled")
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	g.mu.Lock()
	g.addr = ln.Addr()
	g.startedAt = time.Now()
	g.mu.Unlock()

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Addr returns the listening address once started, or nil.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// resolveServices binds the optional collaborators. Missing services
// degrade the matching endpoints instead of failing the start.
func (g *Gateway) resolveServices() {
	if r, err := core.ServiceAs[JobRegistry](g.appCtx, watch.RegistryService); err == nil {
		g.jobs = r
	}
	if p, err := core.ServiceAs[pinger](g.appCtx, watch.StoreService); err == nil {
		g.store = p
	}
	if c, err := core.ServiceAs[*metrics.Collector](g.appCtx, metrics.CollectorService); err == nil {
		g.collector = c
	}
	if reg, err := core.ServiceAs[prometheus.Gatherer](g.appCtx, metrics.RegistryService); err == nil {
		g.gatherer = reg
	}
	if l, err := core.ServiceAs[channelLister](g.appCtx, watch.NotifierService); err == nil {
		g.channels = l
	}
}

func (g *Gateway) uptime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startedAt.IsZero() {
		return 0
	}
	return time.Since(g.startedAt)
}
