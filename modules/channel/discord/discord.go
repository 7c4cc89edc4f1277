// Package discord implements the channel.discord module: it posts job
// notifications to Discord text channels through the REST API.
//
// Notification markup is Discord-native (**bold**), so text is sent as is,
// split at line boundaries into messages of at most 2000 characters.
// Mentions in content never ping anyone.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/pkg/message"
)

// Name is the channel name used in job channel IDs ("discord:<id>").
const Name = "discord"

func init() {
	core.RegisterModule(&Discord{})
}

// Compile-time interface guards.
var (
	_ channel.Channel   = (*Discord)(nil)
	_ core.Configurable = (*Discord)(nil)
	_ core.Provisioner  = (*Discord)(nil)
	_ core.Validator    = (*Discord)(nil)
)

// Discord delivers notifications to Discord channels.
type Discord struct {
	config    Config
	client    *Client
	logger    *slog.Logger
	allowList *channel.AllowList
	audit     *security.AuditLogger
}

// New creates a Discord channel without the module lifecycle. cfg must
// already carry its defaults.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Discord{config: cfg, logger: logger}
	d.init()
	return d
}

func (d *Discord) init() {
	limiter := rate.NewLimiter(rate.Limit(d.config.RatePerSecond), d.config.Burst)
	d.client = NewClient(d.config.Token, d.config.APIURL, d.config.Timeout, limiter)
	d.allowList = channel.NewAllowList(d.config.AllowTargets)
}

// ModuleInfo implements core.Module.
func (d *Discord) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel." + Name,
		New: func() core.Module { return &Discord{} },
	}
}

// Configure implements core.Configurable.
func (d *Discord) Configure(node *yaml.Node) error {
	if err := node.Decode(&d.config); err != nil {
		return fmt.Errorf("discord: decode config: %w", err)
	}
	d.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (d *Discord) Provision(ctx *core.AppContext) error {
	d.logger = ctx.Logger
	d.init()

	if r, err := core.ServiceAs[*security.Redactor](ctx, security.RedactorService); err == nil {
		r.AddLiteral(d.config.Token)
	}
	if a, err := core.ServiceAs[*security.AuditLogger](ctx, security.AuditService); err == nil {
		d.audit = a
	}

	ctx.RegisterService(channel.ServiceName(Name), d)
	return nil
}

// Validate implements core.Validator.
func (d *Discord) Validate() error {
	return d.config.validate()
}

// Send implements channel.Channel.
func (d *Discord) Send(ctx context.Context, msg message.OutboundMessage) error {
	target := strings.TrimSpace(msg.Target)
	if target == "" {
		return channel.ErrEmptyTarget
	}
	if !isSnowflake(target) {
		return fmt.Errorf("discord: target %q is not a channel ID", target)
	}
	if !d.allowList.Allows(target) {
		d.audit.Log(security.AuditEvent{
			Type:      security.EventDeliveryDenied,
			ChannelID: Name + ":" + target,
		})
		return fmt.Errorf("%w: %s", channel.ErrDenied, target)
	}

	req := CreateMessageRequest{AllowedMentions: &AllowedMentions{Parse: []string{}}}
	if d.config.SuppressEmbeds || msg.PreviewDisabled() {
		req.Flags |= FlagSuppressEmbeds
	}
	if d.config.Silent || msg.Silent() {
		req.Flags |= FlagSuppressNotifications
	}

	chunks := channel.SplitText(msg.Text, maxContentLength)
	for i, chunk := range chunks {
		req.Content = chunk
		if _, err := d.client.CreateMessage(ctx, target, req); err != nil {
			return fmt.Errorf("discord: send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	d.logger.Debug("discord message sent", "target", target, "chunks", len(chunks))
	return nil
}

// isSnowflake reports whether s looks like a Discord ID.
func isSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
