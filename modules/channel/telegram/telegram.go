package telegram

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

// Name is the channel name used in job channel IDs ("telegram:<chat>").
const Name = "telegram"

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ channel.Channel   = (*Telegram)(nil)
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
)

// Telegram delivers notifications through the Telegram Bot API.
type Telegram struct {
	config    Config
	client    *Client
	logger    *slog.Logger
	allowList *channel.AllowList
	audit     *security.AuditLogger
	botUser   *User
}

// New creates a Telegram channel without the module lifecycle. cfg must
// already carry its defaults.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Telegram{config: cfg, logger: logger}
	t.init()
	return t
}

func (t *Telegram) init() {
	limiter := rate.NewLimiter(rate.Limit(t.config.RatePerSecond), t.config.Burst)
	t.client = NewClient(t.config.Token, t.config.APIURL, t.config.Timeout, limiter)
	t.allowList = channel.NewAllowList(t.config.AllowTargets)
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel." + Name,
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.logger = ctx.Logger
	t.init()

	if r, err := core.ServiceAs[*security.Redactor](ctx, security.RedactorService); err == nil {
		r.AddLiteral(t.config.Token)
	}
	if a, err := core.ServiceAs[*security.AuditLogger](ctx, security.AuditService); err == nil {
		t.audit = a
	}

	ctx.RegisterService(channel.ServiceName(Name), t)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	return t.config.validate()
}

// Start implements core.Starter. It checks the bot token with getMe unless
// skip_verify is set.
func (t *Telegram) Start() error {
	if t.config.SkipVerify {
		return nil
	}
	user, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated", "id", user.ID, "username", user.Username)
	return nil
}

// BotUser returns the bot identity resolved at start, or nil.
func (t *Telegram) BotUser() *User {
	return t.botUser
}

// Send implements channel.Channel. Long messages are delivered as several
// consecutive chunks; the first failing chunk aborts the rest.
func (t *Telegram) Send(ctx context.Context, msg message.OutboundMessage) error {
	target := strings.TrimSpace(msg.Target)
	if target == "" {
		return channel.ErrEmptyTarget
	}
	if !t.allowList.Allows(target) {
		t.audit.Log(security.AuditEvent{
			Type:      security.EventDeliveryDenied,
			ChannelID: Name + ":" + target,
		})
		return fmt.Errorf("%w: %s", channel.ErrDenied, target)
	}

	chunks := formatChunks(msg.Text, t.config.MaxMessageLength)
	for i, chunk := range chunks {
		_, err := t.client.SendMessage(ctx, SendMessageRequest{
			ChatID:                ChatID(target),
			Text:                  chunk,
			ParseMode:             "MarkdownV2",
			DisableWebPagePreview: t.config.DisablePreview || msg.PreviewDisabled(),
			DisableNotification:   t.config.Silent || msg.Silent(),
		})
		if err != nil {
			return fmt.Errorf("telegram: send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	t.logger.Debug("telegram message sent", "target", target, "chunks", len(chunks))
	return nil
}
