// Package channel delivers watch notifications to messaging platforms.
// It provides the Channel interface, the Dispatcher that routes a job's
// channel ID to a concrete channel, message chunking, and target
// allow-lists.
package channel

import (
	"context"

	"github.com/flemzord/sitewatch/pkg/message"
)

// Channel is an outbound-only bridge to a messaging platform. Every
// concrete channel (Telegram, Discord, etc.) implements this interface and
// registers itself as a service named ServiceName(name).
type Channel interface {
	// Send delivers msg to msg.Target. Implementations split messages that
	// exceed the platform limit.
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// ServiceName returns the AppContext service name for the channel name.
func ServiceName(name string) string {
	return "channel." + name
}
