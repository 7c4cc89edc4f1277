// Package channeltest provides test doubles for the channel package.
package channeltest

import (
	"context"
	"sync"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/pkg/message"
)

// MockChannel is a test double that implements channel.Channel. It records
// sent messages.
type MockChannel struct {
	mu   sync.Mutex
	sent []message.OutboundMessage

	// SendFunc, if set, is called instead of the default recording behavior.
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error
}

// Compile-time interface guard.
var _ channel.Channel = (*MockChannel)(nil)

// NewMockChannel creates an empty MockChannel.
func NewMockChannel() *MockChannel {
	return &MockChannel{}
}

// Send records the outbound message. If SendFunc is set, it delegates to it.
func (m *MockChannel) Send(ctx context.Context, msg message.OutboundMessage) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *MockChannel) Sent() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.OutboundMessage(nil), m.sent...)
}
