package channel

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/sitewatch/internal/watch"
	"github.com/flemzord/sitewatch/pkg/message"
)

// Dispatcher routes notifications to the correct registered channel.
// It implements watch.Notifier.
//
// A job channel ID is either "<channel>:<target>" where <channel> is a
// registered name, or a bare target delivered through the default channel.
// When no default is configured and exactly one channel is registered,
// that channel is the default.
type Dispatcher struct {
	mu             sync.RWMutex
	channels       map[string]Channel
	defaultChannel string
	hints          *message.OutboundHints
}

var _ watch.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates an empty Dispatcher. defaultChannel may be empty.
func NewDispatcher(defaultChannel string) *Dispatcher {
	return &Dispatcher{
		channels:       make(map[string]Channel),
		defaultChannel: defaultChannel,
	}
}

// SetHints attaches h to every message sent from now on.
func (d *Dispatcher) SetHints(h message.OutboundHints) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hints = &h
}

// Register adds a channel under the given name.
// Returns ErrDuplicateChannel if the name is already taken.
func (d *Dispatcher) Register(name string, ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	d.channels[name] = ch
	return nil
}

// Get returns the channel registered under name, or false if none.
func (d *Dispatcher) Get(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.channels[name]
	return ch, ok
}

// Channels returns the sorted names of all registered channels.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve maps a job channel ID to a channel name, its target and the
// channel itself.
func (d *Dispatcher) Resolve(channelID string) (string, string, Channel, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	channelID = strings.TrimSpace(channelID)
	if name, target, ok := strings.Cut(channelID, ":"); ok {
		if ch, found := d.channels[name]; found {
			if target == "" {
				return "", "", nil, fmt.Errorf("%w: %q", ErrEmptyTarget, channelID)
			}
			return name, target, ch, nil
		}
	}

	if channelID == "" {
		return "", "", nil, ErrEmptyTarget
	}
	name := d.defaultName()
	if name == "" {
		return "", "", nil, fmt.Errorf("%w: %q has no channel prefix and no default is set", ErrNoChannel, channelID)
	}
	ch, ok := d.channels[name]
	if !ok {
		return "", "", nil, fmt.Errorf("%w: default %s", ErrNoChannel, name)
	}
	return name, channelID, ch, nil
}

// defaultName must be called with mu held.
func (d *Dispatcher) defaultName() string {
	if d.defaultChannel != "" {
		return d.defaultChannel
	}
	if len(d.channels) == 1 {
		for name := range d.channels {
			return name
		}
	}
	return ""
}

// Send implements watch.Notifier.
func (d *Dispatcher) Send(ctx context.Context, channelID, text string) error {
	name, target, ch, err := d.Resolve(channelID)
	if err != nil {
		return err
	}

	msg := message.NewTextMessage(name, target, text)
	d.mu.RLock()
	if d.hints != nil {
		msg = msg.WithHints(*d.hints)
	}
	d.mu.RUnlock()

	if err := ch.Send(ctx, msg); err != nil {
		return fmt.Errorf("channel: %s: %w", name, err)
	}
	return nil
}
