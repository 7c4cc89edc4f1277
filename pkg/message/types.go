// Package message defines the platform-agnostic outbound message passed
// from the notification dispatcher to a concrete channel.
package message

// OutboundMessage is a text notification addressed to one target on one
// channel.
type OutboundMessage struct {
	// Channel is the channel name, e.g. "telegram".
	Channel string `json:"channel"`
	// Target is the platform-specific destination (chat ID, channel ID).
	Target string `json:"target"`
	// Text uses the light markup produced by the watch engine: **bold**
	// spans and newline-separated lines.
	Text  string         `json:"text"`
	Hints *OutboundHints `json:"hints,omitempty"`
}

// OutboundHints carries optional delivery hints for channels.
// Zero value means no hints are set.
type OutboundHints struct {
	DisablePreview      bool `json:"disable_preview,omitempty"`
	DisableNotification bool `json:"disable_notification,omitempty"`
}

// NewTextMessage creates an outbound message without hints.
func NewTextMessage(channel, target, text string) OutboundMessage {
	return OutboundMessage{Channel: channel, Target: target, Text: text}
}

// WithHints returns a copy of m carrying h.
func (m OutboundMessage) WithHints(h OutboundHints) OutboundMessage {
	m.Hints = &h
	return m
}

// PreviewDisabled reports whether link previews should be suppressed.
func (m OutboundMessage) PreviewDisabled() bool {
	return m.Hints != nil && m.Hints.DisablePreview
}

// Silent reports whether the message should be delivered without a
// notification sound.
func (m OutboundMessage) Silent() bool {
	return m.Hints != nil && m.Hints.DisableNotification
}
