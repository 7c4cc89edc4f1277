package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrNoChannel indicates the channel ID names no registered channel and
	// no default channel applies.
	ErrNoChannel = errors.New("channel: unknown channel")

	// ErrDuplicateChannel indicates a channel with the same name is already
	// registered in the dispatcher.
	ErrDuplicateChannel = errors.New("channel: duplicate channel name")

	// ErrEmptyTarget indicates the channel ID carries no destination.
	ErrEmptyTarget = errors.New("channel: empty target")

	// ErrDenied indicates the target is not in the channel's allow-list.
	ErrDenied = errors.New("channel: target not allowed")
)
