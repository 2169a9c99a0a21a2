package ipc

import "errors"

var (
	// ErrChannelClosed is delivered to every request still pending when a channel closes.
	ErrChannelClosed = errors.New("ipc: channel closed")

	// ErrNoReply is returned by Request when its context ends before the reply arrives.
	ErrNoReply = errors.New("ipc: no reply")
)
