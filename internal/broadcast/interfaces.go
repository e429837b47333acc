// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package broadcast

//go:generate mockgen -source=interfaces.go -destination=../mock/broadcast_medium_mock.go -package=mock

// Handler receives messages sent by other participants of a channel.
type Handler func(message []byte)

// Medium is a named, same-origin message channel shared by every tab of a
// session. Delivery is best effort and FIFO per sender; a participant never
// receives its own messages.
type Medium interface {
	// Send publishes message to the other participants.
	Send(message []byte) error

	// OnMessage sets the handler for inbound messages, replacing any previous
	// one. A nil handler drops inbound messages.
	OnMessage(handler Handler)

	// Close leaves the channel. Further Send calls return ErrMediumClosed.
	Close() error
}
