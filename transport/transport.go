// Package transport defines the black-box boundary to the wire-level chat
// protocol. Sessions only ever see the typed events below; how they were
// carried is the adapter's business.
package transport

import "context"

// Event is a protocol event delivered by a transport, in arrival order.
type Event interface {
	isEvent()
}

// Connected reports the transport is ready for the join handshake.
type Connected struct{}

// Disconnected ends the stream. Err is nil on a clean close.
type Disconnected struct {
	Err error
}

// GroupMessage is a message posted to the room.
type GroupMessage struct {
	Sender string
	Body   string
}

// Subject is a room topic change.
type Subject struct {
	Body string
}

// UserJoined reports a member appearing in the room.
type UserJoined struct {
	Nick string
}

// UserLeft reports a member leaving the room.
type UserLeft struct {
	Nick string
}

func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (GroupMessage) isEvent() {}
func (Subject) isEvent()      {}
func (UserJoined) isEvent()   {}
func (UserLeft) isEvent()     {}

// Transport is one room's connection. Events delivers protocol events
// sequentially until the connection drops; the channel is closed after a
// Disconnected event.
type Transport interface {
	// Join requests room membership under the session nickname,
	// presenting password first when it is non-empty.
	Join(ctx context.Context, password string) error
	// SendGroupMessage posts text to the room. Failures are returned to
	// the caller, never swallowed.
	SendGroupMessage(ctx context.Context, text string) error
	Events() <-chan Event
	Close() error
}

// Dialer establishes a fresh Transport. Sessions redial through it after
// a drop.
type Dialer func(ctx context.Context) (Transport, error)
