package event

import (
	"time"

	"kitbot/domain"
)

// Signal names extensions can subscribe to.
const (
	GroupChatReceived = "groupchat-received"
	UserJoinedRoom    = "user-joined-room"

	// TopicChanged is reserved: sessions log topic changes but do not
	// publish them yet.
	TopicChanged = "topic-changed"
)

type Event interface {
	Room() domain.RoomIdentity
}

// GroupChat is published for every plain room message. Action messages
// ("/me ...") are logged but never published.
type GroupChat struct {
	Identity domain.RoomIdentity
	Sender   string
	Body     string
	At       time.Time
}

func (e GroupChat) Room() domain.RoomIdentity { return e.Identity }

// UserJoined is published when a member appears in the room.
type UserJoined struct {
	Identity domain.RoomIdentity
	Nick     string
	At       time.Time
}

func (e UserJoined) Room() domain.RoomIdentity { return e.Identity }

// Topic carries a subject change. Kept for the reserved TopicChanged
// signal.
type Topic struct {
	Identity domain.RoomIdentity
	Body     string
	At       time.Time
}

func (e Topic) Room() domain.RoomIdentity { return e.Identity }
