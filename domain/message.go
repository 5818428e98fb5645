package domain

import (
	"time"

	"github.com/google/uuid"
)

// PostponedMessage is a room message addressed to a member who was absent
// when it was sent. It stays in the store until exactly one delivery
// consumes it.
//
// Recipient holds whatever name the sender typed, possibly abbreviated.
// A message is deliverable to any present nickname that Recipient is a
// case-insensitive prefix of.
type PostponedMessage struct {
	ID        uuid.UUID
	Room      RoomIdentity
	Sender    string
	Recipient string
	Body      string
	CreatedAt time.Time
}
