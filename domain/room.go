package domain

import "fmt"

// RoomIdentity identifies one joined chat room. It is immutable once a
// session starts and keys both the log file and the postponed queue
// partition.
type RoomIdentity struct {
	Host string
	Room string
	Nick string
}

// Key returns the stable storage key for the room, in user@host form.
func (r RoomIdentity) Key() string {
	return fmt.Sprintf("%s@%s", r.Room, r.Host)
}

// LogBase returns the base log file name for the room.
func (r RoomIdentity) LogBase() string {
	return r.Room + ".log"
}

func (r RoomIdentity) String() string {
	return fmt.Sprintf("%s@%s/%s", r.Room, r.Host, r.Nick)
}
