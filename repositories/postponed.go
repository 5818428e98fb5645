//go:generate go run go.uber.org/mock/mockgen -source=postponed.go -destination=../mocks/mock_postponed_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"kitbot/domain"
)

// KeyPrefix namespaces postponed-message rows inside the shared store.
const KeyPrefix = "pm:"

type IPostponedRepository interface {
	Add(room domain.RoomIdentity, sender, recipient, body string) error
	TakeFor(room domain.RoomIdentity, presentNick string) ([]domain.PostponedMessage, error)
}

// PostponedRepository is the durable queue of messages waiting for an
// absent room member. Rows live in BadgerDB and survive restarts; joins
// arrive whenever the room decides, including right after one.
type PostponedRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPostponedRepository(db *badger.DB, log *slog.Logger) PostponedRepository {
	return PostponedRepository{db: db, log: log}
}

// Record is the stored row. Exported so inspection tooling can decode raw
// values without going through the repository.
type Record struct {
	ID        string `cbor:"id"`
	RoomKey   string `cbor:"room"`
	Sender    string `cbor:"sender"`
	Recipient string `cbor:"recipient"`
	Body      string `cbor:"body"`
	At        int64  `cbor:"at"`
}

// Add persists one postponed message.
// The key is formatted as "pm:{room_key}:{timestamp_padded}:{uuid}" to:
//  1. Ensure FIFO order per room using 19-digit zero padding
//     (lexicographical order of keys is insertion order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (r PostponedRepository) Add(room domain.RoomIdentity, sender, recipient, body string) error {
	at := time.Now().UTC()
	id := uuid.New()
	key := fmt.Sprintf("%s%s:%019d:%s", KeyPrefix, room.Key(), at.UnixNano(), id)

	bytes, err := cbor.Marshal(Record{
		ID:        id.String(),
		RoomKey:   room.Key(),
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		At:        at.UnixNano(),
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// TakeFor collects, deletes and returns every pending message for room
// whose stored recipient is a case-insensitive prefix of presentNick, in
// FIFO order.
//
// Collect and delete happen in one read-write transaction. Badger's SSI
// detects when two concurrent takes touched the same rows and aborts one
// with ErrConflict; the aborted take retries against the store state left
// by the winner, so no message is ever returned twice.
func (r PostponedRepository) TakeFor(room domain.RoomIdentity, presentNick string) ([]domain.PostponedMessage, error) {
	nick := strings.ToLower(presentNick)
	prefix := []byte(KeyPrefix + room.Key() + ":")

	for {
		var taken []domain.PostponedMessage
		err := r.db.Update(func(txn *badger.Txn) error {
			taken = nil
			var toDelete [][]byte

			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var rec Record
				err := item.Value(func(val []byte) error {
					return cbor.Unmarshal(val, &rec)
				})
				if err != nil {
					return err
				}
				if !strings.HasPrefix(nick, strings.ToLower(rec.Recipient)) {
					continue
				}
				msg, err := toMessage(room, rec)
				if err != nil {
					return err
				}
				taken = append(taken, msg)
				toDelete = append(toDelete, item.KeyCopy(nil))
			}
			it.Close()

			for _, key := range toDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err == badger.ErrConflict {
			r.log.Debug("Concurrent take detected, retrying", "room", room.Key(), "nick", presentNick)
			continue
		}
		if err != nil {
			return nil, err
		}
		return taken, nil
	}
}

func toMessage(room domain.RoomIdentity, rec Record) (domain.PostponedMessage, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.PostponedMessage{}, err
	}
	return domain.PostponedMessage{
		ID:        id,
		Room:      room,
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Body:      rec.Body,
		CreatedAt: time.Unix(0, rec.At).UTC(),
	}, nil
}

// Senders is a small helper for log lines: the distinct senders of a
// batch, in delivery order.
func Senders(messages []domain.PostponedMessage) []string {
	return lo.Uniq(lo.Map(messages, func(m domain.PostponedMessage, _ int) string {
		return m.Sender
	}))
}
