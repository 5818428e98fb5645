package repositories

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"kitbot/domain"
)

var room = domain.RoomIdentity{Host: "chat.example.org", Room: "devel", Nick: "kitbot"}

func openStore(t *testing.T) (PostponedRepository, *badger.DB) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostponedRepository(db, slog.Default()), db
}

func Test_Take_returns_messages_in_insertion_order(t *testing.T) {
	req := require.New(t)
	repo, _ := openStore(t)

	req.NoError(repo.Add(room, "bob", "alice", "first"))
	req.NoError(repo.Add(room, "carol", "alice", "second"))
	req.NoError(repo.Add(room, "bob", "alice", "third"))

	messages, err := repo.TakeFor(room, "alice")
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("first", messages[0].Body)
	req.Equal("second", messages[1].Body)
	req.Equal("third", messages[2].Body)

	// Consumed by exactly one delivery.
	again, err := repo.TakeFor(room, "alice")
	req.NoError(err)
	req.Empty(again)
}

func Test_Recipient_is_matched_as_case_insensitive_prefix(t *testing.T) {
	req := require.New(t)
	repo, _ := openStore(t)

	req.NoError(repo.Add(room, "bob", "Al", "see you"))

	messages, err := repo.TakeFor(room, "Bob")
	req.NoError(err)
	req.Empty(messages)

	messages, err = repo.TakeFor(room, "ALICE")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("see you", messages[0].Body)
	req.Equal("bob", messages[0].Sender)
}

func Test_Rooms_are_isolated(t *testing.T) {
	req := require.New(t)
	repo, _ := openStore(t)
	other := domain.RoomIdentity{Host: "chat.example.org", Room: "offtopic", Nick: "kitbot"}

	req.NoError(repo.Add(room, "bob", "alice", "for devel"))
	req.NoError(repo.Add(other, "bob", "alice", "for offtopic"))

	messages, err := repo.TakeFor(room, "alice")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for devel", messages[0].Body)
}

func Test_Concurrent_takes_deliver_each_message_exactly_once(t *testing.T) {
	req := require.New(t)
	repo, _ := openStore(t)

	const total = 50
	for i := 0; i < total; i++ {
		req.NoError(repo.Add(room, "bob", "alice", string(rune('a'+i%26))))
	}

	const takers = 8
	results := make([][]domain.PostponedMessage, takers)
	var wg sync.WaitGroup
	for i := 0; i < takers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			messages, err := repo.TakeFor(room, "alice")
			require.NoError(t, err)
			results[slot] = messages
		}(i)
	}
	wg.Wait()

	var ids []string
	for _, batch := range results {
		for _, m := range batch {
			ids = append(ids, m.ID.String())
		}
	}
	req.Len(ids, total, "every message delivered")
	req.Len(lo.Uniq(ids), total, "no message delivered twice")
}

func Test_Queue_survives_reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo := NewPostponedRepository(db, slog.Default())
	req.NoError(repo.Add(room, "bob", "alice", "still here"))
	req.NoError(db.Close())

	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	repo = NewPostponedRepository(db, slog.Default())

	messages, err := repo.TakeFor(room, "alice")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("still here", messages[0].Body)
}
