package postponed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitbot/bus"
	"kitbot/contract"
	"kitbot/domain"
	"kitbot/domain/event"
	"kitbot/extensions"
	"kitbot/repositories"
)

var room = domain.RoomIdentity{Host: "chat.example.org", Room: "devel", Nick: "bot"}

type fakeSession struct {
	sent []string
}

func (s *fakeSession) Identity() domain.RoomIdentity { return room }
func (s *fakeSession) Nick() string                  { return room.Nick }
func (s *fakeSession) SendGroupMessage(_ context.Context, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

type fakeRegistry struct {
	session *fakeSession
}

func (r fakeRegistry) Session(_ domain.RoomIdentity) (contract.ISession, bool) {
	return r.session, true
}

func setup(t *testing.T) (*bus.Bus, *fakeSession, repositories.PostponedRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repositories.NewPostponedRepository(db, slog.Default())
	b := bus.New(slog.Default())
	session := &fakeSession{}
	env := extensions.Env{
		Log:      slog.Default(),
		Bus:      b,
		Store:    store,
		Sessions: fakeRegistry{session: session},
	}
	require.NoError(t, New().Init(env, nil))
	return b, session, store
}

func say(b *bus.Bus, sender, body string) {
	b.Publish(context.Background(), event.GroupChatReceived, event.GroupChat{
		Identity: room, Sender: sender, Body: body, At: time.Now(),
	})
}

func join(b *bus.Bus, nick string) {
	b.Publish(context.Background(), event.UserJoinedRoom, event.UserJoined{
		Identity: room, Nick: nick, At: time.Now(),
	})
}

func Test_Message_command_enqueues_for_recipient_prefix(t *testing.T) {
	req := require.New(t)
	b, _, store := setup(t)

	say(b, "bob", "bot: message alice hello")

	messages, err := store.TakeFor(room, "alice")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("bob", messages[0].Sender)
	req.Equal("alice", messages[0].Recipient)
	req.Equal("hello", messages[0].Body)
}

func Test_Command_is_case_insensitive_and_strips_colon(t *testing.T) {
	req := require.New(t)
	b, _, store := setup(t)

	say(b, "bob", "Bot: MESSAGE alice: don't forget the standup")

	messages, err := store.TakeFor(room, "alice")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("alice", messages[0].Recipient)
	req.Equal("don't forget the standup", messages[0].Body)
}

func Test_Malformed_command_is_silently_ignored(t *testing.T) {
	req := require.New(t)
	b, session, store := setup(t)

	say(b, "bob", "bot: message alice")
	say(b, "bob", "bot: message")
	say(b, "bob", "plain chatter")

	messages, err := store.TakeFor(room, "alice")
	req.NoError(err)
	req.Empty(messages)
	req.Empty(session.sent)
}

func Test_Messages_are_delivered_on_join_in_fifo_order(t *testing.T) {
	req := require.New(t)
	b, session, _ := setup(t)

	say(b, "bob", "bot: message ali remember the logs")
	say(b, "carol", "bot: message alice and the backups")
	join(b, "Alice")

	req.Equal([]string{
		"Alice: remember the logs (This message from bob has been postponed.)",
		"Alice: and the backups (This message from carol has been postponed.)",
	}, session.sent)

	// Consumed: a second join delivers nothing.
	session.sent = nil
	join(b, "Alice")
	req.Empty(session.sent)
}

func Test_Join_of_unrelated_nick_delivers_nothing(t *testing.T) {
	b, session, _ := setup(t)

	say(b, "bob", "bot: message alice hello")
	join(b, "Bob")

	assert.Empty(t, session.sent)
}
