package runtime

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitbot/bus"
	"kitbot/chatlog"
	"kitbot/domain"
	"kitbot/domain/event"
	kiterrors "kitbot/errors"
	"kitbot/transport"
)

var identity = domain.RoomIdentity{Host: "chat.example.org", Room: "devel", Nick: "kitbot"}

// fakeTransport scripts inbound protocol events and records outbound
// messages and the join handshake.
type fakeTransport struct {
	mu       sync.Mutex
	events   chan transport.Event
	sent     []string
	password string
	joined   bool
}

func newFakeTransport(events ...transport.Event) *fakeTransport {
	ch := make(chan transport.Event, len(events)+1)
	for _, e := range events {
		ch <- e
	}
	return &fakeTransport{events: ch}
}

func (f *fakeTransport) Join(_ context.Context, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
	f.joined = true
	return nil
}

func (f *fakeTransport) SendGroupMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }
func (f *fakeTransport) Close() error                   { return nil }

func (f *fakeTransport) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type sessionFixture struct {
	session   *Session
	transport *fakeTransport
	bus       *bus.Bus
	logPath   string
}

// runSession scripts events, runs the session until the stream ends and
// returns Run's error plus everything observable.
func runSession(t *testing.T, password string, events ...transport.Event) (sessionFixture, error) {
	t.Helper()
	dir := t.TempDir()

	transcript, err := chatlog.Open(identity.LogBase(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = transcript.Close() })

	ft := newFakeTransport(events...)
	b := bus.New(slog.Default())
	dial := func(_ context.Context) (transport.Transport, error) { return ft, nil }
	session := NewSession(identity, password, slog.Default(), transcript, b, dial, nil)

	fixture := sessionFixture{
		session:   session,
		transport: ft,
		bus:       b,
		logPath:   filepath.Join(dir, identity.LogBase()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	close(ft.events)
	return fixture, session.Run(ctx)
}

func logLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func Test_Plain_message_is_logged_and_published(t *testing.T) {
	req := require.New(t)
	var published []event.GroupChat

	dir := t.TempDir()
	transcript, err := chatlog.Open(identity.LogBase(), dir)
	req.NoError(err)
	defer transcript.Close()

	ft := newFakeTransport(
		transport.Connected{},
		transport.GroupMessage{Sender: "alice", Body: "hello world"},
	)
	b := bus.New(slog.Default())
	b.Subscribe(event.GroupChatReceived, func(_ context.Context, e event.Event) error {
		published = append(published, e.(event.GroupChat))
		return nil
	})
	dial := func(_ context.Context) (transport.Transport, error) { return ft, nil }
	session := NewSession(identity, "", slog.Default(), transcript, b, dial, nil)
	close(ft.events)
	err = session.Run(context.Background())
	req.ErrorIs(err, kiterrors.ErrTransportClosed)

	lines := logLines(t, filepath.Join(dir, identity.LogBase()))
	req.Contains(lines[len(lines)-1], "<alice> hello world")

	req.Len(published, 1)
	req.Equal("alice", published[0].Sender)
	req.Equal("hello world", published[0].Body)
	req.Equal(identity, published[0].Room())
}

func Test_Action_message_is_logged_but_not_published(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	transcript, err := chatlog.Open(identity.LogBase(), dir)
	req.NoError(err)
	defer transcript.Close()

	var published int
	ft := newFakeTransport(
		transport.Connected{},
		transport.GroupMessage{Sender: "alice", Body: "/me waves"},
	)
	b := bus.New(slog.Default())
	b.Subscribe(event.GroupChatReceived, func(_ context.Context, _ event.Event) error {
		published++
		return nil
	})
	dial := func(_ context.Context) (transport.Transport, error) { return ft, nil }
	session := NewSession(identity, "", slog.Default(), transcript, b, dial, nil)
	close(ft.events)
	err = session.Run(context.Background())
	req.ErrorIs(err, kiterrors.ErrTransportClosed)

	lines := logLines(t, filepath.Join(dir, identity.LogBase()))
	req.Contains(lines[len(lines)-1], " * alice waves")
	req.NotContains(lines[len(lines)-1], "/me")
	req.Zero(published, "action messages must not reach extensions")
}

func Test_Join_leave_and_topic_are_logged(t *testing.T) {
	req := require.New(t)
	fixture, err := runSession(t, "",
		transport.Connected{},
		transport.UserJoined{Nick: "alice"},
		transport.Subject{Body: "release day"},
		transport.UserLeft{Nick: "alice"},
	)
	req.ErrorIs(err, kiterrors.ErrTransportClosed)

	lines := logLines(t, fixture.logPath)
	req.Contains(lines[1], "-!- alice has joined devel")
	req.Contains(lines[2], "-!- Topic for devel: release day")
	req.Contains(lines[3], "-!- alice has left devel")
}

func Test_User_join_is_published_leave_is_not(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	transcript, err := chatlog.Open(identity.LogBase(), dir)
	req.NoError(err)
	defer transcript.Close()

	var joins []event.UserJoined
	var others int
	ft := newFakeTransport(
		transport.Connected{},
		transport.UserJoined{Nick: "alice"},
		transport.UserLeft{Nick: "alice"},
	)
	b := bus.New(slog.Default())
	b.Subscribe(event.UserJoinedRoom, func(_ context.Context, e event.Event) error {
		joins = append(joins, e.(event.UserJoined))
		return nil
	})
	b.Subscribe(event.TopicChanged, func(_ context.Context, _ event.Event) error {
		others++
		return nil
	})
	dial := func(_ context.Context) (transport.Transport, error) { return ft, nil }
	session := NewSession(identity, "", slog.Default(), transcript, b, dial, nil)
	close(ft.events)
	_ = session.Run(context.Background())

	req.Len(joins, 1)
	req.Equal("alice", joins[0].Nick)
	req.Zero(others)
}

func Test_Password_is_presented_on_join(t *testing.T) {
	req := require.New(t)
	fixture, err := runSession(t, "sekrit", transport.Connected{})
	req.ErrorIs(err, kiterrors.ErrTransportClosed)
	req.True(fixture.transport.joined)
	req.Equal("sekrit", fixture.transport.password)
}

func Test_Send_before_join_is_rejected(t *testing.T) {
	dir := t.TempDir()
	transcript, err := chatlog.Open(identity.LogBase(), dir)
	require.NoError(t, err)
	defer transcript.Close()

	ft := newFakeTransport()
	dial := func(_ context.Context) (transport.Transport, error) { return ft, nil }
	session := NewSession(identity, "", slog.Default(), transcript, bus.New(slog.Default()), dial, nil)

	err = session.SendGroupMessage(context.Background(), "too early")
	assert.ErrorIs(t, err, kiterrors.ErrNotJoined)
}

func Test_Transport_drop_surfaces_as_error(t *testing.T) {
	req := require.New(t)
	fixture, err := runSession(t, "",
		transport.Connected{},
		transport.Disconnected{Err: assert.AnError},
	)
	req.ErrorIs(err, assert.AnError)
	req.Equal(Disconnected, fixture.session.State())
}
