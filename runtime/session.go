// Package runtime turns the asynchronous protocol event stream into
// ordered transcript writes and bus publishes. It orchestrates; domain
// rules live with the extensions.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kitbot/bus"
	"kitbot/chatlog"
	"kitbot/domain"
	"kitbot/domain/event"
	kiterrors "kitbot/errors"
	"kitbot/moderation"
	"kitbot/transport"
)

type State int32

const (
	Disconnected State = iota
	Joining
	Joined
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

const actionPrefix = "/me "

// Session owns one room. It drains the transport's event stream
// sequentially: within a room, log lines and signal publishes happen in
// exactly the order protocol events arrived. Separate rooms are separate
// sessions on separate goroutines.
//
// A session returns an error from Run on transport drops and on log-write
// failures; the supervisor restarts it, which redials through the Dialer.
// The DailyLog handle is created once outside and survives restarts, so
// the "Log opened" header appears once per process, not per reconnect.
type Session struct {
	identity   domain.RoomIdentity
	password   string
	log        *slog.Logger
	transcript *chatlog.DailyLog
	bus        *bus.Bus
	dial       transport.Dialer
	redactor   *moderation.Redactor
	now        func() time.Time

	mu    sync.Mutex
	state State
	conn  transport.Transport
}

func NewSession(identity domain.RoomIdentity, password string, log *slog.Logger,
	transcript *chatlog.DailyLog, b *bus.Bus, dial transport.Dialer,
	redactor *moderation.Redactor) *Session {
	return &Session{
		identity:   identity,
		password:   password,
		log:        log,
		transcript: transcript,
		bus:        b,
		dial:       dial,
		redactor:   redactor,
		now:        time.Now,
	}
}

func (s *Session) Identity() domain.RoomIdentity { return s.identity }

func (s *Session) Nick() string { return s.identity.Nick }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run dials the transport and processes its events until the stream ends
// or ctx is canceled. Implements contract.Worker.
func (s *Session) Run(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.identity, err)
	}
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-conn.Events():
			if !ok {
				return fmt.Errorf("%s: %w", s.identity, kiterrors.ErrTransportClosed)
			}
			if err := s.handle(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

// SendGroupMessage posts text to the room. Extensions call this; a
// transport failure is theirs to deal with.
func (s *Session) SendGroupMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != Joined || conn == nil {
		return fmt.Errorf("%s: %w", s.identity, kiterrors.ErrNotJoined)
	}
	return conn.SendGroupMessage(ctx, text)
}

func (s *Session) handle(ctx context.Context, conn transport.Transport, evt transport.Event) error {
	switch e := evt.(type) {
	case transport.Connected:
		return s.join(ctx, conn)

	case transport.Disconnected:
		s.setState(Disconnected)
		if e.Err != nil {
			return fmt.Errorf("%s dropped: %w", s.identity, e.Err)
		}
		return fmt.Errorf("%s: %w", s.identity, kiterrors.ErrTransportClosed)

	case transport.GroupMessage:
		return s.groupMessage(ctx, e)

	case transport.Subject:
		return s.transcript.Event(fmt.Sprintf("Topic for %s: %s", s.identity.Room, e.Body))

	case transport.UserJoined:
		err := s.transcript.Event(fmt.Sprintf("%s has joined %s", e.Nick, s.identity.Room))
		if err != nil {
			return err
		}
		s.bus.Publish(ctx, event.UserJoinedRoom, event.UserJoined{
			Identity: s.identity,
			Nick:     e.Nick,
			At:       s.now(),
		})
		return nil

	case transport.UserLeft:
		return s.transcript.Event(fmt.Sprintf("%s has left %s", e.Nick, s.identity.Room))

	default:
		s.log.Debug("Unhandled transport event", "room", s.identity.Key(), "event", fmt.Sprintf("%T", evt))
		return nil
	}
}

func (s *Session) join(ctx context.Context, conn transport.Transport) error {
	s.setState(Joining)
	if err := conn.Join(ctx, s.password); err != nil {
		s.setState(Disconnected)
		return fmt.Errorf("join %s: %w", s.identity, err)
	}
	s.setState(Joined)
	s.log.Info("Joined room", "room", s.identity.Key(), "nick", s.identity.Nick)
	return nil
}

// groupMessage logs the message and, for plain messages only, fans it out
// to extensions. Action messages get the transcript formatting and
// nothing else.
func (s *Session) groupMessage(ctx context.Context, e transport.GroupMessage) error {
	if text, isAction := strings.CutPrefix(e.Body, actionPrefix); isAction {
		return s.transcript.Action(e.Sender, s.redactor.Redact(text))
	}
	if err := s.transcript.Message(e.Sender, s.redactor.Redact(e.Body)); err != nil {
		return err
	}
	s.bus.Publish(ctx, event.GroupChatReceived, event.GroupChat{
		Identity: s.identity,
		Sender:   e.Sender,
		Body:     e.Body,
		At:       s.now(),
	})
	return nil
}

func (s *Session) setConn(conn transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	if conn == nil {
		s.state = Disconnected
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
