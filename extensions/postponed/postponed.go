// Package postponed implements the message queue commands: members leave
// messages for someone currently absent, and the bot hands them over the
// moment that person next appears in the room.
package postponed

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"kitbot/domain/event"
	kiterrors "kitbot/errors"
	"kitbot/extensions"
)

const deliveryFormat = "%s: %s (This message from %s has been postponed.)"

type Extension struct {
	env extensions.Env
}

func New() extensions.Extension { return &Extension{} }

func (e *Extension) Name() string { return "postponed-messages" }

func (e *Extension) Init(env extensions.Env, _ map[string]string) error {
	e.env = env
	env.Bus.Subscribe(event.GroupChatReceived, e.onGroupChat)
	env.Bus.Subscribe(event.UserJoinedRoom, e.onUserJoined)
	return nil
}

// onGroupChat enqueues on `<botnick>: message <recipient> <text...>`.
// Anything malformed is ignored without a reply: unrecognized input is
// not an error.
func (e *Extension) onGroupChat(_ context.Context, evt event.Event) error {
	chat, ok := evt.(event.GroupChat)
	if !ok {
		return nil
	}
	command := strings.ToLower(chat.Room().Nick) + ": message "
	if !strings.HasPrefix(strings.ToLower(chat.Body), command) {
		return nil
	}

	parts := splitFields(chat.Body, 4)
	if len(parts) != 4 {
		return nil
	}
	recipient := parts[2]
	// A trailing colon is most likely a syntax slip, not part of the nick.
	recipient = strings.TrimSuffix(recipient, ":")

	return e.env.Store.Add(chat.Room(), chat.Sender, recipient, parts[3])
}

// onUserJoined drains the queue for the arriving nickname and delivers in
// FIFO order. The store's take is atomic, so a nickname joining two rooms
// of the same bot at once still gets each message exactly once.
func (e *Extension) onUserJoined(ctx context.Context, evt event.Event) error {
	joined, ok := evt.(event.UserJoined)
	if !ok {
		return nil
	}
	// Resolve the session first: taking is destructive, and a take with
	// nowhere to deliver would lose the messages.
	session, ok := e.env.Sessions.Session(joined.Room())
	if !ok {
		return fmt.Errorf("%w: %s", kiterrors.ErrUnknownRoom, joined.Room().Key())
	}
	messages, err := e.env.Store.TakeFor(joined.Room(), joined.Nick)
	if err != nil {
		return err
	}
	for _, m := range messages {
		text := fmt.Sprintf(deliveryFormat, joined.Nick, m.Body, m.Sender)
		if err := session.SendGroupMessage(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// splitFields splits on runs of whitespace into at most n fields, the
// last keeping the remainder verbatim.
func splitFields(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for len(out) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
