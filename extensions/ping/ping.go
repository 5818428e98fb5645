// Package ping answers "ping" with "pong". Mostly a liveness check for
// the room, partly the smallest possible extension example.
package ping

import (
	"context"
	"strings"

	"kitbot/domain/event"
	"kitbot/extensions"
)

type Extension struct {
	env extensions.Env
}

func New() extensions.Extension { return &Extension{} }

func (e *Extension) Name() string { return "ping" }

func (e *Extension) Init(env extensions.Env, _ map[string]string) error {
	e.env = env
	env.Bus.Subscribe(event.GroupChatReceived, e.onGroupChat)
	return nil
}

func (e *Extension) onGroupChat(ctx context.Context, evt event.Event) error {
	chat, ok := evt.(event.GroupChat)
	if !ok {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(chat.Body), "ping") {
		return nil
	}
	session, ok := e.env.Sessions.Session(chat.Room())
	if !ok {
		return nil
	}
	return session.SendGroupMessage(ctx, "pong")
}
