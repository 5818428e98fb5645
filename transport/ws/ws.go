// Package ws adapts a websocket chat relay to the transport contract.
// The relay speaks newline-free JSON frames, one protocol event per
// frame; kitbot treats everything past that framing as opaque.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"kitbot/domain"
	"kitbot/transport"
)

// frame is the relay wire format, both directions.
type frame struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Nick string `json:"nick,omitempty"`
	Body string `json:"body,omitempty"`
}

const (
	frameMessage  = "message"
	frameSubject  = "subject"
	frameJoin     = "join"
	framePart     = "part"
	framePassword = "password"
)

// Client is one room's relay connection.
type Client struct {
	identity domain.RoomIdentity
	log      *slog.Logger
	conn     *websocket.Conn
	events   chan transport.Event

	writeMu sync.Mutex
}

// Dial connects to the relay and starts delivering events. The first
// event is always Connected.
func Dial(ctx context.Context, url string, identity domain.RoomIdentity, log *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}

	c := &Client{
		identity: identity,
		log:      log,
		conn:     conn,
		events:   make(chan transport.Event, 64),
	}
	c.events <- transport.Connected{}
	go c.readLoop()
	return c, nil
}

// Dialer returns a transport.Dialer bound to url and identity, for
// session restarts.
func Dialer(url string, identity domain.RoomIdentity, log *slog.Logger) transport.Dialer {
	return func(ctx context.Context) (transport.Transport, error) {
		return Dial(ctx, url, identity, log)
	}
}

func (c *Client) Join(ctx context.Context, password string) error {
	if password != "" {
		err := c.write(ctx, frame{Type: framePassword, Room: c.identity.Room, Body: password})
		if err != nil {
			return err
		}
	}
	return c.write(ctx, frame{Type: frameJoin, Room: c.identity.Room, Nick: c.identity.Nick})
}

func (c *Client) SendGroupMessage(ctx context.Context, text string) error {
	return c.write(ctx, frame{Type: frameMessage, Room: c.identity.Room, Body: text})
}

func (c *Client) Events() <-chan transport.Event {
	return c.events
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) write(ctx context.Context, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Type, err)
	}
	return nil
}

// readLoop turns relay frames into typed events until the connection
// drops, then emits Disconnected and closes the channel.
func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- transport.Disconnected{}
			} else {
				c.events <- transport.Disconnected{Err: err}
			}
			return
		}
		if evt := toEvent(f); evt != nil {
			c.events <- evt
		} else {
			c.log.Debug("Ignoring unknown relay frame", "type", f.Type, "room", c.identity.Key())
		}
	}
}

func toEvent(f frame) transport.Event {
	switch f.Type {
	case frameMessage:
		return transport.GroupMessage{Sender: f.Nick, Body: f.Body}
	case frameSubject:
		return transport.Subject{Body: f.Body}
	case frameJoin:
		return transport.UserJoined{Nick: f.Nick}
	case framePart:
		return transport.UserLeft{Nick: f.Nick}
	default:
		return nil
	}
}
