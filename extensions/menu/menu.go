// Package menu posts today's cafeteria menu on request. The menu lives
// on a third-party page, so this is a one-shot HTML-to-text extraction:
// fetch, strip markup, post the lines.
//
// The fetch runs off the room's event flow. A reply that completes after
// the room moved on is harmless; a fetch that fails is logged and
// dropped, matching the rule that unavailable input is not an error.
package menu

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"kitbot/domain"
	"kitbot/domain/event"
	"kitbot/extensions"
)

const (
	defaultMaxLines = 15
	fetchTimeout    = 20 * time.Second
)

type Extension struct {
	env      extensions.Env
	url      string
	maxLines int
	client   *http.Client
}

func New() extensions.Extension {
	return &Extension{
		maxLines: defaultMaxLines,
		client:   &http.Client{Timeout: fetchTimeout},
	}
}

func (e *Extension) Name() string { return "menu" }

func (e *Extension) Init(env extensions.Env, cfg map[string]string) error {
	url, ok := cfg["url"]
	if !ok || url == "" {
		return fmt.Errorf("menu extension needs a url")
	}
	e.env = env
	e.url = url
	if raw, ok := cfg["max_lines"]; ok {
		maxLines, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("menu extension max_lines: %w", err)
		}
		e.maxLines = maxLines
	}
	env.Bus.Subscribe(event.GroupChatReceived, e.onGroupChat)
	return nil
}

func (e *Extension) onGroupChat(_ context.Context, evt event.Event) error {
	chat, ok := evt.(event.GroupChat)
	if !ok {
		return nil
	}
	command := chat.Room().Nick + ": menu"
	if !strings.EqualFold(strings.TrimSpace(chat.Body), command) {
		return nil
	}

	// Fetching must not block this room's (or any other room's) event
	// processing; the reply re-enters through the session send path
	// whenever the page answers.
	go e.fetchAndPost(chat.Room())
	return nil
}

func (e *Extension) fetchAndPost(room domain.RoomIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	text, err := e.fetch(ctx)
	if err != nil {
		e.env.Log.Warn("Menu fetch failed", "url", e.url, "room", room.Key(), "error", err)
		return
	}
	session, ok := e.env.Sessions.Session(room)
	if !ok {
		return
	}
	if err := session.SendGroupMessage(ctx, text); err != nil {
		e.env.Log.Warn("Menu reply failed", "room", room.Key(), "error", err)
	}
}

func (e *Extension) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("menu page returned %s", resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", err
	}
	lines := textLines(doc)
	if len(lines) == 0 {
		return "", fmt.Errorf("menu page had no text")
	}
	if len(lines) > e.maxLines {
		lines = lines[:e.maxLines]
	}
	return strings.Join(lines, "\n"), nil
}

// textLines flattens the document into trimmed, non-empty text lines,
// skipping script and style subtrees.
func textLines(doc *html.Node) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return lines
}
