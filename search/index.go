// Package search maintains a full-text index over logged room messages.
// It feeds off the bus like any other subscriber: the transcript on disk
// stays the source of truth, the index is a derived view and can be
// rebuilt by replaying logs.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"kitbot/bus"
	"kitbot/domain"
	"kitbot/domain/event"
)

// Hit is one search result.
type Hit struct {
	Sender string
	Body   string
	At     time.Time
}

// Index wraps one bluge writer shared by all rooms; hits are partitioned
// by an exact room-key field.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(dir string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(dir))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

// Attach subscribes the index to room messages.
func (i *Index) Attach(b *bus.Bus) {
	b.Subscribe(event.GroupChatReceived, i.consume)
}

func (i *Index) consume(_ context.Context, e event.Event) error {
	chat, ok := e.(event.GroupChat)
	if !ok {
		return nil
	}
	doc := bluge.NewDocument(uuid.NewString()).
		AddField(bluge.NewKeywordField("room", chat.Room().Key()).StoreValue()).
		AddField(bluge.NewKeywordField("sender", chat.Sender).StoreValue()).
		AddField(bluge.NewTextField("body", chat.Body).StoreValue()).
		AddField(bluge.NewDateTimeField("at", chat.At).StoreValue())

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search returns up to limit messages of one room matching query, newest
// index segments first as bluge scores them.
func (i *Index) Search(ctx context.Context, room domain.RoomIdentity, query string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("search reader: %w", err)
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body")).
		AddMust(bluge.NewTermQuery(room.Key()).SetField("room"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var hits []Hit
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			return hits, nil
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "sender":
				hit.Sender = string(value)
			case "body":
				hit.Body = string(value)
			case "at":
				if at, parseErr := bluge.DecodeDateTime(value); parseErr == nil {
					hit.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
