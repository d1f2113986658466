// Package events publishes notifications about committed ledger writes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies what happened to an entry. It doubles as the routing key.
type Kind string

const (
	KindEntryCreated Kind = "entry.created"
	KindEntryDeleted Kind = "entry.deleted"
)

// EntryEvent describes a committed entry write.
type EntryEvent struct {
	Kind       Kind      `json:"kind"`
	EntryID    string    `json:"entry_id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Amount     string    `json:"amount"`
	Category   string    `json:"category"`
	Date       string    `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryEventFromJSON decodes an event and checks it carries a known kind.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var e EntryEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry event: %w", err)
	}
	switch e.Kind {
	case KindEntryCreated, KindEntryDeleted:
	default:
		return nil, fmt.Errorf("unknown entry event kind %q", e.Kind)
	}
	return &e, nil
}

// Publisher delivers entry events. Implementations are called only after the
// write has committed.
type Publisher interface {
	Publish(ctx context.Context, event *EntryEvent) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that discards events.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, *EntryEvent) error { return nil }
func (nopPublisher) Close() error                                { return nil }
