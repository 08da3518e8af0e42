// Package notify carries committed notifications to their recipients: over an
// event bus to the delivery worker, then to connected websocket clients and
// by email.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Message is the bus payload of one persisted notification.
type Message struct {
	ID             string    `json:"id"`
	RecipientID    uint      `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	EntityType     string    `json:"entity_type"`
	EntityRef      string    `json:"entity_ref"`
	Message        string    `json:"message"`
	StatusTag      string    `json:"status_tag"`
	CreatedAt      time.Time `json:"created_at"`
}

type Handler func(ctx context.Context, msg Message)

type Bus interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe hands every message to h until ctx is cancelled.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

var ErrBusFull = errors.New("notify: bus buffer full")

var ErrBusClosed = errors.New("notify: bus closed")

// MemoryBus is the in-process bus used when no redis is configured.
// Messages are queued and handed to the subscribers in publish order.
type MemoryBus struct {
	ch     chan Message
	mu     sync.RWMutex
	closed bool
}

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryBus{ch: make(chan Message, buffer)}
}

func (b *MemoryBus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBusFull
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-b.ch:
			if !ok {
				return ErrBusClosed
			}
			h(ctx, msg)
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}
