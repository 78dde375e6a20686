package notification

import (
	"context"
	"errors"
	"time"
)

// Message is one notification addressed to one user.
type Message struct {
	UserID    uint                   `json:"user_id"`
	Action    string                 `json:"action"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notifier delivers messages to users.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Fanout delivers to every notifier, continuing past failures.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }
