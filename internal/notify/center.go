// Package notify delivers one-shot user notifications through registered
// channels. A notification id identifies a slot: posting the same id again
// replaces whatever the previous post put on screen.
package notify

import (
	"context"
	"sync"

	"medication-reminder/internal/logging"
)

type Importance int

const (
	ImportanceLow Importance = iota
	ImportanceDefault
	ImportanceHigh
)

// Priority ranks a single notification; the zero value is the default.
type Priority int

const (
	PriorityLow     Priority = -1
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 1
)

// Channel groups notifications that share a name and importance.
type Channel struct {
	ID          string
	Name        string
	Description string
	Importance  Importance
}

type Notification struct {
	ID         int
	ChannelID  string
	Title      string
	Icon       string
	Body       string
	Priority   Priority
	AutoCancel bool
}

// Poster puts a notification in front of the user.
type Poster interface {
	Post(ctx context.Context, ch Channel, n Notification) error
}

type Center struct {
	mu       sync.Mutex
	channels map[string]Channel
	poster   Poster
	log      logging.Logger
}

func NewCenter(poster Poster, log logging.Logger) *Center {
	return &Center{
		channels: make(map[string]Channel),
		poster:   poster,
		log:      log,
	}
}

// RegisterChannel adds ch unless a channel with the same id exists already.
// It reports whether ch was added.
func (c *Center) RegisterChannel(ctx context.Context, ch Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[ch.ID]; ok {
		return false
	}
	c.channels[ch.ID] = ch
	c.log.Info(ctx, "notification channel registered", "channel", ch.ID, "name", ch.Name)
	return true
}

// Notify posts n. Delivery problems are logged, never returned.
func (c *Center) Notify(ctx context.Context, n Notification) {
	c.mu.Lock()
	ch, ok := c.channels[n.ChannelID]
	c.mu.Unlock()
	if !ok {
		c.log.Debug(ctx, "notification dropped: unknown channel", "channel", n.ChannelID, "id", n.ID)
		return
	}
	if err := c.poster.Post(ctx, ch, n); err != nil {
		c.log.Warn(ctx, "notification not delivered", "channel", ch.ID, "id", n.ID, "err", err)
	}
}
