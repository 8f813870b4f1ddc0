// Package broker is the in-process publish/subscribe channel behind the STOMP endpoint.
// Topic destinations reach every subscriber; user destinations reach only the
// sessions of one resolved principal.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Destinations
const (
	TopicTasks         = "/topic/tasks"
	TopicNotifications = "/topic/notifications"
	QueueNotifications = "/queue/notifications"

	// UserPrefix is prepended by clients subscribing to their private queues
	UserPrefix = "/user"
)

// UserDestination returns the client-side destination for a private queue
func UserDestination(queue string) string {
	return UserPrefix + queue
}

// Message is a delivered payload
type Message struct {
	ID             string
	Destination    string
	SubscriptionID string
	ContentType    string
	Body           []byte
}

// DeliverFunc hands a message to a subscriber. It must not block and reports false when the message was dropped.
type DeliverFunc func(Message) bool

// Subscription binds a session's subscription id to a destination
type Subscription struct {
	SessionID   string
	ID          string
	Destination string
	// UserID is the owning principal; required for user destinations
	UserID  uuid.UUID
	Deliver DeliverFunc
}

func (s *Subscription) key() string {
	return s.SessionID + "/" + s.ID
}

// Relay forwards locally published messages to other instances
type Relay interface {
	Forward(ctx context.Context, env Envelope) error
}

// Envelope is a message as seen by a relay
type Envelope struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	UserID      *uuid.UUID      `json:"userId,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// Broker manages subscriptions and fans published messages out to them
type Broker struct {
	mu sync.RWMutex
	// topic destination -> subscription key -> subscription
	topics map[string]map[string]*Subscription
	// user queue -> user id -> subscription key -> subscription
	queues map[string]map[uuid.UUID]map[string]*Subscription

	instanceID string
	relay      Relay
	logger     *slog.Logger
}

// New creates an empty broker
func New(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		topics:     make(map[string]map[string]*Subscription),
		queues:     make(map[string]map[uuid.UUID]map[string]*Subscription),
		instanceID: uuid.NewString(),
		logger:     logger.With("component", "broker"),
	}
}

// InstanceID identifies this broker to relays
func (b *Broker) InstanceID() string {
	return b.instanceID
}

// SetRelay attaches a relay. It must be called before publishing starts.
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Subscribe registers a subscription. User destinations (/user/queue/...) are bound to sub.UserID.
func (b *Broker) Subscribe(sub *Subscription) error {
	if sub.Deliver == nil {
		return fmt.Errorf("subscription %s has no deliver func", sub.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if queue, ok := strings.CutPrefix(sub.Destination, UserPrefix); ok {
		if sub.UserID == uuid.Nil {
			return fmt.Errorf("user destination %s requires an authenticated principal", sub.Destination)
		}
		users := b.queues[queue]
		if users == nil {
			users = make(map[uuid.UUID]map[string]*Subscription)
			b.queues[queue] = users
		}
		if users[sub.UserID] == nil {
			users[sub.UserID] = make(map[string]*Subscription)
		}
		users[sub.UserID][sub.key()] = sub
	} else {
		if b.topics[sub.Destination] == nil {
			b.topics[sub.Destination] = make(map[string]*Subscription)
		}
		b.topics[sub.Destination][sub.key()] = sub
	}

	b.logger.Debug("subscribed", "session", sub.SessionID, "subscription", sub.ID, "destination", sub.Destination)
	return nil
}

// Unsubscribe removes one subscription of a session
func (b *Broker) Unsubscribe(sessionID, subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(func(s *Subscription) bool {
		return s.SessionID == sessionID && s.ID == subscriptionID
	})
}

// RemoveSession drops every subscription held by a session
func (b *Broker) RemoveSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(func(s *Subscription) bool {
		return s.SessionID == sessionID
	})
}

func (b *Broker) removeLocked(match func(*Subscription) bool) {
	for dest, subs := range b.topics {
		for key, s := range subs {
			if match(s) {
				delete(subs, key)
			}
		}
		if len(subs) == 0 {
			delete(b.topics, dest)
		}
	}
	for queue, users := range b.queues {
		for userID, subs := range users {
			for key, s := range subs {
				if match(s) {
					delete(subs, key)
				}
			}
			if len(subs) == 0 {
				delete(users, userID)
			}
		}
		if len(users) == 0 {
			delete(b.queues, queue)
		}
	}
}

// Publish sends payload, encoded as JSON, to every subscriber of a topic.
// Having no subscribers is not an error.
func (b *Broker) Publish(ctx context.Context, destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", destination, err)
	}

	b.deliverTopic(destination, body)
	return b.forward(ctx, Envelope{Origin: b.instanceID, Destination: destination, Body: body})
}

// PublishToUser sends payload to the private queue of one user, e.g. /queue/notifications
func (b *Broker) PublishToUser(ctx context.Context, userID uuid.UUID, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", queue, err)
	}

	b.deliverUser(userID, queue, body)
	return b.forward(ctx, Envelope{Origin: b.instanceID, Destination: queue, UserID: &userID, Body: body})
}

// Deliver hands a relayed envelope to local subscribers. Envelopes published by this instance are ignored.
func (b *Broker) Deliver(env Envelope) {
	if env.Origin == b.instanceID {
		return
	}
	if env.UserID != nil {
		b.deliverUser(*env.UserID, env.Destination, env.Body)
		return
	}
	b.deliverTopic(env.Destination, env.Body)
}

func (b *Broker) forward(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()

	if relay == nil {
		return nil
	}
	if err := relay.Forward(ctx, env); err != nil {
		return fmt.Errorf("relay %s: %w", env.Destination, err)
	}
	return nil
}

func (b *Broker) deliverTopic(destination string, body []byte) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[destination]))
	for _, s := range b.topics[destination] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.deliver(subs, destination, body)
}

func (b *Broker) deliverUser(userID uuid.UUID, queue string, body []byte) {
	b.mu.RLock()
	var subs []*Subscription
	for _, s := range b.queues[queue][userID] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.deliver(subs, UserDestination(queue), body)
}

func (b *Broker) deliver(subs []*Subscription, destination string, body []byte) {
	if len(subs) == 0 {
		b.logger.Debug("no subscribers", "destination", destination)
		return
	}

	for _, s := range subs {
		msg := Message{
			ID:             uuid.NewString(),
			Destination:    destination,
			SubscriptionID: s.ID,
			ContentType:    "application/json",
			Body:           body,
		}
		if !s.Deliver(msg) {
			b.logger.Warn("dropped message for slow subscriber",
				"session", s.SessionID, "subscription", s.ID, "destination", destination)
		}
	}
}

// Stats reports the number of live subscriptions
func (b *Broker) Stats() (topics, queues int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subs := range b.topics {
		topics += len(subs)
	}
	for _, users := range b.queues {
		for _, subs := range users {
			queues += len(subs)
		}
	}
	return topics, queues
}
