// Package notify implements the notification port. The engine never holds
// transport state; it calls Notifier and implementations own delivery.
package notify

import (
	"context"
	"sync"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
)

// Hub is an in-memory notifier. Subscribers receive messages on buffered
// channels; a subscriber that falls behind drops messages rather than
// blocking the admission path. Dev and test use.
type Hub struct {
	mu     sync.RWMutex
	actors map[id.ActorID][]chan models.Notification
	admins []chan models.Notification
}

func NewHub() *Hub {
	return &Hub{actors: make(map[id.ActorID][]chan models.Notification)}
}

// SubscribeActor registers a channel for one actor's notifications.
func (h *Hub) SubscribeActor(actorID id.ActorID, buffer int) <-chan models.Notification {
	ch := make(chan models.Notification, buffer)
	h.mu.Lock()
	h.actors[actorID] = append(h.actors[actorID], ch)
	h.mu.Unlock()
	return ch
}

// SubscribeAdmins registers a channel for administrator notifications.
func (h *Hub) SubscribeAdmins(buffer int) <-chan models.Notification {
	ch := make(chan models.Notification, buffer)
	h.mu.Lock()
	h.admins = append(h.admins, ch)
	h.mu.Unlock()
	return ch
}

func (h *Hub) Notify(_ context.Context, n models.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets []chan models.Notification
	if n.Target.AllAdmins {
		targets = h.admins
	} else {
		targets = h.actors[n.Target.ActorID]
	}
	for _, ch := range targets {
		select {
		case ch <- n:
		default:
			// Slow subscriber: drop rather than stall the caller.
		}
	}
	return nil
}
