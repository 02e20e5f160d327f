package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
)

func TestHub_ActorDelivery(t *testing.T) {
	hub := NewHub()
	actorID := id.NewActorID()
	ch := hub.SubscribeActor(actorID, 1)
	otherCh := hub.SubscribeActor(id.NewActorID(), 1)

	err := hub.Notify(context.Background(), models.Notification{
		Target:  models.NotificationTarget{ActorID: actorID},
		Type:    "command_update",
		Payload: map[string]any{"status": "executed"},
	})
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, "command_update", n.Type)
	default:
		t.Fatal("expected delivery to the target actor")
	}
	select {
	case <-otherCh:
		t.Fatal("notification leaked to an unrelated actor")
	default:
	}
}

func TestHub_AdminFanout(t *testing.T) {
	hub := NewHub()
	first := hub.SubscribeAdmins(1)
	second := hub.SubscribeAdmins(1)

	err := hub.Notify(context.Background(), models.Notification{
		Target: models.NotificationTarget{AllAdmins: true},
		Type:   "approval_request",
	})
	require.NoError(t, err)

	for _, ch := range []<-chan models.Notification{first, second} {
		select {
		case n := <-ch:
			assert.Equal(t, "approval_request", n.Type)
		default:
			t.Fatal("expected every admin subscriber to receive the fanout")
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	actorID := id.NewActorID()
	hub.SubscribeActor(actorID, 0)

	// An unbuffered subscriber with no reader: Notify must drop, not hang.
	err := hub.Notify(context.Background(), models.Notification{
		Target: models.NotificationTarget{ActorID: actorID},
		Type:   "command_update",
	})
	assert.NoError(t, err)
}

func TestHub_NoSubscribers(t *testing.T) {
	hub := NewHub()

	err := hub.Notify(context.Background(), models.Notification{
		Target: models.NotificationTarget{ActorID: id.NewActorID()},
		Type:   "command_update",
	})
	assert.NoError(t, err)
}
