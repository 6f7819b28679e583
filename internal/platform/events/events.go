// Package events carries queue board notifications from committed writes to
// live subscribers (SSE and WebSocket clients). Delivery is best effort: the
// database stays the source of truth and clients re-read the board on
// reconnect.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventQueueAdmitted EventType = "queue.admitted"
	EventQueueStatus   EventType = "queue.status_changed"
)

// QueueEvent describes one committed change to a clinic's queue.
type QueueEvent struct {
	ID          uuid.UUID  `json:"id"`
	Type        EventType  `json:"type"`
	ClinicID    uuid.UUID  `json:"clinic_id"`
	QueueItemID uuid.UUID  `json:"queue_item_id"`
	QueueNumber int        `json:"queue_number"`
	VisitID     *uuid.UUID `json:"visit_id,omitempty"`
	FromStatus  string     `json:"from_status,omitempty"`
	ToStatus    string     `json:"to_status"`
	ActorID     string     `json:"actor_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event QueueEvent) error
}

// Subscriber streams events of a single clinic until ctx is cancelled, at
// which point the returned channel is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, clinicID uuid.UUID) (<-chan QueueEvent, error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Channel names the pub/sub channel of a clinic's queue.
func Channel(clinicID uuid.UUID) string {
	return fmt.Sprintf("clinic:%s:queue", clinicID)
}

// subscriberBuffer bounds each subscriber; slow consumers drop events.
const subscriberBuffer = 64
