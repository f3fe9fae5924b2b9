package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ActorRef identifies the caller whose request produced the event.
type ActorRef struct {
	CustomerID uuid.UUID  `json:"customerId"`
	Role       enums.Role `json:"role,omitempty"`
	RequestID  string     `json:"requestId,omitempty"`
}

// PayloadEnvelope wraps every outbox payload. Consumers switch on Version before
// decoding Data.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"eventId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}
