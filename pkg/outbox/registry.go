package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultRegistry knows the v1 payload of every lifecycle event.
func DefaultRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventOrderCreated, 1, decodeInto[payloads.OrderCreatedEvent])
	r.Register(enums.EventOrderStatusChanged, 1, decodeInto[payloads.OrderStatusChangedEvent])
	r.Register(enums.EventPaymentSlipSubmitted, 1, decodeInto[payloads.PaymentSlipSubmittedEvent])
	r.Register(enums.EventPaymentConfirmed, 1, decodeInto[payloads.PaymentDecisionEvent])
	r.Register(enums.EventPaymentRejected, 1, decodeInto[payloads.PaymentDecisionEvent])
	r.Register(enums.EventStockRestored, 1, decodeInto[payloads.StockRestoredEvent])
	r.Register(enums.EventShippingUpdated, 1, decodeInto[payloads.ShippingUpdatedEvent])
	return r
}

func decodeInto[T any](payload json.RawMessage) (interface{}, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

// DecodeRow unwraps the stored envelope and decodes its data.
func (r *DecoderRegistry) DecodeRow(row models.OutboxEvent) (PayloadEnvelope, interface{}, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return env, nil, fmt.Errorf("decode envelope: %w", err)
	}
	data, err := r.Decode(row.EventType, env.Version, env.Data)
	return env, data, err
}
