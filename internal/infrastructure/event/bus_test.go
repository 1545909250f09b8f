package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingHandler struct {
	mu     sync.Mutex
	types  []string
	events []shared.DomainEvent
	err    error
}

func (h *capturingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *capturingHandler) EventTypes() []string {
	return h.types
}

func (h *capturingHandler) received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent{}, h.events...)
}

func newTestEvent(eventType string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, "Invoice", uuid.New(), uuid.New())
	return &e
}

func TestInMemoryEventBus_PublishToSubscribedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &capturingHandler{types: []string{"invoice.issued"}}
	bus.Subscribe(handler)

	err := bus.Publish(context.Background(), newTestEvent("invoice.issued"))
	require.NoError(t, err)

	require.Len(t, handler.received(), 1)
	assert.Equal(t, "invoice.issued", handler.received()[0].EventType())
}

func TestInMemoryEventBus_TypeFiltering(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &capturingHandler{types: []string{"invoice.paid"}}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("invoice.issued")))

	assert.Empty(t, handler.received())
}

func TestInMemoryEventBus_WildcardHandlerReceivesAll(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &capturingHandler{}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("invoice.issued"),
		newTestEvent("dunning.sent"),
	))

	assert.Len(t, handler.received(), 2)
}

func TestInMemoryEventBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &capturingHandler{types: []string{"invoice.issued"}, err: errors.New("boom")}
	healthy := &capturingHandler{types: []string{"invoice.issued"}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("invoice.issued"))

	assert.NoError(t, err, "a failing subscriber must not fail the publish")
	assert.Len(t, healthy.received(), 1, "remaining handlers still run")
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &capturingHandler{types: []string{"invoice.issued"}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("invoice.issued")))

	assert.Empty(t, handler.received())
}

func TestInMemoryEventBus_UnsubscribeWildcard(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &capturingHandler{}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("dunning.sent")))

	assert.Empty(t, handler.received())
}
