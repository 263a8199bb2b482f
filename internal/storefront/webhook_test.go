package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

const testWebhookSecret = "whsec_test"

type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: map[string]*domain.Order{}}
}

func (m *memoryOrders) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

func (m *memoryOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memoryOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	if err := domain.Transition(o.Status, status); err != nil {
		return nil, err
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

type published struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, key: key, event: event})
	return nil
}

func webhookEvent(eventType, orderID string) []byte {
	data, _ := json.Marshal(map[string]any{
		"id": "evt_1", "object": "event", "type": eventType,
		"data": map[string]any{"object": map[string]any{
			"id": "cs_test_1", "object": "checkout.session",
			"metadata": map[string]string{"order_id": orderID},
		}},
	})
	return data
}

func (e *testEnv) postWebhook(t *testing.T, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func pendingOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		CustomerName:  "Jan",
		CustomerEmail: "jan@example.com",
		Status:        domain.OrderStatusPending,
		Items:         []domain.OrderItem{{ProductID: "tent", Quantity: 2, StartDate: june1, EndDate: june3}},
	}
}

func TestWebhook_Completed(t *testing.T) {
	env := newTestEnv(t)
	env.orders.put(pendingOrder("order-1"))

	rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "order-1"), testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	order, _ := env.orders.GetByID(context.Background(), "order-1")
	assert.Equal(t, domain.OrderStatusPaid, order.Status)

	require.Len(t, env.publisher.events, 1)
	ev := env.publisher.events[0]
	assert.Equal(t, domain.TopicOrderPaid, ev.topic)
	assert.Equal(t, "order-1", ev.key)
	paid, ok := ev.event.(domain.OrderPaidEvent)
	require.True(t, ok)
	assert.Equal(t, "jan@example.com", paid.CustomerEmail)
	assert.Len(t, paid.Items, 1)

	t.Run("replay is acknowledged and republished", func(t *testing.T) {
		rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "order-1"), testWebhookSecret)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, env.publisher.events, 2)
	})

	t.Run("replay after confirmation is ignored", func(t *testing.T) {
		_, err := env.orders.UpdateStatus(context.Background(), "order-1", domain.OrderStatusConfirmed)
		require.NoError(t, err)

		rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "order-1"), testWebhookSecret)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, env.publisher.events, 2)

		order, _ := env.orders.GetByID(context.Background(), "order-1")
		assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	})
}

func TestWebhook_PublishFailureAsksForRetry(t *testing.T) {
	env := newTestEnv(t)
	env.orders.put(pendingOrder("order-1"))
	env.publisher.err = errors.New("broker down")

	rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "order-1"), testWebhookSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	env.publisher.err = nil
	rec = env.postWebhook(t, webhookEvent("checkout.session.completed", "order-1"), testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.publisher.events, 1)
}

func TestWebhook_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.orders.put(pendingOrder("order-2"))

	rec := env.postWebhook(t, webhookEvent("checkout.session.expired", "order-2"), testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	order, _ := env.orders.GetByID(context.Background(), "order-2")
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Empty(t, env.publisher.events)

	rec = env.postWebhook(t, webhookEvent("checkout.session.expired", "order-2"), testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_Rejected(t *testing.T) {
	env := newTestEnv(t)
	env.orders.put(pendingOrder("order-3"))

	t.Run("bad signature", func(t *testing.T) {
		rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "order-3"), "whsec_other")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		order, _ := env.orders.GetByID(context.Background(), "order-3")
		assert.Equal(t, domain.OrderStatusPending, order.Status)
	})

	t.Run("unrelated event type", func(t *testing.T) {
		rec := env.postWebhook(t, webhookEvent("invoice.paid", "order-3"), testWebhookSecret)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ignored")
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := env.postWebhook(t, webhookEvent("checkout.session.completed", "missing"), testWebhookSecret)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, env.publisher.events)
	})
}
