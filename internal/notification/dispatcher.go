package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
)

// Publisher is the transport notifications leave through. Email and in-app
// senders consume the published events downstream.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Topics names the destinations for buyer and seller notices.
type Topics struct {
	Buyer  string
	Seller string
}

const (
	defaultQueueSize = 256
	enqueueTimeout   = 2 * time.Second
	publishTimeout   = 5 * time.Second
)

// Dispatcher issues best-effort notifications decoupled from the ledger
// transaction that triggered them. Enqueueing never blocks the caller beyond
// a short timeout, publish failures are logged and dropped, and nothing here
// can roll back an order transition.
type Dispatcher struct {
	producer Publisher
	topics   Topics
	log      *logger.Logger

	queue chan queued
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	closed bool
}

type queued struct {
	topic string
	note  models.OrderNotification
}

func NewDispatcher(producer Publisher, topics Topics, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		producer: producer,
		topics:   topics,
		log:      log,
		queue:    make(chan queued, defaultQueueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		value, err := json.Marshal(item.note)
		if err != nil {
			d.log.Error("NOTIFY", fmt.Sprintf("Failed to marshal notification for order %s: %v", item.note.OrderID, err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = d.producer.Publish(ctx, item.topic, item.note.OrderID, value)
		cancel()
		if err != nil {
			// Best effort only: log and move on, never retry into the
			// caller's latency budget.
			d.log.Error("NOTIFY", fmt.Sprintf("Failed to publish %s for order %s: %v", item.note.Kind, item.note.OrderNumber, err))
			continue
		}
		d.log.LogKafka("PUBLISH", item.topic, fmt.Sprintf("%s for order %s", item.note.Kind, item.note.OrderNumber))
	}
}

func (d *Dispatcher) enqueue(topic string, note models.OrderNotification) {
	note.Timestamp = time.Now()

	// The mutex orders enqueues against Close: once closed is set no send can
	// start, and Close only closes the channel after in-flight sends finish.
	// Callers racing shutdown get a logged drop, never a panic.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Error("NOTIFY", fmt.Sprintf("Dispatcher closed, dropping %s for order %s", note.Kind, note.OrderNumber))
		return
	}
	select {
	case d.queue <- queued{topic: topic, note: note}:
	case <-time.After(enqueueTimeout):
		d.log.Error("NOTIFY", fmt.Sprintf("Notification queue full, dropping %s for order %s", note.Kind, note.OrderNumber))
	}
}

// NotifyBuyerOrderPaid tells the buyer their payment was confirmed.
func (d *Dispatcher) NotifyBuyerOrderPaid(order models.Order) {
	d.enqueue(d.topics.Buyer, models.OrderNotification{
		Kind:        models.NotifyBuyerOrderPaid,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StoreID:     order.StoreID,
		UserID:      order.UserID,
		Status:      order.Status,
		Total:       order.Total,
		Message:     fmt.Sprintf("Payment received for order %s. The seller is preparing your items.", order.OrderNumber),
	})
}

// NotifyBuyerOrderStatus tells the buyer about fulfillment progress. Shipped
// and delivered carry different message content.
func (d *Dispatcher) NotifyBuyerOrderStatus(order models.Order, status string) {
	message := fmt.Sprintf("Order %s is now %s.", order.OrderNumber, status)
	switch status {
	case models.OrderStatusShipped:
		message = fmt.Sprintf("Good news! Order %s has shipped.", order.OrderNumber)
	case models.OrderStatusDelivered:
		message = fmt.Sprintf("Order %s was delivered. Enjoy!", order.OrderNumber)
	}

	d.enqueue(d.topics.Buyer, models.OrderNotification{
		Kind:        models.NotifyBuyerOrderStatus,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StoreID:     order.StoreID,
		UserID:      order.UserID,
		Status:      status,
		Total:       order.Total,
		Message:     message,
	})
}

// NotifySellerNewOrder tells the store a paid order is waiting.
func (d *Dispatcher) NotifySellerNewOrder(order models.Order) {
	d.enqueue(d.topics.Seller, models.OrderNotification{
		Kind:        models.NotifySellerNewOrder,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StoreID:     order.StoreID,
		UserID:      order.UserID,
		Status:      order.Status,
		Total:       order.Total,
		Message:     fmt.Sprintf("New paid order %s - ready for fulfillment.", order.OrderNumber),
	})
}

// Close stops accepting notifications and drains whatever is queued. Calls to
// the Notify methods after Close are dropped with a log line.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
	})
	select {
	case <-d.done:
	case <-time.After(publishTimeout):
		d.log.Warn("NOTIFY", "Timed out draining notification queue on shutdown")
	}
}
