package models

import "time"

// Notification kinds published by the dispatcher.
const (
	NotifyBuyerOrderPaid   = "order.paid.buyer"
	NotifyBuyerOrderStatus = "order.status.buyer"
	NotifySellerNewOrder   = "order.new.seller"
)

// OrderNotification is the event streamed to the notification topics. Email
// and in-app senders consume these downstream; the engine never waits on them.
type OrderNotification struct {
	Kind        string    `json:"kind"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	StoreID     string    `json:"store_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}
