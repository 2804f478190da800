package models

import "time"

// Order status transitions beyond pending are driven by the payment
// provider and live outside this service.
const OrderStatusPending = "pending"

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Variant   string  `json:"variant,omitempty"`
	License   License `json:"license"`
	UnitPrice int64   `json:"unit_price"`
}

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Currency  Currency    `json:"currency"`
	Total     int64       `json:"total"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}
