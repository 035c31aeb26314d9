package order

import "time"

// Status is the order lifecycle state. PENDING is the initial state; SHIPPED
// and DELIVERED are forward states owned by fulfillment flows, not by this
// service.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// CanCancel reports whether cancellation is a legal transition from s.
func (s Status) CanCancel() bool {
	return s == StatusPending || s == StatusProcessing
}

type Order struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status Status `json:"status"`
	// NUMERIC -> string
	Total     string    `json:"total"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// price snapshot at purchase time, immutable after creation
	Price string `json:"price"`
}
