package order

// CreateOrderItem is one checkout line.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"  example:"2"`
}

// CreateOrderRequest is the checkout payload. The user comes from the
// session, never from the body.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	Address string            `json:"address" example:"Av. Siempre Viva 742"`
	Items   []CreateOrderItem `json:"items"`
}

// OrderResponse is an order plus its items.
// swagger:model OrderResponse
type OrderResponse struct {
	Order Order  `json:"order"`
	Items []Item `json:"items,omitempty"`
}

// CancelOrderResponse confirms a cancellation.
// swagger:model CancelOrderResponse
type CancelOrderResponse struct {
	Message string `json:"message" example:"order cancelled"`
	Order   Order  `json:"order"`
}
