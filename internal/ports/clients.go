package ports

import "context"

// OrderSnapshot is the engine's read-only view of an order. The engine never
// writes order state; the affiliate linkage is stamped by checkout itself.
type OrderSnapshot struct {
	OrderID      string
	AffiliateID  string
	Total        float64
	Currency     string
	PaymentState string
}

// OrderReader fetches order state from the checkout/order module. The
// reconciliation listener falls back to it when an inbound payment event
// arrives without the order fields it needs.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (OrderSnapshot, error)
}
