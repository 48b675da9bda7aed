package redisx

import "time"

const (
	// Cached order status: order_status:{order_id} -> "pending" | "authorized" | "captured"
	KeyOrderStatus = "order_status:%d"

	// Mock fulfillment stock: stock:{sku} -> available qty
	KeyStock = "stock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLStock       = time.Hour
	TTLDedup       = 48 * time.Hour
)
