package model

import "time"

// Order status codes. The numeric values are part of the persisted format
// and of the operator API; both customer and operator surfaces use this
// single enumeration.
type OrderStatus int

const (
	StatusPlaced       OrderStatus = 1
	StatusConsolidated OrderStatus = 2
	StatusShipped      OrderStatus = 3
	StatusDelivered    OrderStatus = 4
)

var statusLabels = map[OrderStatus]string{
	StatusPlaced:       "placed",
	StatusConsolidated: "consolidated",
	StatusShipped:      "shipped",
	StatusDelivered:    "delivered",
}

// Label returns the human-readable name for a status code.
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "unknown"
}

// Valid reports whether s is a known status code.
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// OrderItem is a single line item. Items are immutable after order creation.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// StatusChange is one entry in an order's append-only status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Notes     string      `json:"notes,omitempty"`
}

// Order is the order entity. The customer fields are a snapshot taken at
// order time and are not re-synchronized with the customer's profile.
type Order struct {
	ID             string         `json:"id"`
	OrderNumber    string         `json:"order_number"`
	CustomerID     string         `json:"customer_id"`
	CustomerEmail  string         `json:"customer_email"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone,omitempty"`
	Items          []OrderItem    `json:"items"`
	Total          int            `json:"total"`
	Status         OrderStatus    `json:"status"`
	StatusHistory  []StatusChange `json:"status_history"`
	TrackingNumber string         `json:"tracking_number,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Product availability, derived from the stock count.
const (
	ProductActive   = "active"
	ProductInactive = "inactive"
)

// Product is one denormalized copy of a product inside a named projection
// collection. The same logical product may exist in several collections;
// the stock ledger keeps their Stock fields in agreement.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitPrice int       `json:"unit_price"`
	Image     string    `json:"image,omitempty"`
	Stock     int       `json:"stock"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert types and priorities.
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// StockAlert is a durable record of a stock threshold crossing.
type StockAlert struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold,omitempty"`
	Priority     string    `json:"priority"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}

// Operator is an operator account for the admin API.
type Operator struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
