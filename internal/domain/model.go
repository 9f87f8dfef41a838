package domain

import "time"

// All monetary fields are in the smallest currency unit.

type Order struct {
	ID           int64       `json:"id"`
	RestaurantID int64       `json:"restaurant_id"`
	Number       string      `json:"order_number"`
	Status       OrderStatus `json:"status"`
	IsPriority   bool        `json:"is_priority"`
	TableNumber  *int        `json:"table_number,omitempty"` // nil means delivery/takeout
	Subtotal     int64       `json:"subtotal"`
	Tax          int64       `json:"tax"`
	Discount     int64       `json:"discount"`
	Total        int64       `json:"total"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Items        []OrderItem `json:"items,omitempty"`
}

// DineIn reports whether the order is served at a table. Orders without a
// table follow the delivery sub-lifecycle instead of ready->served.
func (o Order) DineIn() bool { return o.TableNumber != nil }

type OrderItem struct {
	ID                  int64           `json:"id"`
	OrderID             int64           `json:"order_id"`
	Name                string          `json:"name"` // snapshot at order time
	UnitPrice           int64           `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	Subtotal            int64           `json:"subtotal"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Customizations      []Customization `json:"customizations,omitempty"`
}

type Customization struct {
	Name      string `json:"name"`
	Surcharge int64  `json:"surcharge"`
}

type Delivery struct {
	ID            int64          `json:"id"`
	OrderID       int64          `json:"order_id"`
	RiderID       *int64         `json:"rider_id,omitempty"`
	Status        DeliveryStatus `json:"status"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
	Address       string         `json:"address"`
	Destination   LatLng         `json:"destination"`
	Pickup        LatLng         `json:"pickup"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Rider struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Phone    string         `json:"phone"`
	Status   RiderStatus    `json:"status"`
	Location *RiderLocation `json:"current_location,omitempty"`
}

// RiderLocation is the most recent accepted sample only; history is not
// retained by this subsystem.
type RiderLocation struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Heading    *float64  `json:"heading,omitempty"`
	SpeedKMH   *float64  `json:"speed,omitempty"` // km/h; nil when the device reported no speed
	RecordedAt time.Time `json:"updated_at"`
}

// LocationSample is one raw GPS fix as reported by a rider device. Speed is
// in m/s as devices report it; ingestion normalizes to km/h.
type LocationSample struct {
	RiderID         int64     `json:"rider_id"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Accuracy        float64   `json:"accuracy"`
	Heading         *float64  `json:"heading,omitempty"`
	SpeedMS         *float64  `json:"speed,omitempty"`
	OrderID         *int64    `json:"order_id,omitempty"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}

type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCard   PaymentMethod = "card"
	PayMobile PaymentMethod = "mobile"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayMobile:
		return true
	}
	return false
}

// Split is one payer's share of a bill. Splits are computed, not persisted,
// until payment confirmation.
type Split struct {
	Number  int           `json:"split_number"`
	Amount  int64         `json:"amount"`
	ItemIDs []int64       `json:"items,omitempty"` // by-item splits only
	Method  PaymentMethod `json:"payment_method,omitempty"`
	Label   string        `json:"label,omitempty"`
}

type StatusChange struct {
	OrderID   int64       `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
}
