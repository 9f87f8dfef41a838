package domain

import "time"

type CreateOrderItemRequest struct {
	Name                string          `json:"name"`
	UnitPrice           int64           `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Customizations      []Customization `json:"customizations,omitempty"`
}

type CreateOrderRequest struct {
	TableNumber *int                     `json:"table_number,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	Discount    int64                    `json:"discount,omitempty"`
	IsPriority  bool                     `json:"is_priority,omitempty"`
	Items       []CreateOrderItemRequest `json:"items"`
}

type CreateOrderResponse struct {
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`
	Total       int64       `json:"total"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

type CreateRiderRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type AvailabilityRequest struct {
	Online bool `json:"online"`
}

type AssignDeliveryRequest struct {
	OrderNumber   string `json:"order_number"`
	RiderID       int64  `json:"rider_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Address       string `json:"address"`
	Destination   LatLng `json:"destination"`
}

type DeliveryStatusRequest struct {
	Status DeliveryStatus `json:"status"`
}

// TrackingView is the customer-facing tracking payload, polled every 30s.
type TrackingView struct {
	Order         TrackingOrder     `json:"order"`
	Delivery      *TrackingDelivery `json:"delivery,omitempty"`
	RiderLocation *RiderLocation    `json:"rider_location"`
	Restaurant    TrackingPlace     `json:"restaurant"`
	ETAMinutes    *int              `json:"eta_minutes"`
	Timeline      []StatusChange    `json:"timeline,omitempty"`
}

type TrackingOrder struct {
	Number    string      `json:"order_number"`
	Status    OrderStatus `json:"status"`
	Total     int64       `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}

type TrackingDelivery struct {
	Status          DeliveryStatus `json:"status"`
	CustomerName    string         `json:"customer_name"`
	DeliveryAddress string         `json:"delivery_address"`
	Destination     LatLng         `json:"destination"`
	Pickup          LatLng         `json:"pickup"`
	Rider           *TrackingRider `json:"rider,omitempty"`
}

type TrackingRider struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	IsOnline bool   `json:"is_online"`
}

type TrackingPlace struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}
