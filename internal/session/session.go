// Package session carries the authenticated restaurant context. It is built
// once by the (external) auth flow and injected into services, never read
// from a package-level global.
package session

// Role is the closed set of staff roles.
type Role string

const (
	RoleKitchen  Role = "kitchen"
	RoleWaiter   Role = "waiter"
	RoleCashier  Role = "cashier"
	RoleDelivery Role = "delivery"
	RoleManager  Role = "manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleKitchen, RoleWaiter, RoleCashier, RoleDelivery, RoleManager:
		return true
	}
	return false
}

// Action is one capability a role may hold.
type Action string

const (
	ActionStartPreparing Action = "start_preparing" // "Cook Now"
	ActionMarkReady      Action = "mark_ready"      // "Order Ready"
	ActionServe          Action = "serve"           // "Call Waiter", dine-in
	ActionHandOff        Action = "hand_off"        // delivery handoff path
	ActionCancel         Action = "cancel"
	ActionSettle         Action = "settle" // billing flow, served -> paid
	ActionSplitBill      Action = "split_bill"
	ActionAssignRider    Action = "assign_rider"
	ActionToggleRider    Action = "toggle_rider"
	ActionReportLocation Action = "report_location"
)

// capabilities is computed once; role checks across the app are lookups, not
// ad hoc string comparisons.
var capabilities = map[Role][]Action{
	RoleKitchen:  {ActionStartPreparing, ActionMarkReady},
	RoleWaiter:   {ActionServe, ActionCancel},
	RoleCashier:  {ActionSettle, ActionSplitBill, ActionCancel},
	RoleDelivery: {ActionHandOff, ActionReportLocation},
	RoleManager: {
		ActionStartPreparing, ActionMarkReady, ActionServe, ActionHandOff,
		ActionCancel, ActionSettle, ActionSplitBill, ActionAssignRider,
		ActionToggleRider, ActionReportLocation,
	},
}

// Session is the explicit auth/restaurant context object.
type Session struct {
	RestaurantID int64
	Actor        string
	Role         Role

	caps map[Action]struct{}
}

func New(restaurantID int64, actor string, role Role) *Session {
	caps := make(map[Action]struct{}, len(capabilities[role]))
	for _, a := range capabilities[role] {
		caps[a] = struct{}{}
	}
	return &Session{RestaurantID: restaurantID, Actor: actor, Role: role, caps: caps}
}

func (s *Session) Can(a Action) bool {
	if s == nil {
		return false
	}
	_, ok := s.caps[a]
	return ok
}
