/*
order.go - Order status lifecycle and transition table

PURPOSE:
  Defines the closed set of order statuses, the actions that move an order
  between them, and the declarative transition table the engine consults
  before applying any ledger effect.

LIFECYCLE:

  initiated ──accept──▶ accepted ──ship──▶ shipped ──confirm──▶ completed
      │                                       │
    reject                                 dispute
      │                                       │
      ▼                                       ▼
  cancelled                               disputed

  completed, cancelled, and disputed are terminal: no action moves an order
  out of them. Orders in terminal states are retained for history.

AUTHORITY:
  Each action names which party may perform it. Authority is validated in
  the engine, not in whatever surface renders the buttons: a non-party actor
  always gets ErrInvalidTransition, whatever the order's status.

IDEMPOTENT REJECTION:
  Applying the same action twice succeeds once; the second attempt observes
  the now-different status and fails with ErrInvalidTransition without
  touching any balance. This is what makes settlement exactly-once.

SEE ALSO:
  - engine.go: Applies transitions atomically with their ledger effects
  - ledger.go: The movements named in the table
*/
package escrow

// =============================================================================
// ORDER STATUS - Closed enum
// =============================================================================

type OrderStatus string

const (
	StatusInitiated OrderStatus = "initiated"
	StatusAccepted  OrderStatus = "accepted"
	StatusShipped   OrderStatus = "shipped"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusDisputed  OrderStatus = "disputed"
)

// Terminal reports whether no further transition can leave the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// Valid reports whether s names one of the defined statuses. Used when
// restoring snapshots from a persistence layer the engine does not trust.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusAccepted, StatusShipped,
		StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionShip    Action = "ship"
	ActionConfirm Action = "confirm"
	ActionDispute Action = "dispute"
)

// ParseAction maps an action name to its Action, reporting whether the name
// is one of the defined actions.
func ParseAction(name string) (Action, bool) {
	switch Action(name) {
	case ActionAccept, ActionReject, ActionShip, ActionConfirm, ActionDispute:
		return Action(name), true
	}
	return "", false
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// ledgerEffect names the balance movement a transition triggers.
type ledgerEffect int

const (
	effectNone ledgerEffect = iota
	effectRefund
	effectRelease
)

// transitionRule is one row of the table: who may act, from which status,
// to which status, with which ledger and log side effects.
type transitionRule struct {
	actor      Role
	from       OrderStatus
	to         OrderStatus
	effect     ledgerEffect
	logsRecord bool // append a settlement record on success
}

// transitions is the authoritative table. Order creation is not listed here:
// creation is the buyer-only entry transition into StatusInitiated, with its
// hold applied by the engine before the order exists.
var transitions = map[Action]transitionRule{
	ActionAccept:  {actor: RoleSeller, from: StatusInitiated, to: StatusAccepted, effect: effectNone},
	ActionReject:  {actor: RoleSeller, from: StatusInitiated, to: StatusCancelled, effect: effectRefund},
	ActionShip:    {actor: RoleSeller, from: StatusAccepted, to: StatusShipped, effect: effectNone},
	ActionConfirm: {actor: RoleBuyer, from: StatusShipped, to: StatusCompleted, effect: effectRelease, logsRecord: true},
	ActionDispute: {actor: RoleBuyer, from: StatusShipped, to: StatusDisputed, effect: effectNone},
}

// validate checks actor authority and status precondition for applying
// action to order. Returns the rule on success, or InvalidTransitionError.
func validate(order Order, actor string, action Action) (transitionRule, error) {
	rule, ok := transitions[action]
	if !ok {
		return transitionRule{}, &InvalidTransitionError{
			OrderID: order.ID, Action: action, Status: order.Status, Actor: actor, Reason: "action",
		}
	}
	if !order.Involves(actor, rule.actor) {
		return transitionRule{}, &InvalidTransitionError{
			OrderID: order.ID, Action: action, Status: order.Status, Actor: actor, Reason: "authority",
		}
	}
	if order.Status != rule.from {
		return transitionRule{}, &InvalidTransitionError{
			OrderID: order.ID, Action: action, Status: order.Status, Actor: actor, Reason: "status",
		}
	}
	return rule, nil
}
