package booking

import "fmt"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusPaid       Status = "PAID"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDelivered  Status = "DELIVERED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDisputed   Status = "DISPUTED"
)

var AllStatuses = []Status{
	StatusPending, StatusAccepted, StatusPaid, StatusInProgress,
	StatusDelivered, StatusCompleted, StatusCancelled, StatusDisputed,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status: %s", s)
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type Action string

const (
	ActionAccept  Action = "ACCEPT"
	ActionReject  Action = "REJECT"
	ActionPay     Action = "PAY"
	ActionDeliver Action = "DELIVER"
	ActionApprove Action = "APPROVE"
	ActionDispute Action = "DISPUTE"
	ActionCancel  Action = "CANCEL"
)

var AllActions = []Action{
	ActionAccept, ActionReject, ActionPay, ActionDeliver,
	ActionApprove, ActionDispute, ActionCancel,
}

func ParseAction(s string) (Action, error) {
	for _, a := range AllActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %s", s)
}

type Role string

const (
	RoleAdvertiser Role = "ADVERTISER"
	RolePublisher  Role = "PUBLISHER"
	RoleAdmin      Role = "ADMIN"
)

var AllRoles = []Role{RoleAdvertiser, RolePublisher, RoleAdmin}

func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role: %s", s)
}

// actionRoles lists the non-admin role allowed to invoke each action.
// CANCEL has no entry: only ADMIN may request it.
var actionRoles = map[Action]Role{
	ActionAccept:  RolePublisher,
	ActionReject:  RolePublisher,
	ActionDeliver: RolePublisher,
	ActionPay:     RoleAdvertiser,
	ActionApprove: RoleAdvertiser,
	ActionDispute: RoleAdvertiser,
}

// Authorize decides whether role may invoke action, independent of booking state.
// Unknown roles and actions are denied.
func Authorize(role Role, action Action) bool {
	if role == RoleAdmin {
		for _, a := range AllActions {
			if a == action {
				return true
			}
		}
		return false
	}
	allowed, ok := actionRoles[action]
	return ok && allowed == role
}

type edge struct {
	from   Status
	action Action
}

var transitions = map[edge]Status{
	{StatusPending, ActionAccept}:    StatusAccepted,
	{StatusPending, ActionReject}:    StatusCancelled,
	{StatusAccepted, ActionPay}:      StatusPaid,
	{StatusPaid, ActionDeliver}:      StatusDelivered,
	{StatusDelivered, ActionApprove}: StatusCompleted,
	{StatusDelivered, ActionDispute}: StatusDisputed,
}

// NextStatus looks up the transition table row for (from, action).
func NextStatus(from Status, action Action) (Status, bool) {
	next, ok := transitions[edge{from, action}]
	return next, ok
}

// ActionsFrom returns the actions the table allows out of s, in AllActions order.
func ActionsFrom(s Status) []Action {
	var out []Action
	for _, a := range AllActions {
		if _, ok := NextStatus(s, a); ok {
			out = append(out, a)
		}
	}
	return out
}
