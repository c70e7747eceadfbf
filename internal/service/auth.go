package service

import (
	"errors"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden")

const RoleAdmin = "admin"

// Actor is the authenticated caller as reported by the outer layer.
// Authentication itself happens outside this module.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Action string

const (
	ActionTriggerPayout Action = "gameya.payout"
	ActionApproveLoan   Action = "loan.approve"
	ActionRejectLoan    Action = "loan.reject"
	ActionRepayLoan     Action = "loan.repay"
	ActionViewLoans     Action = "loan.view"
)

// Authorize is the single capability check for role-gated operations.
// ownerID is the resource owner (gameya creator, loan borrower).
func Authorize(actor Actor, action Action, ownerID uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}
	switch action {
	case ActionTriggerPayout, ActionRepayLoan, ActionViewLoans:
		if actor.UserID == ownerID {
			return nil
		}
	}
	return ErrForbidden
}
