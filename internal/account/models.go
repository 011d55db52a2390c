package account

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeSavings Type = "savings"
	TypeCurrent Type = "current"
)

func (t Type) Valid() bool {
	return t == TypeSavings || t == TypeCurrent
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// statusTransitions lists the administrative moves allowed from each status.
// Closed is terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusClosed},
	StatusActive:    {StatusSuspended, StatusClosed},
	StatusSuspended: {StatusActive, StatusClosed},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Account struct {
	ID        string          `json:"id"`
	Number    string          `json:"account_number"`
	UserID    string          `json:"user_id"`
	Type      Type            `json:"account_type"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}
