package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDeposit     Type = "deposit"
	TypeWithdrawal  Type = "withdrawal"
	TypeTransfer    Type = "transfer"
	TypeCardPayment Type = "card_payment"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypeCardPayment:
		return true
	}
	return false
}

// SingleEntry reports whether the type may be recorded against one account.
func (t Type) SingleEntry() bool {
	return t == TypeDeposit || t == TypeWithdrawal || t == TypeCardPayment
}

// Signed returns amount with the sign this type applies to the balance.
func (t Type) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TypeDeposit {
		return amount
	}
	return amount.Neg()
}

type Transaction struct {
	ID                 string          `json:"id"`
	Reference          string          `json:"reference"`
	RequestID          string          `json:"request_id,omitempty"`
	AccountID          string          `json:"account_id"`
	Type               Type            `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	BalanceBefore      decimal.Decimal `json:"balance_before"`
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	Status             Status          `json:"status"`
	Description        string          `json:"description"`
	RecipientAccountID *string         `json:"recipient_account_id,omitempty"`
	RecipientName      *string         `json:"recipient_name,omitempty"`
	// CounterpartID links the two rows of a transfer.
	CounterpartID    *string    `json:"counterpart_id,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
	InitiatedBy      string     `json:"initiated_by,omitempty"`
	ApprovedBy       *string    `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type EntryRequest struct {
	RequestID   string
	AccountID   string
	Type        Type
	Amount      decimal.Decimal
	Description string
	InitiatedBy string
}

// ReviewRequest names the pending transaction an approver acts on.
type ReviewRequest struct {
	RequestID     string
	TransactionID string
	ApproverID    string
}

type TransferRequest struct {
	RequestID     string
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Description   string
	RecipientName string
	InitiatedBy   string
}

// TransferResult holds the two rows written by one transfer.
type TransferResult struct {
	Debit  *Transaction `json:"debit"`
	Credit *Transaction `json:"credit"`
}
