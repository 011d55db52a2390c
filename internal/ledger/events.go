package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/outbox"
)

const (
	EventTransactionCompleted       = "transaction.completed"
	EventTransactionPendingApproval = "transaction.pending_approval"
	EventTransactionApproved        = "transaction.approved"
	EventTransactionRejected        = "transaction.rejected"
	EventTransferCompleted          = "transfer.completed"
)

type transactionPayload struct {
	TransactionID string          `json:"transaction_id"`
	Reference     string          `json:"reference"`
	AccountID     string          `json:"account_id"`
	Type          Type            `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Status        Status          `json:"status"`
	ReviewedBy    *string         `json:"reviewed_by,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type transferPayload struct {
	DebitID       string          `json:"debit_transaction_id"`
	CreditID      string          `json:"credit_transaction_id"`
	Reference     string          `json:"reference"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func transactionEvent(eventType string, txn *Transaction, at time.Time) (*outbox.Event, error) {
	return outbox.NewEvent(eventType, txn.AccountID, transactionPayload{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		AccountID:     txn.AccountID,
		Type:          txn.Type,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Status:        txn.Status,
		ReviewedBy:    txn.ApprovedBy,
		OccurredAt:    at,
	}, at)
}

func transferEvent(res *TransferResult, at time.Time) (*outbox.Event, error) {
	return outbox.NewEvent(EventTransferCompleted, res.Debit.AccountID, transferPayload{
		DebitID:       res.Debit.ID,
		CreditID:      res.Credit.ID,
		Reference:     res.Debit.Reference,
		FromAccountID: res.Debit.AccountID,
		ToAccountID:   res.Credit.AccountID,
		Amount:        res.Debit.Amount,
		OccurredAt:    at,
	}, at)
}
