package ledger

import "errors"

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero with at most 4 decimal places")
	ErrInvalidType      = errors.New("transaction type not allowed for this operation")
	ErrSameAccount      = errors.New("cannot transfer to same account")
	ErrInvalidCaller    = errors.New("approver id is required")
	ErrSelfApproval     = errors.New("approver cannot review own transaction")
	ErrLockTimeout      = errors.New("timed out waiting for account lock")
	ErrStaleApproval    = errors.New("balance changed since creation; approval would overdraw account")
	ErrCurrencyMismatch = errors.New("accounts use different currencies")

	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotActive    = errors.New("account is not active")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSourceNotFound      = errors.New("source account not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrSourceInactive      = errors.New("source account is not active")
	ErrDestinationInactive = errors.New("destination account is not active")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotPending          = errors.New("transaction is not pending")
)
