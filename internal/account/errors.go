package account

import "errors"

var (
	// ErrNotFound is returned by repositories when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateNumber signals an account number collision on insert.
	ErrDuplicateNumber = errors.New("account number already exists")
	// ErrNumberExhausted is returned when no free number was found within the retry budget.
	ErrNumberExhausted = errors.New("could not allocate a unique account number")
	ErrInvalidType     = errors.New("invalid account type")
	ErrInvalidUser     = errors.New("user id is required")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter ISO code")

	ErrInvalidStatusTransition = errors.New("account status transition not allowed")
	// ErrStatusConflict means the status changed between read and update.
	ErrStatusConflict = errors.New("account status changed concurrently")
)
