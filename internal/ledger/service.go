package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/audit"
)

const (
	opSingleEntry = "single_entry"
	opTransfer    = "transfer"
	opApprove     = "approve"
	opReject      = "reject"
)

// amountScale matches the DECIMAL(19, 4) money columns.
const amountScale = 4

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(amountScale))
}

type Service struct {
	repo      Repository
	auditRepo audit.Repository
	logger    *slog.Logger
	threshold decimal.Decimal
	observer  BalanceObserver
	now       func() time.Time
}

type Option func(*Service)

func WithBalanceObserver(observer BalanceObserver) Option {
	return func(s *Service) { s.observer = observer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a ledger. Single-entry amounts strictly above threshold
// are deferred for approval.
func NewService(repo Repository, auditRepo audit.Repository, logger *slog.Logger, threshold decimal.Decimal, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		auditRepo: auditRepo,
		logger:    logger,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Threshold() decimal.Decimal {
	return s.threshold
}

// RecordSingleEntry applies a deposit, withdrawal or card payment to one
// account, or parks it as pending when it needs approval.
func (s *Service) RecordSingleEntry(ctx context.Context, req EntryRequest) (*Transaction, error) {
	started := time.Now()

	s.logger.Info("single entry started",
		"request_id", req.RequestID,
		"account_id", req.AccountID,
		"type", req.Type,
		"amount", req.Amount.String(),
	)

	txn, err := s.recordSingleEntry(ctx, req)
	observe(opSingleEntry, started, err)

	txnID := ""
	if txn != nil {
		txnID = txn.ID
	}
	s.writeAudit(ctx, req.RequestID, opSingleEntry, req.InitiatedBy, req.AccountID, txnID, err)

	if err != nil {
		s.logger.Warn("single entry failed",
			"request_id", req.RequestID,
			"account_id", req.AccountID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("single entry recorded",
		"request_id", req.RequestID,
		"txn_id", txn.ID,
		"status", txn.Status,
	)

	if txn.Status == StatusCompleted {
		s.notify(ctx, txn.AccountID, txn.BalanceAfter, txn.CreatedAt)
	}
	return txn, nil
}

func (s *Service) recordSingleEntry(ctx context.Context, req EntryRequest) (*Transaction, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if !req.Type.SingleEntry() {
		return nil, ErrInvalidType
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	acc, err := tx.GetAccountForUpdate(ctx, req.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, ErrAccountNotActive
	}

	after := acc.Balance.Add(req.Type.Signed(req.Amount))
	if after.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	now := s.now()
	txn := &Transaction{
		ID:               uuid.NewString(),
		Reference:        newReference(now),
		RequestID:        req.RequestID,
		AccountID:        acc.ID,
		Type:             req.Type,
		Amount:           req.Amount,
		BalanceBefore:    acc.Balance,
		BalanceAfter:     after,
		Status:           StatusCompleted,
		Description:      req.Description,
		RequiresApproval: req.Amount.GreaterThan(s.threshold),
		InitiatedBy:      req.InitiatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	eventType := EventTransactionCompleted
	if txn.RequiresApproval {
		txn.Status = StatusPending
		eventType = EventTransactionPendingApproval
	} else {
		if err := tx.UpdateAccountBalance(ctx, acc.ID, after, now); err != nil {
			return nil, err
		}
	}

	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	event, err := transactionEvent(eventType, txn, now)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertEvent(ctx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return txn, nil
}

// Transfer moves money between two accounts as a linked debit/credit pair.
// Transfers are never deferred for approval.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	started := time.Now()

	s.logger.Info("transfer started",
		"request_id", req.RequestID,
		"from", req.FromAccountID,
		"to", req.ToAccountID,
		"amount", req.Amount.String(),
	)

	res, err := s.transfer(ctx, req)
	observe(opTransfer, started, err)

	txnID := ""
	if res != nil {
		txnID = res.Debit.ID
	}
	s.writeAudit(ctx, req.RequestID, opTransfer, req.InitiatedBy, req.FromAccountID, txnID, err)

	if err != nil {
		s.logger.Warn("transfer failed",
			"request_id", req.RequestID,
			"from", req.FromAccountID,
			"to", req.ToAccountID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("transfer successful",
		"request_id", req.RequestID,
		"debit_txn_id", res.Debit.ID,
		"credit_txn_id", res.Credit.ID,
	)

	s.notify(ctx, res.Debit.AccountID, res.Debit.BalanceAfter, res.Debit.CreatedAt)
	s.notify(ctx, res.Credit.AccountID, res.Credit.BalanceAfter, res.Credit.CreatedAt)
	return res, nil
}

func (s *Service) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccount
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	// Deadlock prevention: lock in ascending id order regardless of direction.
	firstID, secondID := req.FromAccountID, req.ToAccountID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	locked := make(map[string]*account.Account, 2)
	for _, id := range []string{firstID, secondID} {
		acc, err := tx.GetAccountForUpdate(ctx, id)
		if errors.Is(err, account.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}

	sender, ok := locked[req.FromAccountID]
	if !ok {
		return nil, ErrSourceNotFound
	}
	receiver, ok := locked[req.ToAccountID]
	if !ok {
		return nil, ErrDestinationNotFound
	}
	if !sender.IsActive() {
		return nil, ErrSourceInactive
	}
	if !receiver.IsActive() {
		return nil, ErrDestinationInactive
	}
	if sender.Currency != receiver.Currency {
		return nil, ErrCurrencyMismatch
	}
	if sender.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	now := s.now()
	reference := newReference(now)
	debitID, creditID := uuid.NewString(), uuid.NewString()
	toID := receiver.ID

	var recipientName *string
	if name := strings.TrimSpace(req.RecipientName); name != "" {
		recipientName = &name
	}

	debit := &Transaction{
		ID:                 debitID,
		Reference:          reference,
		RequestID:          req.RequestID,
		AccountID:          sender.ID,
		Type:               TypeTransfer,
		Amount:             req.Amount,
		BalanceBefore:      sender.Balance,
		BalanceAfter:       sender.Balance.Sub(req.Amount),
		Status:             StatusCompleted,
		Description:        req.Description,
		RecipientAccountID: &toID,
		RecipientName:      recipientName,
		CounterpartID:      &creditID,
		InitiatedBy:        req.InitiatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	credit := &Transaction{
		ID:                 creditID,
		Reference:          reference,
		RequestID:          req.RequestID,
		AccountID:          receiver.ID,
		Type:               TypeDeposit,
		Amount:             req.Amount,
		BalanceBefore:      receiver.Balance,
		BalanceAfter:       receiver.Balance.Add(req.Amount),
		Status:             StatusCompleted,
		Description:        req.Description,
		RecipientAccountID: &toID,
		RecipientName:      recipientName,
		CounterpartID:      &debitID,
		InitiatedBy:        req.InitiatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := tx.UpdateAccountBalance(ctx, sender.ID, debit.BalanceAfter, now); err != nil {
		return nil, err
	}
	if err := tx.UpdateAccountBalance(ctx, receiver.ID, credit.BalanceAfter, now); err != nil {
		return nil, err
	}
	if err := tx.InsertTransaction(ctx, debit); err != nil {
		return nil, err
	}
	if err := tx.InsertTransaction(ctx, credit); err != nil {
		return nil, err
	}

	res := &TransferResult{Debit: debit, Credit: credit}
	event, err := transferEvent(res, now)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertEvent(ctx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return res, nil
}

func (s *Service) notify(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) {
	if s.observer == nil {
		return
	}
	if err := s.observer.BalanceChanged(ctx, accountID, balance, at); err != nil {
		s.logger.Warn("balance observer failed",
			"account_id", accountID,
			"error", err,
		)
	}
}

func (s *Service) writeAudit(ctx context.Context, requestID, action, actor, accountID, txnID string, opErr error) {
	if s.auditRepo == nil {
		return
	}

	entry := &audit.AuditLog{
		RequestID:     requestID,
		Action:        action,
		Status:        audit.StatusSuccess,
		Actor:         actor,
		AccountID:     accountID,
		TransactionID: txnID,
		CreatedAt:     s.now(),
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.Status = audit.StatusFailed
		entry.Message = &msg
	}

	// Audit even when the caller's context is already gone.
	if err := s.auditRepo.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("audit log write failed",
			"request_id", requestID,
			"action", action,
			"error", err,
		)
	}
}

// newReference returns a human-readable id such as TXN20260114A1B2C3D4.
func newReference(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "TXN" + at.UTC().Format("20060102") + suffix
}
