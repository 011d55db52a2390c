package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"corebank/internal/account"
)

// Approve applies a pending transaction. The balance is rechecked under lock:
// the signed amount is applied to the balance as it is now, and the approval
// fails with ErrStaleApproval if that would overdraw the account. The row's
// balance snapshots are refreshed to the instant the change is applied.
func (s *Service) Approve(ctx context.Context, req ReviewRequest) (*Transaction, error) {
	started := time.Now()
	requestID, txnID, approverID := req.RequestID, req.TransactionID, req.ApproverID

	txn, err := s.approve(ctx, txnID, approverID)
	observe(opApprove, started, err)

	accountID := ""
	if txn != nil {
		accountID = txn.AccountID
	}
	s.writeAudit(ctx, requestID, opApprove, approverID, accountID, txnID, err)

	if err != nil {
		s.logger.Warn("approval failed",
			"request_id", requestID,
			"txn_id", txnID,
			"approver", approverID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("transaction approved",
		"request_id", requestID,
		"txn_id", txn.ID,
		"approver", approverID,
		"balance_after", txn.BalanceAfter.String(),
	)

	s.notify(ctx, txn.AccountID, txn.BalanceAfter, txn.UpdatedAt)
	return txn, nil
}

func (s *Service) approve(ctx context.Context, txnID, approverID string) (*Transaction, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, ErrInvalidCaller
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	// Lock order: transaction row, then its account.
	txn, err := tx.GetTransactionForUpdate(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != StatusPending {
		return nil, fmt.Errorf("%w: transaction %s is %s", ErrNotPending, txn.ID, txn.Status)
	}
	if txn.InitiatedBy != "" && txn.InitiatedBy == approverID {
		return nil, ErrSelfApproval
	}

	acc, err := tx.GetAccountForUpdate(ctx, txn.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, ErrAccountNotActive
	}

	after := acc.Balance.Add(txn.Type.Signed(txn.Amount))
	if after.IsNegative() {
		return nil, ErrStaleApproval
	}

	now := s.now()
	if err := txn.approve(approverID, now); err != nil {
		return nil, err
	}
	txn.BalanceBefore = acc.Balance
	txn.BalanceAfter = after

	if err := tx.UpdateAccountBalance(ctx, acc.ID, after, now); err != nil {
		return nil, err
	}
	if err := tx.UpdateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	event, err := transactionEvent(EventTransactionApproved, txn, now)
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

// Reject closes a pending transaction without touching the balance. A second
// reject, or an approve after reject, fails with ErrNotPending.
func (s *Service) Reject(ctx context.Context, req ReviewRequest) (*Transaction, error) {
	started := time.Now()
	requestID, txnID, approverID := req.RequestID, req.TransactionID, req.ApproverID

	txn, err := s.reject(ctx, txnID, approverID)
	observe(opReject, started, err)

	accountID := ""
	if txn != nil {
		accountID = txn.AccountID
	}
	s.writeAudit(ctx, requestID, opReject, approverID, accountID, txnID, err)

	if err != nil {
		s.logger.Warn("rejection failed",
			"request_id", requestID,
			"txn_id", txnID,
			"approver", approverID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("transaction rejected",
		"request_id", requestID,
		"txn_id", txn.ID,
		"approver", approverID,
	)
	return txn, nil
}

func (s *Service) reject(ctx context.Context, txnID, approverID string) (*Transaction, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, ErrInvalidCaller
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	txn, err := tx.GetTransactionForUpdate(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != StatusPending {
		return nil, fmt.Errorf("%w: transaction %s is %s", ErrNotPending, txn.ID, txn.Status)
	}
	if txn.InitiatedBy != "" && txn.InitiatedBy == approverID {
		return nil, ErrSelfApproval
	}

	now := s.now()
	if err := txn.reject(approverID, now); err != nil {
		return nil, err
	}
	if err := tx.UpdateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	event, err := transactionEvent(EventTransactionRejected, txn, now)
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
