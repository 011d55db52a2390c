package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebank/internal/account"
	"corebank/internal/audit"
	"corebank/internal/history"
	"corebank/internal/ledger"
	"corebank/internal/memstore"
	"corebank/pkg/logger"
)

type fixture struct {
	store    *memstore.Store
	accounts *account.Service
	ledger   *ledger.Service
}

func newFixture(t *testing.T, threshold string, opts ...ledger.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memstore.New(), threshold, opts...)
}

func newFixtureWithStore(t *testing.T, store *memstore.Store, threshold string, opts ...ledger.Option) *fixture {
	t.Helper()
	log := logger.Discard()
	return &fixture{
		store:    store,
		accounts: account.NewService(store, log, "USD"),
		ledger:   ledger.NewService(store, store, log, dec(t, threshold), opts...),
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// openAccount creates an active account and funds it with one deposit.
func (f *fixture) openAccount(t *testing.T, balance string) *account.Account {
	t.Helper()
	return f.openAccountIn(t, balance, "USD")
}

func (f *fixture) openAccountIn(t *testing.T, balance, currency string) *account.Account {
	t.Helper()
	ctx := context.Background()

	acc, err := f.accounts.Create(ctx, account.CreateRequest{
		UserID:   "user-1",
		Type:     account.TypeSavings,
		Currency: currency,
	})
	require.NoError(t, err)

	amount := dec(t, balance)
	if amount.IsPositive() {
		txn, err := f.ledger.RecordSingleEntry(ctx, ledger.EntryRequest{
			RequestID:   "seed-" + acc.ID,
			AccountID:   acc.ID,
			Type:        ledger.TypeDeposit,
			Amount:      amount,
			InitiatedBy: "seed",
		})
		require.NoError(t, err)
		require.Equal(t, ledger.StatusCompleted, txn.Status, "seed deposit must not need approval")
	}
	return acc
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) assertBalance(t *testing.T, id, want string) {
	t.Helper()
	got := f.balance(t, id)
	assert.True(t, got.Equal(dec(t, want)), "balance of %s: want %s, got %s", id, want, got)
}

func (f *fixture) rows(t *testing.T, accountID string) []ledger.Transaction {
	t.Helper()
	items, _, err := f.store.ListTransactions(context.Background(), history.Filter{
		AccountID: accountID,
		Page:      1,
		PageSize:  1000,
	})
	require.NoError(t, err)
	return items
}

func (f *fixture) entry(t *testing.T, accountID string, typ ledger.Type, amount string) (*ledger.Transaction, error) {
	t.Helper()
	return f.ledger.RecordSingleEntry(context.Background(), ledger.EntryRequest{
		RequestID:   "req-" + string(typ),
		AccountID:   accountID,
		Type:        typ,
		Amount:      dec(t, amount),
		Description: "test " + string(typ),
		InitiatedBy: "teller-1",
	})
}

func TestRecordSingleEntry_AppliesSignedDelta(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "1000")

	tests := []struct {
		typ    ledger.Type
		amount string
		before string
		after  string
	}{
		{ledger.TypeDeposit, "250.75", "1000", "1250.75"},
		{ledger.TypeWithdrawal, "50.75", "1250.75", "1200"},
		{ledger.TypeCardPayment, "200", "1200", "1000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			txn, err := f.entry(t, acc.ID, tt.typ, tt.amount)
			require.NoError(t, err)

			assert.Equal(t, ledger.StatusCompleted, txn.Status)
			assert.False(t, txn.RequiresApproval)
			assert.True(t, txn.BalanceBefore.Equal(dec(t, tt.before)))
			assert.True(t, txn.BalanceAfter.Equal(dec(t, tt.after)))
			assert.NotEmpty(t, txn.Reference)
			f.assertBalance(t, acc.ID, tt.after)
		})
	}
}

func TestRecordSingleEntry_InsufficientFunds(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "100")
	rowsBefore := len(f.rows(t, acc.ID))

	_, err := f.entry(t, acc.ID, ledger.TypeWithdrawal, "150")

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	f.assertBalance(t, acc.ID, "100")
	assert.Len(t, f.rows(t, acc.ID), rowsBefore)
}

func TestRecordSingleEntry_Rejections(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "100")
	suspended := f.openAccount(t, "100")
	_, err := f.accounts.Suspend(context.Background(), suspended.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		accountID string
		typ       ledger.Type
		amount    string
		want      error
	}{
		{"zero amount", acc.ID, ledger.TypeDeposit, "0", ledger.ErrInvalidAmount},
		{"negative amount", acc.ID, ledger.TypeDeposit, "-5", ledger.ErrInvalidAmount},
		{"sub-scale amount", acc.ID, ledger.TypeDeposit, "0.00005", ledger.ErrInvalidAmount},
		{"five decimals", acc.ID, ledger.TypeWithdrawal, "1.00001", ledger.ErrInvalidAmount},
		{"transfer type", acc.ID, ledger.TypeTransfer, "5", ledger.ErrInvalidType},
		{"unknown account", "missing", ledger.TypeDeposit, "5", ledger.ErrAccountNotFound},
		{"suspended account", suspended.ID, ledger.TypeDeposit, "5", ledger.ErrAccountNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.entry(t, tt.accountID, tt.typ, tt.amount)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	f.assertBalance(t, acc.ID, "100")
	f.assertBalance(t, suspended.ID, "100")
	assert.Len(t, f.rows(t, acc.ID), 1)
}

func TestTransfer_MovesMoneyAsLinkedPair(t *testing.T) {
	f := newFixture(t, "100000")
	a := f.openAccount(t, "1000")
	b := f.openAccount(t, "0")

	res, err := f.ledger.Transfer(context.Background(), ledger.TransferRequest{
		RequestID:     "req-transfer",
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        dec(t, "300"),
		Description:   "rent",
		RecipientName: "Bob",
		InitiatedBy:   "user-1",
	})
	require.NoError(t, err)

	f.assertBalance(t, a.ID, "700")
	f.assertBalance(t, b.ID, "300")

	debit, credit := res.Debit, res.Credit
	assert.Equal(t, ledger.TypeTransfer, debit.Type)
	assert.Equal(t, ledger.TypeDeposit, credit.Type)
	assert.Equal(t, ledger.StatusCompleted, debit.Status)
	assert.Equal(t, ledger.StatusCompleted, credit.Status)
	assert.True(t, debit.BalanceBefore.Equal(dec(t, "1000")))
	assert.True(t, debit.BalanceAfter.Equal(dec(t, "700")))
	assert.True(t, credit.BalanceBefore.Equal(dec(t, "0")))
	assert.True(t, credit.BalanceAfter.Equal(dec(t, "300")))
	assert.Equal(t, credit.ID, *debit.CounterpartID)
	assert.Equal(t, debit.ID, *credit.CounterpartID)
	assert.Equal(t, b.ID, *debit.RecipientAccountID)
	assert.Equal(t, "Bob", *debit.RecipientName)
	assert.Equal(t, debit.Reference, credit.Reference)
	assert.Equal(t, debit.CreatedAt, credit.CreatedAt)

	// seed deposit + debit on A, credit only on B
	assert.Len(t, f.rows(t, a.ID), 2)
	assert.Len(t, f.rows(t, b.ID), 1)
}

func TestTransfer_IsNeverDeferred(t *testing.T) {
	f := newFixture(t, "100")
	a := f.openAccount(t, "100")
	b := f.openAccount(t, "0")

	// push A above the threshold through an approved deposit
	pending, err := f.entry(t, a.ID, ledger.TypeDeposit, "900")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, pending.Status)
	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	require.NoError(t, err)

	res, err := f.ledger.Transfer(context.Background(), ledger.TransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        dec(t, "500"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, res.Debit.Status)
	assert.False(t, res.Debit.RequiresApproval)
	f.assertBalance(t, a.ID, "500")
	f.assertBalance(t, b.ID, "500")
}

func TestTransfer_FailuresLeaveNoTrace(t *testing.T) {
	f := newFixture(t, "100000")
	a := f.openAccount(t, "100")
	b := f.openAccount(t, "50")
	frozen := f.openAccount(t, "10")
	euro := f.openAccountIn(t, "10", "EUR")
	_, err := f.accounts.Suspend(context.Background(), frozen.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		from, to string
		amount   string
		want     error
	}{
		{"same account", a.ID, a.ID, "10", ledger.ErrSameAccount},
		{"zero amount", a.ID, b.ID, "0", ledger.ErrInvalidAmount},
		{"five decimals", a.ID, b.ID, "0.00001", ledger.ErrInvalidAmount},
		{"missing source", "missing", b.ID, "10", ledger.ErrSourceNotFound},
		{"missing destination", a.ID, "missing", "10", ledger.ErrDestinationNotFound},
		{"inactive source", frozen.ID, b.ID, "5", ledger.ErrSourceInactive},
		{"inactive destination", a.ID, frozen.ID, "5", ledger.ErrDestinationInactive},
		{"currency mismatch", a.ID, euro.ID, "5", ledger.ErrCurrencyMismatch},
		{"insufficient funds", a.ID, b.ID, "100.01", ledger.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Transfer(context.Background(), ledger.TransferRequest{
				FromAccountID: tt.from,
				ToAccountID:   tt.to,
				Amount:        dec(t, tt.amount),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	f.assertBalance(t, a.ID, "100")
	f.assertBalance(t, b.ID, "50")
	f.assertBalance(t, frozen.ID, "10")
	assert.Len(t, f.rows(t, a.ID), 1)
	assert.Len(t, f.rows(t, b.ID), 1)
}

func TestApproval_DeferredDepositAppliedOnApprove(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "500")

	txn, err := f.entry(t, acc.ID, ledger.TypeDeposit, "150000")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPending, txn.Status)
	assert.True(t, txn.RequiresApproval)
	assert.True(t, txn.BalanceAfter.Equal(dec(t, "150500")))
	f.assertBalance(t, acc.ID, "500")

	approved, err := f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "staff-1", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	f.assertBalance(t, acc.ID, "150500")

	stored, err := f.store.GetTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, stored.Status)
}

func TestApproval_ThresholdIsExclusive(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "0")

	txn, err := f.entry(t, acc.ID, ledger.TypeDeposit, "100000")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, txn.Status)
	f.assertBalance(t, acc.ID, "100000")
}

func TestApproval_PendingWithdrawalStillChecksFunds(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "50")

	_, err := f.entry(t, acc.ID, ledger.TypeWithdrawal, "150")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Len(t, f.rows(t, acc.ID), 1)
}

func TestReject_IsNotIdempotent(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "10")

	txn, err := f.entry(t, acc.ID, ledger.TypeDeposit, "500")
	require.NoError(t, err)

	rejected, err := f.ledger.Reject(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRejected, rejected.Status)

	_, err = f.ledger.Reject(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrNotPending)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-2"})
	assert.ErrorIs(t, err, ledger.ErrNotPending)

	f.assertBalance(t, acc.ID, "10")
}

func TestApprove_Twice(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "10")

	txn, err := f.entry(t, acc.ID, ledger.TypeDeposit, "500")
	require.NoError(t, err)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	require.NoError(t, err)
	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrNotPending)
	_, err = f.ledger.Reject(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrNotPending)

	f.assertBalance(t, acc.ID, "510")
}

func TestApprove_Rejections(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "10")

	txn, err := f.entry(t, acc.ID, ledger.TypeDeposit, "500")
	require.NoError(t, err)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "teller-1"})
	assert.ErrorIs(t, err, ledger.ErrSelfApproval)

	_, err = f.ledger.Reject(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: "teller-1"})
	assert.ErrorIs(t, err, ledger.ErrSelfApproval)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: txn.ID, ApproverID: " "})
	assert.ErrorIs(t, err, ledger.ErrInvalidCaller)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: "missing", ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	stored, err := f.store.GetTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, stored.Status)
	f.assertBalance(t, acc.ID, "10")
}

// A pending withdrawal computed against an old balance must not overdraw the
// account once other debits have landed in between.
func TestApprove_StaleApprovalIsRefused(t *testing.T) {
	f := newFixture(t, "500")
	acc := f.openAccount(t, "400")
	topUp, err := f.entry(t, acc.ID, ledger.TypeDeposit, "600")
	require.NoError(t, err)
	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: topUp.ID, ApproverID: "staff-1"})
	require.NoError(t, err)
	f.assertBalance(t, acc.ID, "1000")

	pending, err := f.entry(t, acc.ID, ledger.TypeWithdrawal, "800")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, pending.Status)
	assert.True(t, pending.BalanceAfter.Equal(dec(t, "200")))

	_, err = f.entry(t, acc.ID, ledger.TypeWithdrawal, "300")
	require.NoError(t, err)
	f.assertBalance(t, acc.ID, "700")

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrStaleApproval)

	f.assertBalance(t, acc.ID, "700")
	stored, err := f.store.GetTransaction(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, stored.Status)

	_, err = f.ledger.Reject(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	assert.NoError(t, err)
}

func TestApprove_AppliesDeltaToCurrentBalance(t *testing.T) {
	f := newFixture(t, "500")
	acc := f.openAccount(t, "100")

	pending, err := f.entry(t, acc.ID, ledger.TypeDeposit, "1000")
	require.NoError(t, err)

	_, err = f.entry(t, acc.ID, ledger.TypeDeposit, "50")
	require.NoError(t, err)

	approved, err := f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	require.NoError(t, err)

	assert.True(t, approved.BalanceBefore.Equal(dec(t, "150")))
	assert.True(t, approved.BalanceAfter.Equal(dec(t, "1150")))
	f.assertBalance(t, acc.ID, "1150")
}

func TestApprove_InactiveAccount(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "10")

	pending, err := f.entry(t, acc.ID, ledger.TypeDeposit, "500")
	require.NoError(t, err)
	_, err = f.accounts.Suspend(context.Background(), acc.ID)
	require.NoError(t, err)

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	assert.ErrorIs(t, err, ledger.ErrAccountNotActive)
	f.assertBalance(t, acc.ID, "10")
}

func TestConcurrentWithdrawals_Serialize(t *testing.T) {
	f := newFixture(t, "100000")
	acc := f.openAccount(t, "500")

	const workers = 100
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
		unexpected   []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordSingleEntry(context.Background(), ledger.EntryRequest{
				AccountID: acc.ID,
				Type:      ledger.TypeWithdrawal,
				Amount:    decimal.NewFromInt(10),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrInsufficientFunds):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, 50, successes)
	assert.Equal(t, 50, insufficient)
	f.assertBalance(t, acc.ID, "0")
}

func TestConcurrentOppositeTransfers_NoDeadlock(t *testing.T) {
	f := newFixture(t, "100000")
	a := f.openAccount(t, "10000")
	b := f.openAccount(t, "10000")

	const rounds = 200
	var wg sync.WaitGroup
	errs := make(chan error, rounds)

	for i := 0; i < rounds; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = b.ID, a.ID
		}
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			_, err := f.ledger.Transfer(context.Background(), ledger.TransferRequest{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        decimal.NewFromInt(7),
			})
			if err != nil {
				errs <- err
			}
		}(from, to)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transfers did not finish; lock ordering deadlocked")
	}
	close(errs)

	for err := range errs {
		t.Errorf("unexpected transfer error: %v", err)
	}
	f.assertBalance(t, a.ID, "10000")
	f.assertBalance(t, b.ID, "10000")
}

func TestConservation_RandomWorkload(t *testing.T) {
	f := newFixture(t, "100000")
	ctx := context.Background()

	accs := make([]*account.Account, 5)
	for i := range accs {
		accs[i] = f.openAccount(t, "1000")
	}
	external := dec(t, "5000")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := accs[i%len(accs)].ID
			dst := accs[(i*7+1)%len(accs)].ID
			amount := decimal.NewFromInt(int64(i%37 + 1))

			switch i % 3 {
			case 0:
				if _, err := f.ledger.RecordSingleEntry(ctx, ledger.EntryRequest{
					AccountID: src, Type: ledger.TypeDeposit, Amount: amount,
				}); err == nil {
					mu.Lock()
					external = external.Add(amount)
					mu.Unlock()
				}
			case 1:
				if _, err := f.ledger.RecordSingleEntry(ctx, ledger.EntryRequest{
					AccountID: src, Type: ledger.TypeWithdrawal, Amount: amount,
				}); err == nil {
					mu.Lock()
					external = external.Sub(amount)
					mu.Unlock()
				}
			default:
				if src != dst {
					_, _ = f.ledger.Transfer(ctx, ledger.TransferRequest{
						FromAccountID: src, ToAccountID: dst, Amount: amount,
					})
				}
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	for _, acc := range accs {
		bal := f.balance(t, acc.ID)
		assert.False(t, bal.IsNegative(), "account %s went negative", acc.ID)
		total = total.Add(bal)
	}
	assert.True(t, total.Equal(external), "want total %s, got %s", external, total)
}

func TestLockTimeout_ReleasesAndRecovers(t *testing.T) {
	store := memstore.New(memstore.WithLockTimeout(50 * time.Millisecond))
	f := newFixtureWithStore(t, store, "100000")
	acc := f.openAccount(t, "100")
	ctx := context.Background()

	holder, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = holder.GetAccountForUpdate(ctx, acc.ID)
	require.NoError(t, err)

	_, err = f.entry(t, acc.ID, ledger.TypeWithdrawal, "10")
	assert.ErrorIs(t, err, ledger.ErrLockTimeout)
	f.assertBalance(t, acc.ID, "100")

	require.NoError(t, holder.Rollback())

	_, err = f.entry(t, acc.ID, ledger.TypeWithdrawal, "10")
	require.NoError(t, err)
	f.assertBalance(t, acc.ID, "90")
}

func TestTransfer_LockTimeoutReleasesPartialLocks(t *testing.T) {
	store := memstore.New(memstore.WithLockTimeout(50 * time.Millisecond))
	f := newFixtureWithStore(t, store, "100000")
	a := f.openAccount(t, "100")
	b := f.openAccount(t, "100")
	ctx := context.Background()

	holder, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = holder.GetAccountForUpdate(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.ledger.Transfer(ctx, ledger.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec(t, "10")})
	assert.ErrorIs(t, err, ledger.ErrLockTimeout)

	// A's lock must have been released by the failed transfer.
	_, err = f.entry(t, a.ID, ledger.TypeDeposit, "1")
	require.NoError(t, err)

	require.NoError(t, holder.Rollback())
	f.assertBalance(t, a.ID, "101")
	f.assertBalance(t, b.ID, "100")
}

func TestLedger_WritesOutboxEventsAndAudit(t *testing.T) {
	f := newFixture(t, "100")
	a := f.openAccount(t, "50")
	b := f.openAccount(t, "0")
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, ledger.TransferRequest{
		RequestID: "req-ok", FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec(t, "20"), InitiatedBy: "user-1",
	})
	require.NoError(t, err)

	_, err = f.ledger.Transfer(ctx, ledger.TransferRequest{
		RequestID: "req-fail", FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec(t, "999"), InitiatedBy: "user-1",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	pending, err := f.entry(t, a.ID, ledger.TypeDeposit, "101")
	require.NoError(t, err)

	var types []string
	for _, e := range f.store.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		ledger.EventTransactionCompleted, // seed A
		ledger.EventTransferCompleted,
		ledger.EventTransactionPendingApproval,
	}, types)
	assert.Equal(t, pending.AccountID, f.store.Events()[2].AggregateID)

	ok, err := f.store.ListByRequest(ctx, "req-ok")
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, audit.StatusSuccess, ok[0].Status)
	assert.Equal(t, "transfer", ok[0].Action)

	failed, err := f.store.ListByRequest(ctx, "req-fail")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, audit.StatusFailed, failed[0].Status)
	require.NotNil(t, failed[0].Message)
	assert.Contains(t, *failed[0].Message, "insufficient funds")
}

func TestReview_AuditCarriesRequestID(t *testing.T) {
	f := newFixture(t, "100")
	acc := f.openAccount(t, "0")
	ctx := context.Background()

	approveMe, err := f.entry(t, acc.ID, ledger.TypeDeposit, "150")
	require.NoError(t, err)
	rejectMe, err := f.entry(t, acc.ID, ledger.TypeDeposit, "250")
	require.NoError(t, err)

	_, err = f.ledger.Approve(ctx, ledger.ReviewRequest{RequestID: "req-approve", TransactionID: approveMe.ID, ApproverID: "staff-1"})
	require.NoError(t, err)
	_, err = f.ledger.Reject(ctx, ledger.ReviewRequest{RequestID: "req-reject", TransactionID: rejectMe.ID, ApproverID: "staff-1"})
	require.NoError(t, err)

	approved, err := f.store.ListByRequest(ctx, "req-approve")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "approve", approved[0].Action)
	assert.Equal(t, approveMe.ID, approved[0].TransactionID)
	assert.Equal(t, "staff-1", approved[0].Actor)

	rejected, err := f.store.ListByRequest(ctx, "req-reject")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "reject", rejected[0].Action)
	assert.Equal(t, rejectMe.ID, rejected[0].TransactionID)
}

type recordingObserver struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	err      error
}

func (o *recordingObserver) BalanceChanged(_ context.Context, accountID string, balance decimal.Decimal, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balances[accountID] = balance
	return o.err
}

func TestLedger_NotifiesBalanceObserver(t *testing.T) {
	obs := &recordingObserver{balances: map[string]decimal.Decimal{}, err: errors.New("cache down")}
	f := newFixture(t, "100", ledger.WithBalanceObserver(obs))
	a := f.openAccount(t, "80")
	b := f.openAccount(t, "0")

	_, err := f.ledger.Transfer(context.Background(), ledger.TransferRequest{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec(t, "30"),
	})
	require.NoError(t, err, "observer failures must not fail the operation")

	pending, err := f.entry(t, b.ID, ledger.TypeDeposit, "500")
	require.NoError(t, err)

	obs.mu.Lock()
	assert.True(t, obs.balances[a.ID].Equal(dec(t, "50")))
	assert.True(t, obs.balances[b.ID].Equal(dec(t, "30")))
	obs.mu.Unlock()

	_, err = f.ledger.Approve(context.Background(), ledger.ReviewRequest{TransactionID: pending.ID, ApproverID: "staff-1"})
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.True(t, obs.balances[b.ID].Equal(dec(t, "530")))
}
