package account_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebank/internal/account"
	"corebank/internal/memstore"
	"corebank/pkg/logger"
)

func newService(t *testing.T, opts ...account.Option) (*account.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return account.NewService(store, logger.Discard(), "usd", opts...), store
}

func TestCreate_OpensActiveZeroBalanceAccount(t *testing.T) {
	svc, _ := newService(t)

	acc, err := svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	require.NoError(t, err)

	assert.NotEmpty(t, acc.ID)
	assert.Regexp(t, `^40\d{10}$`, acc.Number)
	assert.True(t, acc.Balance.IsZero())
	assert.Equal(t, account.StatusActive, acc.Status)
	assert.Equal(t, "USD", acc.Currency)

	byNumber, err := svc.GetByNumber(context.Background(), acc.Number)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byNumber.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name string
		req  account.CreateRequest
		want error
	}{
		{"missing user", account.CreateRequest{Type: account.TypeSavings}, account.ErrInvalidUser},
		{"bad type", account.CreateRequest{UserID: "u1", Type: "loan"}, account.ErrInvalidType},
		{"bad currency", account.CreateRequest{UserID: "u1", Type: account.TypeCurrent, Currency: "EURO"}, account.ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_RetriesOnNumberCollision(t *testing.T) {
	numbers := []string{"400000000001", "400000000001", "400000000001", "400000000002"}
	calls := 0
	gen := func() (string, error) {
		n := numbers[calls]
		calls++
		return n, nil
	}
	svc, _ := newService(t, account.WithNumberGenerator(gen))

	first, err := svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	require.NoError(t, err)

	assert.Equal(t, "400000000001", first.Number)
	assert.Equal(t, "400000000002", second.Number)
	assert.Equal(t, 4, calls)
}

func TestCreate_GivesUpAfterBoundedAttempts(t *testing.T) {
	svc, _ := newService(t, account.WithNumberGenerator(func() (string, error) { return "400000000001", nil }))

	_, err := svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	assert.ErrorIs(t, err, account.ErrNumberExhausted)
}

func TestCreate_GeneratorError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	svc, _ := newService(t, account.WithNumberGenerator(func() (string, error) { return "", boom }))

	_, err := svc.Create(context.Background(), account.CreateRequest{UserID: "u1", Type: account.TypeSavings})
	assert.ErrorIs(t, err, boom)
}

func TestStatusTransitions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateRequest{UserID: "u1", Type: account.TypeCurrent})
	require.NoError(t, err)

	acc, err = svc.Suspend(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusSuspended, acc.Status)

	acc, err = svc.Activate(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, acc.Status)

	acc, err = svc.Close(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusClosed, acc.Status)

	_, err = svc.Activate(ctx, acc.ID)
	assert.ErrorIs(t, err, account.ErrInvalidStatusTransition)

	_, err = svc.SetStatus(ctx, "missing", account.StatusActive)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestListByUser(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	seq := 0
	gen := func() (string, error) {
		seq++
		return fmt.Sprintf("4000000000%02d", seq), nil
	}
	svc, _ := newService(t, account.WithClock(clock), account.WithNumberGenerator(gen))
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u1"} {
		_, err := svc.Create(ctx, account.CreateRequest{UserID: user, Type: account.TypeSavings})
		require.NoError(t, err)
	}

	accs, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, "400000000001", accs[0].Number)
	assert.Equal(t, "400000000003", accs[1].Number)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, account.StatusPending.CanTransitionTo(account.StatusActive))
	assert.True(t, account.StatusSuspended.CanTransitionTo(account.StatusClosed))
	assert.False(t, account.StatusActive.CanTransitionTo(account.StatusPending))
	assert.False(t, account.StatusClosed.CanTransitionTo(account.StatusActive))
}
