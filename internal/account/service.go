package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxNumberAttempts = 8

type Service struct {
	repo     Repository
	logger   *slog.Logger
	numbers  NumberGenerator
	currency string
	now      func() time.Time
}

type Option func(*Service)

func WithNumberGenerator(gen NumberGenerator) Option {
	return func(s *Service) { s.numbers = gen }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, logger *slog.Logger, defaultCurrency string, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		logger:   logger,
		currency: strings.ToUpper(defaultCurrency),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numbers == nil {
		s.numbers = TimeRandomNumbers(s.now)
	}
	return s
}

type CreateRequest struct {
	UserID   string
	Type     Type
	Currency string
}

// Create opens an active account with a zero balance.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Account, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidUser
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidType
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	now := s.now()
	acc := &Account{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Type:      req.Type,
		Balance:   decimal.Zero,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.numbers()
		if err != nil {
			return nil, err
		}
		acc.Number = number

		err = s.repo.Insert(ctx, acc)
		if err == nil {
			s.logger.Info("account created",
				"account_id", acc.ID,
				"user_id", acc.UserID,
				"account_number", acc.Number,
			)
			return acc, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}

		s.logger.Warn("account number collision, retrying",
			"account_number", number,
			"attempt", attempt,
		)
	}

	return nil, ErrNumberExhausted
}

func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Account, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Activate(ctx context.Context, id string) (*Account, error) {
	return s.transition(ctx, id, StatusActive)
}

func (s *Service) Suspend(ctx context.Context, id string) (*Account, error) {
	return s.transition(ctx, id, StatusSuspended)
}

func (s *Service) Close(ctx context.Context, id string) (*Account, error) {
	return s.transition(ctx, id, StatusClosed)
}

// SetStatus dispatches to the matching administrative transition.
func (s *Service) SetStatus(ctx context.Context, id string, to Status) (*Account, error) {
	return s.transition(ctx, id, to)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Account, error) {
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !acc.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, acc.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, acc.Status, to); err != nil {
		return nil, err
	}

	s.logger.Info("account status changed",
		"account_id", id,
		"from", acc.Status,
		"to", to,
	)

	acc.Status = to
	acc.UpdatedAt = s.now()
	return acc, nil
}
