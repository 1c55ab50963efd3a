package services

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// PaymentMethodService manages the shared list of payment methods.
type PaymentMethodService struct {
	store ledger.PaymentMethodStore
}

func NewPaymentMethodService(store ledger.PaymentMethodStore) *PaymentMethodService {
	return &PaymentMethodService{store: store}
}

func (s *PaymentMethodService) List(ctx context.Context) ([]core.PaymentMethod, error) {
	methods, err := s.store.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}

func (s *PaymentMethodService) Create(ctx context.Context, name string) (core.PaymentMethod, error) {
	if err := (core.PaymentMethod{Name: name}).Validate(); err != nil {
		return core.PaymentMethod{}, core.FieldError("name", err.Error())
	}
	pm, err := s.store.CreatePaymentMethod(ctx, name)
	if errors.Is(err, core.ErrConflict) {
		return core.PaymentMethod{}, core.FieldError("name", "payment method with this name already exists.")
	}
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("create payment method: %w", err)
	}
	return pm, nil
}

// Delete removes a method no expense references. Methods in use are kept
// and core.ErrPaymentMethodInUse is returned.
func (s *PaymentMethodService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeletePaymentMethod(ctx, id); err != nil {
		return fmt.Errorf("delete payment method %d: %w", id, err)
	}
	return nil
}
