// Package paylog records every gateway interaction. A transaction can
// accumulate several logs (initiation, retries, verifications); the
// latest one is authoritative. Status only moves forward:
// pending -> success | failed | cancelled.
package paylog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
	"sukpos/internal/store"
)

type LogStore struct {
	store store.Store
}

func NewLogStore(s store.Store) *LogStore {
	return &LogStore{store: s}
}

func (ls *LogStore) Create(ctx context.Context, transactionID uint, gateway, reference string, amount decimal.Decimal, request models.JSONMap) (*models.PaymentLog, error) {
	log := &models.PaymentLog{
		TransactionID:   transactionID,
		PaymentGateway:  gateway,
		ReferenceNumber: reference,
		Amount:          amount,
		Status:          models.PayLogPending,
		RequestData:     request,
	}
	if err := ls.store.CreatePaymentLog(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

func (ls *LogStore) MarkSuccess(ctx context.Context, log *models.PaymentLog, response models.JSONMap) error {
	if terminal(log.Status) {
		return nil
	}
	log.Status = models.PayLogSuccess
	return ls.store.UpdatePaymentLog(ctx, log.ID, map[string]interface{}{
		"status":        models.PayLogSuccess,
		"response_data": response,
	})
}

func (ls *LogStore) MarkFailed(ctx context.Context, log *models.PaymentLog, errorMessage string, response models.JSONMap) error {
	if terminal(log.Status) {
		return nil
	}
	log.Status = models.PayLogFailed
	return ls.store.UpdatePaymentLog(ctx, log.ID, map[string]interface{}{
		"status":        models.PayLogFailed,
		"error_message": errorMessage,
		"response_data": response,
	})
}

// Latest returns the authoritative log for a transaction, nil when none
// exists.
func (ls *LogStore) Latest(ctx context.Context, transactionID uint) (*models.PaymentLog, error) {
	log, err := ls.store.LatestPaymentLog(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// FindByReference locates the latest log carrying the provider reference.
func (ls *LogStore) FindByReference(ctx context.Context, gateway, reference string) (*models.PaymentLog, error) {
	log, err := ls.store.FindPaymentLogByReference(ctx, gateway, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

func terminal(status string) bool {
	return status == models.PayLogSuccess ||
		status == models.PayLogFailed ||
		status == models.PayLogCancelled
}
