package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/lumapix/payments-service/internal/domain"
)

// toDomainTransaction maps db model to domain entity
func toDomainTransaction(m TransactionModel) (*domain.Transaction, error) {
	var meta domain.TransactionMetadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}

	return &domain.Transaction{
		ID:          m.ID,
		ActorID:     m.ActorID,
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Provider:    domain.Provider(m.Provider),
		ProviderRef: m.ProviderRef,
		Status:      domain.TransactionStatus(m.Status),
		Metadata:    meta,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		SettledAt:   m.SettledAt,
	}, nil
}

// toTransactionModel maps domain entity to db model
func toTransactionModel(t *domain.Transaction) (*TransactionModel, error) {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}

	return &TransactionModel{
		ID:          t.ID,
		ActorID:     t.ActorID,
		AmountCents: t.AmountCents,
		Currency:    t.Currency,
		Provider:    string(t.Provider),
		ProviderRef: t.ProviderRef,
		Status:      string(t.Status),
		Metadata:    meta,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		SettledAt:   t.SettledAt,
	}, nil
}

func toIdempotencyRecord(m IdempotencyModel) *domain.IdempotencyRecord {
	record := &domain.IdempotencyRecord{
		OperationScope: m.OperationScope,
		ActorID:        m.ActorID,
		Key:            m.IdempotencyKey,
		RequestHash:    m.RequestHash,
		Status:         domain.IdempotencyStatus(m.Status),
		TransactionID:  m.TransactionID,
		CreatedAt:      m.CreatedAt,
		LastSeenAt:     m.LastSeenAt,
	}
	if m.ResponseCode != nil {
		record.ResponseCode = *m.ResponseCode
	}
	if m.ResponseBody != nil {
		record.ResponseBody = *m.ResponseBody
	}
	return record
}

func toDomainWallet(m WalletModel) *domain.Wallet {
	return &domain.Wallet{
		ID:                    m.ID,
		CreatorID:             m.CreatorID,
		Currency:              m.Currency,
		AvailableBalanceCents: m.AvailableBalanceCents,
		UpdatedAt:             m.UpdatedAt,
	}
}

func toDomainPayout(m PayoutModel) *domain.Payout {
	return &domain.Payout{
		ID:          m.ID,
		WalletID:    m.WalletID,
		CreatorID:   m.CreatorID,
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Mode:        domain.PayoutMode(m.Mode),
		Status:      domain.PayoutStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
