package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction_Validation(t *testing.T) {
	_, err := NewTransaction("tx-1", "actor-1", 0, "USD", ProviderStripe, TransactionMetadata{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewTransaction("tx-1", "actor-1", -500, "USD", ProviderStripe, TransactionMetadata{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewTransaction("tx-1", "actor-1", 500, "", ProviderStripe, TransactionMetadata{})
	assert.ErrorIs(t, err, ErrMissingCurrency)

	tx, err := NewTransaction("tx-1", "actor-1", 500, "USD", ProviderStripe, TransactionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, TxPending, tx.Status)
	assert.Nil(t, tx.SettledAt)
}

func TestTransaction_MarkSucceeded(t *testing.T) {
	tx, err := NewTransaction("tx-1", "actor-1", 500, "USD", ProviderStripe, TransactionMetadata{})
	require.NoError(t, err)

	require.NoError(t, tx.MarkSucceeded())
	assert.Equal(t, TxSucceeded, tx.Status)
	require.NotNil(t, tx.SettledAt)
}

func TestTransaction_TerminalStatesNeverTransition(t *testing.T) {
	for _, settle := range []func(*Transaction) error{
		(*Transaction).MarkSucceeded,
		(*Transaction).MarkFailed,
	} {
		tx, err := NewTransaction("tx-1", "actor-1", 500, "USD", ProviderStripe, TransactionMetadata{})
		require.NoError(t, err)
		require.NoError(t, settle(tx))

		before := tx.Status
		assert.ErrorIs(t, tx.MarkSucceeded(), ErrTerminalTransaction)
		assert.ErrorIs(t, tx.MarkFailed(), ErrTerminalTransaction)
		assert.Equal(t, before, tx.Status)
	}
}

func TestTransaction_MarkRefunded(t *testing.T) {
	tx, err := NewTransaction("tx-1", "actor-1", 500, "USD", ProviderStripe, TransactionMetadata{})
	require.NoError(t, err)

	err = tx.MarkRefunded()
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, ErrCodeInvalidTransition, domainErr.Code)

	require.NoError(t, tx.MarkSucceeded())
	require.NoError(t, tx.MarkRefunded())
	assert.Equal(t, TxRefunded, tx.Status)

	// Refunded is terminal too.
	assert.ErrorIs(t, tx.MarkFailed(), ErrTerminalTransaction)
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.False(t, TxPending.IsTerminal())
	assert.True(t, TxSucceeded.IsTerminal())
	assert.True(t, TxFailed.IsTerminal())
	assert.True(t, TxRefunded.IsTerminal())
}

func TestParseProvider(t *testing.T) {
	for _, p := range Providers() {
		parsed, err := ParseProvider(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParseProvider("square")
	assert.Error(t, err)
}
