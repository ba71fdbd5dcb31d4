package model_test

import (
	"strings"
	"testing"

	"github.com/hamta/tarabar/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemOrderID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := model.NewSystemOrderID()
		assert.Len(t, id, 14)
		assert.True(t, strings.HasPrefix(id, "ORD-"))
		for _, r := range id[4:] {
			assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
				"unexpected character %q in %s", r, id)
		}
		seen[id] = true
	}
	// 36^10 keyspace: 100 draws must not collide.
	assert.Len(t, seen, 100)
}

func TestOrderItemPricing_ResolveTotal(t *testing.T) {
	p := model.OrderItemPricing{Subtotal: 2000, Tax: 300, Discount: 100}
	p.ResolveTotal()
	assert.Equal(t, 2200.0, p.Total)

	// Explicit totals are kept as supplied.
	p = model.OrderItemPricing{Subtotal: 2000, Total: 1900}
	p.ResolveTotal()
	assert.Equal(t, 1900.0, p.Total)
}

func TestActionKind_Valid(t *testing.T) {
	assert.True(t, model.ActionNotifyReceptor.Valid())
	assert.True(t, model.ActionSMSToCustomer.Valid())
	assert.True(t, model.ActionSMSToAdmin.Valid())
	assert.False(t, model.ActionKind("send_pigeon").Valid())
}

func TestSealedCredential_RoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	sealed, err := model.NewCredential("s3cret").Seal(key)
	require.NoError(t, err)
	require.NotEmpty(t, sealed.Ciphertext())

	restored := model.SealedFrom(sealed.Ciphertext())
	_, err = restored.Plaintext()
	assert.ErrorIs(t, err, model.ErrCredentialSealed)

	opened, err := restored.Unseal(key)
	require.NoError(t, err)
	plain, err := opened.Plaintext()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestSealedCredential_WrongKey(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	other := []byte("ffffffffffffffffffffffffffffffff")

	sealed, err := model.NewCredential("s3cret").Seal(key)
	require.NoError(t, err)

	_, err = model.SealedFrom(sealed.Ciphertext()).Unseal(other)
	assert.Error(t, err)
}

func TestProviderConfig_Accessors(t *testing.T) {
	cfg := model.ProviderConfig{
		"service_id":   float64(5), // JSON numbers decode as float64
		"contract_id":  7,
		"box_id":       "B-12",
		"need_packing": "yes",
	}
	assert.Equal(t, 5, cfg.Int("service_id", 1))
	assert.Equal(t, 7, cfg.Int("contract_id", 0))
	assert.Equal(t, 3, cfg.Int("missing", 3))
	assert.Equal(t, 0, cfg.Int("need_packing", 0)) // non-numeric falls back
	assert.Equal(t, "B-12", cfg.String("box_id", ""))
	assert.Equal(t, "none", cfg.String("missing", "none"))
}
