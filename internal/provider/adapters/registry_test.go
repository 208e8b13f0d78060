package adapters

import (
	"testing"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{domain.ProviderAnosim, domain.ProviderGoGetSMS, domain.ProviderSMSActivate, domain.ProviderSMSPVA}, r.Providers())
	assert.True(t, r.ProviderExists(" SMSPVA "))
	assert.False(t, r.ProviderExists("5sim"))

	a, err := r.NewAdapter("anosim", domain.AdapterConfig{BaseURL: "http://127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnosim, a.Provider())

	_, err = r.NewAdapter("5sim", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
