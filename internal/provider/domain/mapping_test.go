package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeTableFallsBack(t *testing.T) {
	countries := MustCodeTable(map[string]string{"de": "43", "us": "187"}, DefaultCountry)
	services := MustCodeTable(map[string]string{"other": "ot", "telegram": "tg"}, DefaultService)
	m := Mapping{Countries: countries, Services: services}

	got := m.Resolve("Telegram", "US")
	assert.Equal(t, "tg", got.ProviderService)
	assert.Equal(t, "187", got.ProviderCountry)
	assert.False(t, got.ServiceFallback)
	assert.False(t, got.CountryFallback)

	got = m.Resolve("unknown-app", "zz")
	assert.Equal(t, "ot", got.ProviderService)
	assert.Equal(t, "43", got.ProviderCountry)
	assert.Equal(t, "other", got.Service)
	assert.Equal(t, "de", got.Country)
	assert.True(t, got.ServiceFallback)
	assert.True(t, got.CountryFallback)
}

func TestCodeTableReverse(t *testing.T) {
	table := MustCodeTable(map[string]string{"de": "DE", "gb": "GB"}, DefaultCountry)

	internal, ok := table.Reverse("gb")
	assert.True(t, ok)
	assert.Equal(t, "gb", internal)

	_, ok = table.Reverse("XX")
	assert.False(t, ok)

	m := Mapping{Countries: table, Services: MustCodeTable(map[string]string{"other": "x"}, DefaultService)}
	assert.Equal(t, "de", m.InternalCountry("XX"))
	assert.Equal(t, "other", m.InternalService("zzz"))
}

func TestMustCodeTablePanicsWithoutFallback(t *testing.T) {
	assert.Panics(t, func() {
		MustCodeTable(map[string]string{"us": "1"}, DefaultCountry)
	})
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, (&Error{Code: CodeNetwork}).Retryable())
	assert.True(t, (&Error{Code: CodeTimeout}).Retryable())
	assert.True(t, (&Error{Code: CodeProviderError, HTTPStatus: 502}).Retryable())
	assert.False(t, (&Error{Code: CodeProviderError, HTTPStatus: 400}).Retryable())
	assert.False(t, (&Error{Code: CodeBadKey}).Retryable())
	assert.False(t, (&Error{Code: CodeNoNumbers}).Retryable())

	err := error(NewError("anosim", CodeAlreadyCancelled, "already"))
	assert.True(t, IsCode(err, CodeNotFound, CodeAlreadyCancelled))
	assert.Equal(t, CodeAlreadyCancelled, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(assert.AnError))
}
