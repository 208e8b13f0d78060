package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/phone-numbers/:id"),
		attribute.String("phone_number", "+4915112345678"),
		attribute.String("api_key", "secret"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorRedactsPhoneNumbers(t *testing.T) {
	err := SafeError(errors.New("rent failed for +4915112345678"))
	assert.EqualError(t, err, "rent failed for [redacted]")
	assert.Nil(t, SafeError(nil))
}
