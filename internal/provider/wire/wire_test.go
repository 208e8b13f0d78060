package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLenientScalars(t *testing.T) {
	var v struct {
		ID    String `json:"id"`
		Other String `json:"other"`
		Cost  Float  `json:"cost"`
		Price Float  `json:"price"`
		Empty Float  `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":4892693,"other":" abc ","cost":"12.50","price":3,"empty":""}`), &v))
	assert.Equal(t, String("4892693"), v.ID)
	assert.Equal(t, String("abc"), v.Other)
	assert.Equal(t, Float(12.5), v.Cost)
	assert.Equal(t, Float(3), v.Price)
	assert.Equal(t, Float(0), v.Empty)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-01-01T00:00:00Z", "2024-01-01 00:00:00", "2024-01-01T00:00:00", "1704067200"} {
		got, ok := ParseTime(raw)
		assert.True(t, ok, raw)
		assert.True(t, want.Equal(got), raw)
	}
	_, ok := ParseTime("yesterday")
	assert.False(t, ok)
	assert.Nil(t, ParseTimePtr(""))
}

func TestSamePhone(t *testing.T) {
	assert.True(t, SamePhone("+49 151 2345678", "491512345678"))
	assert.True(t, SamePhone("1512345678", "+491512345678"))
	assert.False(t, SamePhone("491512345678", "491512345679"))
	assert.False(t, SamePhone("", "123"))
	assert.Equal(t, "79001234567", Digits("+7 (900) 123-45-67"))
}
