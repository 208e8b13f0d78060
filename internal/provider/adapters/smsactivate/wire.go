package smsactivate

import (
	"encoding/json"
	"sort"

	"github.com/smallbiznis/smsrent/internal/provider/wire"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type rentPhone struct {
	ID      wire.String `json:"id" validate:"required"`
	Number  wire.String `json:"number" validate:"required"`
	EndDate string      `json:"endDate"`
}

type rentResponse struct {
	Status string    `json:"status"`
	Phone  rentPhone `json:"phone"`
}

type rentSMS struct {
	PhoneFrom string `json:"phone_from"`
	Text      string `json:"text" validate:"required"`
	Service   string `json:"service"`
	Date      string `json:"date"`
}

type rentListItem struct {
	ID    wire.String `json:"id" validate:"required"`
	Phone wire.String `json:"phone" validate:"required"`
}

// quantity is either a bare count or {"current":n,"total":m}.
type quantity int

func (q *quantity) UnmarshalJSON(b []byte) error {
	var n wire.Float
	if err := json.Unmarshal(b, &n); err == nil {
		*q = quantity(n)
		return nil
	}
	var obj struct {
		Current wire.Float `json:"current"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*q = quantity(obj.Current)
	return nil
}

type rentServicePrice struct {
	Cost  wire.Float `json:"cost"`
	Quant quantity   `json:"quant"`
}

type rentCatalogResponse struct {
	Currency wire.String                 `json:"currency"`
	Services map[string]rentServicePrice `json:"services"`
}

type activationPrice struct {
	Cost  wire.Float `json:"cost"`
	Count wire.Float `json:"count"`
}

// getPrices: country code -> service code -> price.
type activationCatalogResponse map[string]map[string]activationPrice

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
