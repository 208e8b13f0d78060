package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultCountry = "de"
	DefaultService = "other"
)

// CodeTable maps internal codes to one provider's codes. Unknown internal
// codes resolve to the fallback entry.
type CodeTable struct {
	forward  map[string]string
	reverse  map[string]string
	fallback string
}

// MustCodeTable panics when the fallback key has no entry.
func MustCodeTable(entries map[string]string, fallback string) CodeTable {
	t := CodeTable{
		forward:  make(map[string]string, len(entries)),
		reverse:  make(map[string]string, len(entries)),
		fallback: normalizeKey(fallback),
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		internal := normalizeKey(k)
		code := entries[k]
		t.forward[internal] = code
		if _, taken := t.reverse[strings.ToLower(code)]; !taken {
			t.reverse[strings.ToLower(code)] = internal
		}
	}
	if _, ok := t.forward[t.fallback]; !ok {
		panic(fmt.Sprintf("code table fallback %q has no entry", fallback))
	}
	return t
}

// Resolve never fails. fellBack is true when the fallback entry was used.
func (t CodeTable) Resolve(internal string) (code string, fellBack bool) {
	if c, ok := t.forward[normalizeKey(internal)]; ok {
		return c, false
	}
	return t.forward[t.fallback], true
}

func (t CodeTable) Reverse(providerCode string) (string, bool) {
	internal, ok := t.reverse[strings.ToLower(strings.TrimSpace(providerCode))]
	return internal, ok
}

func (t CodeTable) Fallback() string { return t.fallback }

func (t CodeTable) Len() int { return len(t.forward) }

type Mapping struct {
	Countries CodeTable
	Services  CodeTable
}

type ResolvedCodes struct {
	Service         string `json:"service"`
	Country         string `json:"country"`
	ProviderService string `json:"provider_service"`
	ProviderCountry string `json:"provider_country"`
	ServiceFallback bool   `json:"service_fallback"`
	CountryFallback bool   `json:"country_fallback"`
}

func (m Mapping) Resolve(service, country string) ResolvedCodes {
	out := ResolvedCodes{Service: normalizeKey(service), Country: normalizeKey(country)}
	out.ProviderService, out.ServiceFallback = m.Services.Resolve(service)
	out.ProviderCountry, out.CountryFallback = m.Countries.Resolve(country)
	if out.ServiceFallback {
		out.Service = m.Services.Fallback()
	}
	if out.CountryFallback {
		out.Country = m.Countries.Fallback()
	}
	return out
}

// InternalCountry reverses a provider country code, defaulting to Germany.
func (m Mapping) InternalCountry(providerCode string) string {
	if c, ok := m.Countries.Reverse(providerCode); ok {
		return c
	}
	return m.Countries.Fallback()
}

// InternalService reverses a provider service code, defaulting to other.
func (m Mapping) InternalService(providerCode string) string {
	if s, ok := m.Services.Reverse(providerCode); ok {
		return s
	}
	return m.Services.Fallback()
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
