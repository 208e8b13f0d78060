package tracing

import (
	"context"
	"errors"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"phone_number": {},
	"api_key":      {},
	"apikey":       {},
	"message":      {},
	"text":         {},
	"http.url":     {},
}

var longDigits = regexp.MustCompile(`\+?\d{7,}`)

// SafeAttributes drops keys that may carry phone numbers, SMS bodies or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError masks phone-number-like digit runs in err's message.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(longDigits.ReplaceAllString(err.Error(), "[redacted]"))
}

// ExtractContext pulls remote span context from carrier using the global propagator.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
