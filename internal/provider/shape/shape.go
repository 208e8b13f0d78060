// Package shape decodes provider list payloads that arrive in one of several
// envelopes. The envelope is detected first, then items are decoded into a
// typed wire struct and validated. Unknown envelopes are errors.
package shape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindEmpty    Kind = "empty"
	KindArray    Kind = "array"
	KindData     Kind = "data"
	KindMessages Kind = "messages"
	KindValues   Kind = "values"
)

var (
	ErrUnknownShape = errors.New("unknown_shape")
	ErrInvalidItem  = errors.New("invalid_item")
)

var validate = validator.New()

// Envelope is a detected payload with its raw item list.
type Envelope struct {
	Kind  Kind
	Keys  []string
	Items []json.RawMessage
}

// Detect classifies raw. A null or blank body, or an envelope whose list is
// null, is KindEmpty.
func Detect(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Envelope{Kind: KindEmpty}, nil
	}

	switch trimmed[0] {
	case '[':
		items, err := decodeArray(trimmed)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: KindArray, Items: items}, nil
	case '{':
	default:
		return Envelope{}, fmt.Errorf("%w: body is not a json array or object", ErrUnknownShape)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}

	for _, key := range []Kind{KindData, KindMessages} {
		value, ok := obj[string(key)]
		if !ok {
			continue
		}
		if isNull(value) {
			return Envelope{Kind: KindEmpty}, nil
		}
		items, err := decodeArray(value)
		if err != nil {
			return Envelope{}, fmt.Errorf("%s: %w", key, err)
		}
		return Envelope{Kind: key, Items: items}, nil
	}

	if value, ok := obj[string(KindValues)]; ok {
		if isNull(value) {
			return Envelope{Kind: KindEmpty}, nil
		}
		trimmedValue := bytes.TrimSpace(value)
		if len(trimmedValue) > 0 && trimmedValue[0] == '[' {
			items, err := decodeArray(trimmedValue)
			if err != nil {
				return Envelope{}, fmt.Errorf("values: %w", err)
			}
			return Envelope{Kind: KindValues, Items: items}, nil
		}
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmedValue, &keyed); err != nil {
			return Envelope{}, fmt.Errorf("%w: values: %v", ErrUnknownShape, err)
		}
		keys := sortedKeys(keyed)
		items := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			items = append(items, keyed[k])
		}
		return Envelope{Kind: KindValues, Keys: keys, Items: items}, nil
	}

	return Envelope{}, fmt.Errorf("%w: object has none of data, messages, values", ErrUnknownShape)
}

// DecodeList detects the envelope of raw and decodes every item into T.
func DecodeList[T any](ctx context.Context, raw []byte) ([]T, Kind, error) {
	env, err := Detect(raw)
	if err != nil {
		return nil, "", err
	}
	out := make([]T, 0, len(env.Items))
	for i, item := range env.Items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, env.Kind, fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}
		if err := validateItem(ctx, v); err != nil {
			return nil, env.Kind, fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}
		out = append(out, v)
	}
	return out, env.Kind, nil
}

// Validate runs struct-tag validation on a decoded wire struct.
func Validate(ctx context.Context, v any) error {
	return validateItem(ctx, v)
}

func validateItem(ctx context.Context, v any) error {
	err := validate.StructCtx(ctx, v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// not a struct, nothing to check
		return nil
	}
	return err
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected array: %v", ErrUnknownShape, err)
	}
	return items, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// sortedKeys orders numeric ids numerically and everything else lexically.
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
