package gogetsms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/shape"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
)

const signatureHeader = "X-Signature"

type webhookPayload struct {
	ActivationID wire.String `json:"activationId" validate:"required"`
	PhoneNumber  wire.String `json:"phoneNumber"`
	Service      string      `json:"service"`
	Sender       string      `json:"sender"`
	Text         string      `json:"text"`
	Code         string      `json:"code"`
	ReceivedAt   string      `json:"receivedAt"`
}

// ParseWebhook checks the hex HMAC-SHA256 signature when a secret is
// configured.
func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*domain.InboundSMS, error) {
	if a.webhookSecret != "" {
		if !validSignature(a.webhookSecret, payload, headers.Get(signatureHeader)) {
			return nil, domain.ErrInvalidSignature
		}
	}

	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := shape.Validate(ctx, event); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	text := strings.TrimSpace(event.Text)
	if text == "" {
		text = strings.TrimSpace(event.Code)
	}
	if text == "" {
		return nil, domain.ErrEventIgnored
	}

	receivedAt, ok := wire.ParseTime(event.ReceivedAt)
	if !ok {
		receivedAt = a.now()
	}
	return &domain.InboundSMS{
		Provider:    providerName,
		ExternalID:  event.ActivationID.String(),
		PhoneNumber: wire.Digits(event.PhoneNumber.String()),
		Sender:      strings.TrimSpace(event.Sender),
		Text:        text,
		ReceivedAt:  receivedAt,
		Raw:         json.RawMessage(payload),
	}, nil
}

func validSignature(secret string, payload []byte, signature string) bool {
	signature = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
