package gogetsms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/shape"
	"github.com/smallbiznis/smsrent/internal/provider/transport"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
)

const (
	providerName       = domain.ProviderGoGetSMS
	activationLifetime = 20 * time.Minute
	currencyUSD        = "USD"

	statusCancel = "8"

	accessNumber = "ACCESS_NUMBER"
	accessCancel = "ACCESS_CANCEL"
	statusOK     = "STATUS_OK"
	statusWait   = "STATUS_WAIT_CODE"
	statusRetry  = "STATUS_WAIT_RETRY"
	statusResend = "STATUS_WAIT_RESEND"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		client:        transport.New(providerName, cfg),
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Adapter implements the activation protocol: one number, one code, no
// extension. Responses are bare tokens such as ACCESS_NUMBER:id:phone.
type Adapter struct {
	apiKey        string
	webhookSecret string
	client        *transport.Client
	now           func() time.Time
}

type price struct {
	Cost  wire.Float `json:"cost"`
	Count wire.Float `json:"count"`
}

type activation struct {
	ID          wire.String `json:"activationId" validate:"required"`
	PhoneNumber wire.String `json:"phoneNumber" validate:"required"`
	Status      wire.String `json:"activationStatus"`
	Time        string      `json:"activationTime"`
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) Mapping() domain.Mapping { return mapping }

func (a *Adapter) GetServicesAndCountries(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	params := url.Values{}
	if strings.TrimSpace(req.Country) != "" {
		code, _ := countries.Resolve(req.Country)
		params.Set("country", code)
	}
	body, err := a.call(ctx, "catalog", "getPrices", params)
	if err != nil {
		return nil, err
	}

	var decoded map[string]map[string]price
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, unexpected(err)
	}

	catalog := &domain.Catalog{
		Provider:  providerName,
		Mode:      domain.ModeActivation,
		Source:    domain.CatalogSourceLive,
		FetchedAt: a.now(),
	}
	for _, countryCode := range sortedKeys(decoded) {
		entry := domain.CatalogCountry{Code: mapping.InternalCountry(countryCode), ProviderCode: countryCode}
		for _, serviceCode := range sortedKeys(decoded[countryCode]) {
			p := decoded[countryCode][serviceCode]
			entry.Services = append(entry.Services, domain.CatalogService{
				Code:         mapping.InternalService(serviceCode),
				ProviderCode: serviceCode,
				Cost:         float64(p.Cost),
				Currency:     currencyUSD,
				Available:    int(p.Count),
			})
		}
		catalog.Countries = append(catalog.Countries, entry)
	}
	return catalog, nil
}

// RentNumber ignores Hours; activations live for a fixed window.
func (a *Adapter) RentNumber(ctx context.Context, req domain.RentRequest) (*domain.Rental, error) {
	codes := mapping.Resolve(req.Service, req.Country)
	body, err := a.call(ctx, "rent", "getNumber", url.Values{
		"service": {codes.ProviderService},
		"country": {codes.ProviderCountry},
	})
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.TrimSpace(string(body)), ":")
	if len(parts) != 3 || parts[0] != accessNumber || parts[1] == "" || wire.Digits(parts[2]) == "" {
		return nil, domain.NewError(providerName, domain.CodeUnexpectedResponse, string(body))
	}
	endDate := a.now().Add(activationLifetime)
	raw, _ := json.Marshal(map[string]string{"response": string(body)})
	return &domain.Rental{
		PhoneNumber: wire.Digits(parts[2]),
		RentID:      parts[1],
		Service:     codes.Service,
		Country:     codes.Country,
		Currency:    currencyUSD,
		EndDate:     &endDate,
		Raw:         raw,
	}, nil
}

func (a *Adapter) GetStatus(ctx context.Context, externalID string) (*domain.RentalStatus, error) {
	body, err := a.call(ctx, "status", "getStatus", url.Values{"id": {externalID}})
	if err != nil {
		if domain.IsCode(err, domain.CodeAlreadyCancelled) {
			return &domain.RentalStatus{State: domain.StateCancelled, Messages: []domain.Message{}}, nil
		}
		return nil, err
	}

	token, value, _ := strings.Cut(strings.TrimSpace(string(body)), ":")
	switch token {
	case statusWait, statusResend:
		return &domain.RentalStatus{State: domain.StateWaiting, Messages: []domain.Message{}}, nil
	case statusOK, statusRetry:
		status := &domain.RentalStatus{State: domain.StateActive, Messages: []domain.Message{}}
		if value = strings.TrimSpace(value); value != "" {
			status.Messages = append(status.Messages, domain.Message{Text: value, ReceivedAt: a.now()})
		}
		return status, nil
	default:
		return nil, domain.NewError(providerName, domain.CodeUnexpectedResponse, string(body))
	}
}

func (a *Adapter) Cancel(ctx context.Context, externalID string) error {
	body, err := a.call(ctx, "cancel", "setStatus", url.Values{
		"id":     {externalID},
		"status": {statusCancel},
	})
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(body)), accessCancel) {
		return domain.NewError(providerName, domain.CodeUnexpectedResponse, string(body))
	}
	return nil
}

func (a *Adapter) Extend(context.Context, string, int) (*domain.Rental, error) {
	return nil, domain.NewError(providerName, domain.CodeUnsupported, "activations cannot be extended")
}

func (a *Adapter) ListActive(ctx context.Context) ([]domain.Booking, error) {
	body, err := a.call(ctx, "list_active", "getActiveActivations", nil)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return []domain.Booking{}, nil
		}
		return nil, err
	}
	items, _, err := shape.DecodeList[activation](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	out := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		b := domain.Booking{
			ExternalID:  item.ID.String(),
			PhoneNumber: wire.Digits(item.PhoneNumber.String()),
			Active:      true,
		}
		if started, ok := wire.ParseTime(item.Time); ok {
			end := started.Add(activationLifetime)
			b.EndDate = &end
		}
		out = append(out, b)
	}
	return out, nil
}

func (a *Adapter) call(ctx context.Context, operation, action string, params url.Values) ([]byte, error) {
	if a.apiKey == "" {
		return nil, domain.NewError(providerName, domain.CodeNoAPIKey, "api key is not configured")
	}
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", a.apiKey)
	query.Set("action", action)

	resp, err := a.client.Do(ctx, transport.Request{
		Operation: operation,
		Method:    http.MethodGet,
		Query:     query,
	})
	if err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] != '{' && body[0] != '[' {
		token, _, _ := strings.Cut(string(body), ":")
		if code, ok := errorCodes[strings.ToUpper(token)]; ok {
			return nil, &domain.Error{Provider: providerName, Code: code, Message: string(body), HTTPStatus: resp.StatusCode}
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &domain.Error{
			Provider:   providerName,
			Code:       domain.StatusFromHTTP(resp.StatusCode),
			Message:    string(body),
			HTTPStatus: resp.StatusCode,
		}
	}
	return body, nil
}

func unexpected(err error) error {
	return domain.WrapError(providerName, domain.CodeUnexpectedResponse, err)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
