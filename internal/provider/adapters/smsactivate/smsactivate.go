package smsactivate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/shape"
	"github.com/smallbiznis/smsrent/internal/provider/transport"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
)

const (
	providerName  = domain.ProviderSMSActivate
	cancelStatus  = "2"
	defaultHours  = 4
	currencyRUB   = "RUB"
	statusSuccess = "success"
	waitCode      = "STATUS_WAIT_CODE"
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
		apiKey: strings.TrimSpace(cfg.APIKey),
		client: transport.New(providerName, cfg),
	}, nil
}

// Adapter speaks the handler_api.php query protocol. It serves both the rent
// catalog and the activation price list.
type Adapter struct {
	apiKey string
	client *transport.Client
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) Mapping() domain.Mapping { return mapping }

func (a *Adapter) GetServicesAndCountries(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	if req.Mode == domain.ModeActivation {
		return a.activationCatalog(ctx, req)
	}

	country := req.Country
	if strings.TrimSpace(country) == "" {
		country = domain.DefaultCountry
	}
	countryCode, fellBack := countries.Resolve(country)
	if fellBack {
		country = countries.Fallback()
	}

	body, err := a.call(ctx, "catalog", "getRentServicesAndCountries", url.Values{
		"country":   {countryCode},
		"rent_time": {strconv.Itoa(defaultHours)},
	})
	if err != nil {
		return nil, err
	}

	var decoded rentCatalogResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, unexpected(err)
	}

	entry := domain.CatalogCountry{Code: country, ProviderCode: countryCode}
	for _, code := range sortedKeys(decoded.Services) {
		price := decoded.Services[code]
		entry.Services = append(entry.Services, domain.CatalogService{
			Code:         mapping.InternalService(code),
			ProviderCode: code,
			Cost:         float64(price.Cost),
			Currency:     currencyRUB,
			Available:    int(price.Quant),
		})
	}

	return &domain.Catalog{
		Provider:  providerName,
		Mode:      domain.ModeRent,
		Source:    domain.CatalogSourceLive,
		Countries: []domain.CatalogCountry{entry},
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (a *Adapter) activationCatalog(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	params := url.Values{}
	if strings.TrimSpace(req.Country) != "" {
		code, _ := countries.Resolve(req.Country)
		params.Set("country", code)
	}
	body, err := a.call(ctx, "catalog", "getPrices", params)
	if err != nil {
		return nil, err
	}

	var decoded activationCatalogResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, unexpected(err)
	}

	catalog := &domain.Catalog{
		Provider:  providerName,
		Mode:      domain.ModeActivation,
		Source:    domain.CatalogSourceLive,
		FetchedAt: time.Now().UTC(),
	}
	for _, countryCode := range sortedKeys(decoded) {
		entry := domain.CatalogCountry{
			Code:         mapping.InternalCountry(countryCode),
			ProviderCode: countryCode,
		}
		prices := decoded[countryCode]
		for _, serviceCode := range sortedKeys(prices) {
			price := prices[serviceCode]
			entry.Services = append(entry.Services, domain.CatalogService{
				Code:         mapping.InternalService(serviceCode),
				ProviderCode: serviceCode,
				Cost:         float64(price.Cost),
				Currency:     currencyRUB,
				Available:    int(price.Count),
			})
		}
		catalog.Countries = append(catalog.Countries, entry)
	}
	return catalog, nil
}

func (a *Adapter) RentNumber(ctx context.Context, req domain.RentRequest) (*domain.Rental, error) {
	codes := mapping.Resolve(req.Service, req.Country)
	hours := req.Hours
	if hours <= 0 {
		hours = defaultHours
	}

	body, err := a.call(ctx, "rent", "getRentNumber", url.Values{
		"service":   {codes.ProviderService},
		"country":   {codes.ProviderCountry},
		"rent_time": {strconv.Itoa(hours)},
	})
	if err != nil {
		return nil, err
	}

	rental, err := decodeRentPhone(ctx, body)
	if err != nil {
		return nil, err
	}
	rental.Service = codes.Service
	rental.Country = codes.Country
	return rental, nil
}

func (a *Adapter) GetStatus(ctx context.Context, externalID string) (*domain.RentalStatus, error) {
	body, err := a.call(ctx, "status", "getRentStatus", url.Values{"id": {externalID}})
	if err != nil {
		// waiting for the first sms is not a failure
		if isWaitCode(err) {
			return &domain.RentalStatus{State: domain.StateActive, Messages: []domain.Message{}}, nil
		}
		switch domain.CodeOf(err) {
		case domain.CodeAlreadyFinished:
			return &domain.RentalStatus{State: domain.StateFinished, Messages: []domain.Message{}}, nil
		case domain.CodeAlreadyCancelled:
			return &domain.RentalStatus{State: domain.StateCancelled, Messages: []domain.Message{}}, nil
		}
		return nil, err
	}

	items, _, err := shape.DecodeList[rentSMS](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}

	status := &domain.RentalStatus{State: domain.StateActive, Messages: make([]domain.Message, 0, len(items))}
	for _, item := range items {
		receivedAt, _ := wire.ParseTime(item.Date)
		status.Messages = append(status.Messages, domain.Message{
			Sender:     strings.TrimSpace(item.PhoneFrom),
			Text:       strings.TrimSpace(item.Text),
			ReceivedAt: receivedAt,
		})
	}
	return status, nil
}

func (a *Adapter) Cancel(ctx context.Context, externalID string) error {
	_, err := a.call(ctx, "cancel", "setRentStatus", url.Values{
		"id":     {externalID},
		"status": {cancelStatus},
	})
	return err
}

func (a *Adapter) Extend(ctx context.Context, externalID string, hours int) (*domain.Rental, error) {
	if hours <= 0 {
		hours = defaultHours
	}
	body, err := a.call(ctx, "extend", "continueRentNumber", url.Values{
		"id":        {externalID},
		"rent_time": {strconv.Itoa(hours)},
	})
	if err != nil {
		return nil, err
	}
	return decodeRentPhone(ctx, body)
}

func (a *Adapter) ListActive(ctx context.Context) ([]domain.Booking, error) {
	body, err := a.call(ctx, "list_active", "getRentList", nil)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return []domain.Booking{}, nil
		}
		return nil, err
	}

	items, _, err := shape.DecodeList[rentListItem](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	out := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		out = append(out, domain.Booking{
			ExternalID:  item.ID.String(),
			PhoneNumber: item.Phone.String(),
			Active:      true,
		})
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
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func decodeRentPhone(ctx context.Context, body []byte) (*domain.Rental, error) {
	var decoded rentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, unexpected(err)
	}
	if err := shape.Validate(ctx, decoded.Phone); err != nil {
		return nil, unexpected(err)
	}
	return &domain.Rental{
		PhoneNumber: decoded.Phone.Number.String(),
		RentID:      decoded.Phone.ID.String(),
		Currency:    currencyRUB,
		EndDate:     wire.ParseTimePtr(decoded.Phone.EndDate),
		Raw:         json.RawMessage(body),
	}, nil
}

// checkError recognizes both bare error tokens and {"status":"error"} bodies.
func checkError(resp *transport.Response) error {
	body := bytes.TrimSpace(resp.Body)
	token := ""
	switch {
	case len(body) > 0 && body[0] == '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && strings.EqualFold(env.Status, "error") {
			token = env.Message
			if token == "" {
				token = "PROVIDER_ERROR"
			}
		}
	case len(body) > 0 && body[0] != '[':
		token = string(body)
	}

	if token != "" {
		return classify(token, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &domain.Error{
			Provider:   providerName,
			Code:       domain.StatusFromHTTP(resp.StatusCode),
			Message:    string(body),
			HTTPStatus: resp.StatusCode,
		}
	}
	return nil
}

func classify(token string, status int) *domain.Error {
	token = strings.TrimSpace(token)
	key := strings.ToUpper(token)
	if i := strings.IndexByte(key, ':'); i > 0 {
		key = key[:i]
	}
	code, ok := errorCodes[key]
	if !ok {
		code = domain.CodeProviderError
		if key == waitCode {
			code = domain.CodeNotFound
		}
	}
	return &domain.Error{Provider: providerName, Code: code, Message: token, HTTPStatus: status}
}

func isWaitCode(err error) bool {
	var perr *domain.Error
	return errors.As(err, &perr) && strings.EqualFold(perr.Message, waitCode)
}

func unexpected(err error) error {
	return domain.WrapError(providerName, domain.CodeUnexpectedResponse, err)
}
