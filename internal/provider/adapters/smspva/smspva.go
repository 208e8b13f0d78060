package smspva

import (
	"context"
	"encoding/json"
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
	providerName = domain.ProviderSMSPVA
	rentPath     = "/api/rent.php"
	defaultHours = 24
	currencyUSD  = "USD"
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

type Adapter struct {
	apiKey string
	client *transport.Client
}

type envelope struct {
	Status  wire.String     `json:"status"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type order struct {
	ID      wire.String `json:"id" validate:"required"`
	Number  wire.String `json:"pnumber" validate:"required"`
	Prefix  wire.String `json:"ccode"`
	Country string      `json:"country"`
	Service string      `json:"service"`
	Cost    wire.Float  `json:"cost"`
	DateEnd string      `json:"dateend"`
	Status  string      `json:"status"`
}

type sms struct {
	From string `json:"in_number"`
	Text string `json:"text" validate:"required"`
	Date string `json:"date"`
}

type price struct {
	Service string     `json:"service" validate:"required"`
	Name    string     `json:"name"`
	Price   wire.Float `json:"price"`
	Count   wire.Float `json:"count"`
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) Mapping() domain.Mapping { return mapping }

func (a *Adapter) GetServicesAndCountries(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = domain.DefaultCountry
	}
	countryCode, fellBack := countries.Resolve(country)
	if fellBack {
		country = countries.Fallback()
	}

	body, err := a.call(ctx, "catalog", "getdata", url.Values{
		"country": {countryCode},
		"dtype":   {"hour"},
		"dcount":  {strconv.Itoa(defaultHours)},
	})
	if err != nil {
		return nil, err
	}
	prices, _, err := shape.DecodeList[price](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}

	entry := domain.CatalogCountry{Code: country, ProviderCode: countryCode}
	for _, p := range prices {
		entry.Services = append(entry.Services, domain.CatalogService{
			Code:         mapping.InternalService(p.Service),
			ProviderCode: p.Service,
			Name:         p.Name,
			Cost:         float64(p.Price),
			Currency:     currencyUSD,
			Available:    int(p.Count),
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

func (a *Adapter) RentNumber(ctx context.Context, req domain.RentRequest) (*domain.Rental, error) {
	codes := mapping.Resolve(req.Service, req.Country)
	hours := req.Hours
	if hours <= 0 {
		hours = defaultHours
	}
	body, err := a.call(ctx, "rent", "create", url.Values{
		"country": {codes.ProviderCountry},
		"service": {codes.ProviderService},
		"dtype":   {"hour"},
		"dcount":  {strconv.Itoa(hours)},
	})
	if err != nil {
		return nil, err
	}
	rental, err := decodeOrder(ctx, body)
	if err != nil {
		return nil, err
	}
	rental.Service = codes.Service
	rental.Country = codes.Country
	return rental, nil
}

func (a *Adapter) GetStatus(ctx context.Context, externalID string) (*domain.RentalStatus, error) {
	body, err := a.call(ctx, "status", "sms", url.Values{"id": {externalID}})
	if err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeAlreadyFinished:
			return &domain.RentalStatus{State: domain.StateFinished, Messages: []domain.Message{}}, nil
		case domain.CodeAlreadyCancelled:
			return &domain.RentalStatus{State: domain.StateCancelled, Messages: []domain.Message{}}, nil
		}
		return nil, err
	}

	items, _, err := shape.DecodeList[sms](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	status := &domain.RentalStatus{State: domain.StateActive, Messages: make([]domain.Message, 0, len(items))}
	for _, item := range items {
		receivedAt, _ := wire.ParseTime(item.Date)
		status.Messages = append(status.Messages, domain.Message{
			Sender:     strings.TrimSpace(item.From),
			Text:       strings.TrimSpace(item.Text),
			ReceivedAt: receivedAt,
		})
	}
	return status, nil
}

func (a *Adapter) Cancel(ctx context.Context, externalID string) error {
	_, err := a.call(ctx, "cancel", "delete", url.Values{"id": {externalID}})
	return err
}

func (a *Adapter) Extend(ctx context.Context, externalID string, hours int) (*domain.Rental, error) {
	if hours <= 0 {
		hours = defaultHours
	}
	body, err := a.call(ctx, "extend", "prolong", url.Values{
		"id":     {externalID},
		"dtype":  {"hour"},
		"dcount": {strconv.Itoa(hours)},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(ctx, body)
}

func (a *Adapter) ListActive(ctx context.Context) ([]domain.Booking, error) {
	body, err := a.call(ctx, "list_active", "orders", nil)
	if err != nil {
		return nil, err
	}
	orders, _, err := shape.DecodeList[order](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	out := make([]domain.Booking, 0, len(orders))
	for _, o := range orders {
		out = append(out, domain.Booking{
			ExternalID:  o.ID.String(),
			PhoneNumber: fullNumber(o),
			Active:      o.Status == "" || strings.EqualFold(o.Status, "active"),
			EndDate:     wire.ParseTimePtr(o.DateEnd),
		})
	}
	return out, nil
}

// call sends the key as both the apikey query param and header; the rent API
// accepts either.
func (a *Adapter) call(ctx context.Context, operation, method string, params url.Values) ([]byte, error) {
	if a.apiKey == "" {
		return nil, domain.NewError(providerName, domain.CodeNoAPIKey, "api key is not configured")
	}
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("method", method)
	query.Set("apikey", a.apiKey)

	resp, err := a.client.Do(ctx, transport.Request{
		Operation: operation,
		Method:    http.MethodGet,
		Path:      rentPath,
		Query:     query,
		Header:    http.Header{"apikey": {a.apiKey}},
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.Error{
				Provider:   providerName,
				Code:       domain.StatusFromHTTP(resp.StatusCode),
				Message:    strings.TrimSpace(string(resp.Body)),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, unexpected(err)
	}
	if env.Status.String() != "1" {
		return nil, classify(env.Message, resp.StatusCode)
	}
	return resp.Body, nil
}

func decodeOrder(ctx context.Context, body []byte) (*domain.Rental, error) {
	var env struct {
		Data order `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, unexpected(err)
	}
	if err := shape.Validate(ctx, env.Data); err != nil {
		return nil, unexpected(err)
	}
	return &domain.Rental{
		PhoneNumber: fullNumber(env.Data),
		RentID:      env.Data.ID.String(),
		Cost:        float64(env.Data.Cost),
		Currency:    currencyUSD,
		EndDate:     wire.ParseTimePtr(env.Data.DateEnd),
		Raw:         json.RawMessage(body),
	}, nil
}

// fullNumber prefixes the calling code when pnumber is national.
func fullNumber(o order) string {
	number := wire.Digits(o.Number.String())
	prefix := wire.Digits(o.Prefix.String())
	if prefix == "" || strings.HasPrefix(number, prefix) {
		return number
	}
	return prefix + number
}

func classify(msg string, status int) *domain.Error {
	lower := strings.ToLower(strings.TrimSpace(msg))
	code := domain.CodeProviderError
	if status >= http.StatusBadRequest {
		code = domain.StatusFromHTTP(status)
	}
	for _, p := range errorPhrases {
		if strings.Contains(lower, p.phrase) {
			code = p.code
			break
		}
	}
	return &domain.Error{Provider: providerName, Code: code, Message: msg, HTTPStatus: status}
}

func unexpected(err error) error {
	return domain.WrapError(providerName, domain.CodeUnexpectedResponse, err)
}
