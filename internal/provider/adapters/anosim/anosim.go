package anosim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/shape"
	"github.com/smallbiznis/smsrent/internal/provider/transport"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
)

const (
	providerName    = domain.ProviderAnosim
	defaultHours    = 24
	defaultCurrency = "EUR"
	stateActive     = "active"
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

// Adapter talks to the anosim REST API. A rental is an order holding one
// booking; the booking id is the external id and the order id is kept as the
// secondary id.
type Adapter struct {
	apiKey string
	client *transport.Client
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) Mapping() domain.Mapping { return mapping }

func (a *Adapter) GetServicesAndCountries(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = domain.DefaultCountry
	}
	countryID, fellBack := countries.Resolve(country)
	if fellBack {
		country = countries.Fallback()
	}

	products, err := a.products(ctx, countryID)
	if err != nil {
		return nil, err
	}

	entry := domain.CatalogCountry{Code: country, ProviderCode: countryID}
	for _, p := range products {
		if entry.Name == "" {
			entry.Name = p.Country
		}
		currency := p.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		entry.Services = append(entry.Services, domain.CatalogService{
			Code:         mapping.InternalService(slug.Make(p.Service)),
			ProviderCode: p.ID.String(),
			Name:         p.Service,
			Cost:         float64(p.Price),
			Currency:     currency,
			Available:    int(p.AvailableCount),
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

	products, err := a.products(ctx, codes.ProviderCountry)
	if err != nil {
		return nil, err
	}
	chosen, err := pickProduct(products, codes.ProviderService)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(orderRequest{ProductID: chosen.ID.String(), Amount: 1, DurationInHours: hours})
	body, err := a.call(ctx, "rent", http.MethodPost, "/api/v1/Orders", nil, payload)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, unexpected(err)
	}
	if err := shape.Validate(ctx, order); err != nil {
		return nil, unexpected(err)
	}
	if len(order.OrderBookings) == 0 {
		return nil, domain.NewError(providerName, domain.CodeUnexpectedResponse, "order has no bookings")
	}
	b := order.OrderBookings[0]
	if b.ID == "" || b.Number == "" {
		return nil, domain.NewError(providerName, domain.CodeUnexpectedResponse, "booking is missing id or number")
	}

	cost := float64(order.Price)
	if cost == 0 {
		cost = float64(chosen.Price)
	}
	currency := order.Currency
	if currency == "" {
		currency = chosen.Currency
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return &domain.Rental{
		PhoneNumber: wire.Digits(b.Number.String()),
		RentID:      b.ID.String(),
		OrderID:     order.ID.String(),
		Service:     codes.Service,
		Country:     codes.Country,
		Cost:        cost,
		Currency:    currency,
		EndDate:     wire.ParseTimePtr(b.EndDate),
		Raw:         json.RawMessage(body),
	}, nil
}

func (a *Adapter) GetStatus(ctx context.Context, externalID string) (*domain.RentalStatus, error) {
	b, err := a.booking(ctx, externalID)
	if err != nil {
		return nil, err
	}

	body, err := a.call(ctx, "status", http.MethodGet, "/api/v1/Sms/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, err
	}
	items, _, err := shape.DecodeList[smsItem](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}

	status := &domain.RentalStatus{
		State:    bookingState(b.State),
		EndDate:  wire.ParseTimePtr(b.EndDate),
		Messages: make([]domain.Message, 0, len(items)),
	}
	for _, item := range items {
		receivedAt, _ := wire.ParseTime(item.Date)
		status.Messages = append(status.Messages, domain.Message{
			Sender:     strings.TrimSpace(item.Sender),
			Text:       strings.TrimSpace(item.Text),
			ReceivedAt: receivedAt,
		})
	}
	return status, nil
}

func (a *Adapter) Cancel(ctx context.Context, externalID string) error {
	_, err := a.call(ctx, "cancel", http.MethodPost, "/api/v1/OrderBookings/"+url.PathEscape(externalID)+"/Cancel", nil, nil)
	return err
}

func (a *Adapter) Extend(ctx context.Context, externalID string, hours int) (*domain.Rental, error) {
	if hours <= 0 {
		hours = defaultHours
	}
	payload, _ := json.Marshal(extendRequest{DurationInHours: hours})
	body, err := a.call(ctx, "extend", http.MethodPost, "/api/v1/OrderBookings/"+url.PathEscape(externalID)+"/Extend", nil, payload)
	if err != nil {
		return nil, err
	}
	var b booking
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, unexpected(err)
	}
	if err := shape.Validate(ctx, b); err != nil {
		return nil, unexpected(err)
	}
	return &domain.Rental{
		PhoneNumber: wire.Digits(b.Number.String()),
		RentID:      b.ID.String(),
		OrderID:     b.OrderID.String(),
		EndDate:     wire.ParseTimePtr(b.EndDate),
		Raw:         json.RawMessage(body),
	}, nil
}

func (a *Adapter) ListActive(ctx context.Context) ([]domain.Booking, error) {
	body, err := a.call(ctx, "list_active", http.MethodGet, "/api/v1/OrderBookings", url.Values{"state": {"Active"}}, nil)
	if err != nil {
		return nil, err
	}
	items, _, err := shape.DecodeList[booking](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	out := make([]domain.Booking, 0, len(items))
	for _, b := range items {
		out = append(out, domain.Booking{
			ExternalID:  b.ID.String(),
			OrderID:     b.OrderID.String(),
			PhoneNumber: wire.Digits(b.Number.String()),
			Active:      bookingState(b.State) == domain.StateActive,
			EndDate:     wire.ParseTimePtr(b.EndDate),
		})
	}
	return out, nil
}

func (a *Adapter) products(ctx context.Context, countryID string) ([]product, error) {
	body, err := a.call(ctx, "catalog", http.MethodGet, "/api/v1/Products", url.Values{"countryId": {countryID}}, nil)
	if err != nil {
		return nil, err
	}
	items, _, err := shape.DecodeList[product](ctx, body)
	if err != nil {
		return nil, unexpected(err)
	}
	return items, nil
}

func (a *Adapter) booking(ctx context.Context, id string) (*booking, error) {
	body, err := a.call(ctx, "status", http.MethodGet, "/api/v1/OrderBookings/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var b booking
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, unexpected(err)
	}
	if err := shape.Validate(ctx, b); err != nil {
		return nil, unexpected(err)
	}
	return &b, nil
}

func (a *Adapter) call(ctx context.Context, operation, method, path string, params url.Values, payload []byte) ([]byte, error) {
	if a.apiKey == "" {
		return nil, domain.NewError(providerName, domain.CodeNoAPIKey, "api key is not configured")
	}
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("apikey", a.apiKey)

	resp, err := a.client.Do(ctx, transport.Request{
		Operation: operation,
		Method:    method,
		Path:      path,
		Query:     query,
		Body:      payload,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classify(resp)
	}
	return resp.Body, nil
}

// pickProduct prefers an in-stock product for service, then the catch-all
// other product.
func pickProduct(products []product, service string) (*product, error) {
	var sawService bool
	for _, want := range []string{service, domain.DefaultService} {
		for i := range products {
			if slug.Make(products[i].Service) != want {
				continue
			}
			sawService = true
			if products[i].AvailableCount > 0 {
				return &products[i], nil
			}
		}
	}
	if sawService {
		return nil, domain.NewError(providerName, domain.CodeNoNumbers, fmt.Sprintf("no stock for %s", service))
	}
	return nil, domain.NewError(providerName, domain.CodeBadService, fmt.Sprintf("no product for %s", service))
}

func bookingState(raw string) domain.RentalState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case stateActive, "":
		return domain.StateActive
	case "finished", "expired", "completed":
		return domain.StateFinished
	case "cancelled", "canceled":
		return domain.StateCancelled
	default:
		return domain.StateUnknown
	}
}

func classify(resp *transport.Response) *domain.Error {
	var p problem
	_ = json.Unmarshal(resp.Body, &p)
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = strings.TrimSpace(strings.Join([]string{p.Title, p.Detail}, " "))
	}
	if msg == "" {
		msg = "http " + strconv.Itoa(resp.StatusCode)
	}

	code := domain.StatusFromHTTP(resp.StatusCode)
	if code == domain.CodeProviderError || code == domain.CodeNotFound {
		lower := strings.ToLower(msg)
		for _, p := range errorPhrases {
			if strings.Contains(lower, p.phrase) {
				code = p.code
				break
			}
		}
	}
	return &domain.Error{Provider: providerName, Code: code, Message: msg, HTTPStatus: resp.StatusCode}
}

func unexpected(err error) error {
	return domain.WrapError(providerName, domain.CodeUnexpectedResponse, err)
}
