package anosim

import "github.com/smallbiznis/smsrent/internal/provider/wire"

type product struct {
	ID             wire.String `json:"id" validate:"required"`
	CountryID      wire.String `json:"countryId"`
	Country        string      `json:"country"`
	Service        string      `json:"service" validate:"required"`
	RentalType     string      `json:"rentalType"`
	Price          wire.Float  `json:"price"`
	Currency       string      `json:"currency"`
	AvailableCount wire.Float  `json:"availableCount"`
}

type booking struct {
	ID        wire.String `json:"id" validate:"required"`
	OrderID   wire.String `json:"orderId"`
	Number    wire.String `json:"number"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	State     string      `json:"state"`
}

type orderResponse struct {
	ID            wire.String `json:"id" validate:"required"`
	Price         wire.Float  `json:"price"`
	Currency      string      `json:"currency"`
	OrderBookings []booking   `json:"orderBookings"`
}

type orderRequest struct {
	ProductID       string `json:"productId"`
	Amount          int    `json:"amount"`
	DurationInHours int    `json:"durationInHours"`
}

type extendRequest struct {
	DurationInHours int `json:"durationInHours"`
}

type smsItem struct {
	Sender string `json:"messageSender"`
	Text   string `json:"messageText" validate:"required"`
	Date   string `json:"messageDate"`
}

type problem struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}
