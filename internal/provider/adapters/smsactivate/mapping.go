package smsactivate

import "github.com/smallbiznis/smsrent/internal/provider/domain"

var countries = domain.MustCodeTable(map[string]string{
	"ru": "0",
	"ua": "1",
	"kz": "2",
	"cn": "3",
	"ph": "4",
	"id": "6",
	"pl": "15",
	"gb": "16",
	"de": "43",
	"se": "46",
	"nl": "48",
	"es": "56",
	"fr": "78",
	"it": "86",
	"us": "187",
}, domain.DefaultCountry)

var services = domain.MustCodeTable(map[string]string{
	"other":     "ot",
	"telegram":  "tg",
	"whatsapp":  "wa",
	"google":    "go",
	"facebook":  "fb",
	"instagram": "ig",
	"twitter":   "tw",
	"tiktok":    "lf",
	"microsoft": "mm",
	"amazon":    "am",
	"uber":      "ub",
	"discord":   "ds",
	"openai":    "dr",
}, domain.DefaultService)

var mapping = domain.Mapping{Countries: countries, Services: services}

var errorCodes = map[string]domain.ErrorCode{
	"NO_KEY":           domain.CodeNoAPIKey,
	"BAD_KEY":          domain.CodeBadKey,
	"ACCOUNT_INACTIVE": domain.CodeNotAuthorized,
	"BANNED":           domain.CodeNotAuthorized,
	"NO_NUMBERS":       domain.CodeNoNumbers,
	"NO_BALANCE":       domain.CodeNoBalance,
	"NO_ID_RENT":       domain.CodeNotFound,
	"INVALID_PHONE":    domain.CodeNotFound,
	"BAD_ID":           domain.CodeNotFound,
	"NO_ACTIVATION":    domain.CodeNotFound,
	"STATUS_CANCEL":    domain.CodeAlreadyCancelled,
	"ALREADY_CANCELED": domain.CodeAlreadyCancelled,
	"STATUS_FINISH":    domain.CodeAlreadyFinished,
	"CANT_CANCEL":      domain.CodeRentInactive,
	"INVALID_TIME":     domain.CodeRentInactive,
	"BAD_SERVICE":      domain.CodeBadService,
	"WRONG_SERVICE":    domain.CodeBadService,
	"BAD_COUNTRY":      domain.CodeBadCountry,
	"WRONG_COUNTRY":    domain.CodeBadCountry,
	"ERROR_SQL":        domain.CodeProviderError,
	"BAD_ACTION":       domain.CodeProviderError,
}
