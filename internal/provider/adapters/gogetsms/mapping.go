package gogetsms

import "github.com/smallbiznis/smsrent/internal/provider/domain"

var countries = domain.MustCodeTable(map[string]string{
	"ru": "0",
	"ua": "1",
	"kz": "2",
	"id": "6",
	"pl": "15",
	"gb": "16",
	"de": "43",
	"nl": "48",
	"fr": "78",
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
	"discord":   "ds",
	"openai":    "dr",
}, domain.DefaultService)

var mapping = domain.Mapping{Countries: countries, Services: services}

var errorCodes = map[string]domain.ErrorCode{
	"NO_KEY":                domain.CodeNoAPIKey,
	"BAD_KEY":               domain.CodeBadKey,
	"BANNED":                domain.CodeNotAuthorized,
	"NO_NUMBERS":            domain.CodeNoNumbers,
	"NO_BALANCE":            domain.CodeNoBalance,
	"BAD_SERVICE":           domain.CodeBadService,
	"BAD_COUNTRY":           domain.CodeBadCountry,
	"NO_ACTIVATION":         domain.CodeNotFound,
	"WRONG_ACTIVATION_ID":   domain.CodeNotFound,
	"BAD_ID":                domain.CodeNotFound,
	"ACCESS_CANCEL_ALREADY": domain.CodeAlreadyCancelled,
	"STATUS_CANCEL":         domain.CodeAlreadyCancelled,
	"ACCESS_ACTIVATION":     domain.CodeAlreadyFinished,
	"EARLY_CANCEL_DENIED":   domain.CodeRentInactive,
	"BAD_ACTION":            domain.CodeProviderError,
	"ERROR_SQL":             domain.CodeProviderError,
}
