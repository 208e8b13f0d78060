package smspva

import "github.com/smallbiznis/smsrent/internal/provider/domain"

var countries = domain.MustCodeTable(map[string]string{
	"de": "DE",
	"gb": "GB",
	"us": "US",
	"nl": "NL",
	"fr": "FR",
	"es": "ES",
	"it": "IT",
	"pl": "PL",
	"se": "SE",
	"ee": "EE",
	"lt": "LT",
	"ua": "UA",
	"kz": "KZ",
	"id": "ID",
	"ph": "PH",
}, domain.DefaultCountry)

var services = domain.MustCodeTable(map[string]string{
	"other":     "opt19",
	"google":    "opt1",
	"facebook":  "opt2",
	"microsoft": "opt15",
	"instagram": "opt16",
	"whatsapp":  "opt20",
	"telegram":  "opt29",
	"twitter":   "opt41",
	"amazon":    "opt44",
	"discord":   "opt45",
	"uber":      "opt72",
	"tiktok":    "opt104",
	"openai":    "opt132",
}, domain.DefaultService)

var mapping = domain.Mapping{Countries: countries, Services: services}

// errorPhrases are matched case-insensitively against the msg field, first hit
// wins.
var errorPhrases = []struct {
	phrase string
	code   domain.ErrorCode
}{
	{"api key", domain.CodeBadKey},
	{"apikey", domain.CodeBadKey},
	{"access denied", domain.CodeNotAuthorized},
	{"already cancel", domain.CodeAlreadyCancelled},
	{"already canceled", domain.CodeAlreadyCancelled},
	{"already finished", domain.CodeAlreadyFinished},
	{"expired", domain.CodeAlreadyFinished},
	{"not active", domain.CodeRentInactive},
	{"inactive", domain.CodeRentInactive},
	{"no free", domain.CodeNoNumbers},
	{"no numbers", domain.CodeNoNumbers},
	{"balance", domain.CodeNoBalance},
	{"not found", domain.CodeNotFound},
	{"service", domain.CodeBadService},
	{"country", domain.CodeBadCountry},
	{"too many", domain.CodeRateLimited},
}
