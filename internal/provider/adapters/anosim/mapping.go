package anosim

import "github.com/smallbiznis/smsrent/internal/provider/domain"

// Country codes are anosim country ids.
var countries = domain.MustCodeTable(map[string]string{
	"de": "98",
	"at": "14",
	"nl": "156",
	"gb": "77",
	"us": "233",
	"pl": "177",
	"fr": "75",
	"es": "207",
	"se": "213",
	"lt": "131",
	"ee": "68",
}, domain.DefaultCountry)

// Service codes are slugs of the product service name.
var services = domain.MustCodeTable(map[string]string{
	"other":     "other",
	"telegram":  "telegram",
	"whatsapp":  "whatsapp",
	"google":    "google",
	"facebook":  "facebook",
	"instagram": "instagram",
	"twitter":   "twitter",
	"tiktok":    "tiktok",
	"microsoft": "microsoft",
	"amazon":    "amazon",
	"uber":      "uber",
	"discord":   "discord",
	"openai":    "openai",
}, domain.DefaultService)

var mapping = domain.Mapping{Countries: countries, Services: services}

var errorPhrases = []struct {
	phrase string
	code   domain.ErrorCode
}{
	{"api key", domain.CodeBadKey},
	{"apikey", domain.CodeBadKey},
	{"already cancel", domain.CodeAlreadyCancelled},
	{"is cancel", domain.CodeAlreadyCancelled},
	{"already finished", domain.CodeAlreadyFinished},
	{"expired", domain.CodeAlreadyFinished},
	{"not active", domain.CodeRentInactive},
	{"inactive", domain.CodeRentInactive},
	{"balance", domain.CodeNoBalance},
	{"out of stock", domain.CodeNoNumbers},
	{"not available", domain.CodeNoNumbers},
	{"no numbers", domain.CodeNoNumbers},
	{"not found", domain.CodeNotFound},
}
