package pricelookup

import "strings"

// Marketplace describes one regional retailer storefront: which currency
// its prices fall back to, what language header keeps the markup stable,
// and whether the locale writes decimals with a comma.
type Marketplace struct {
	Host           string
	Currency       string
	AcceptLanguage string
	CommaDecimal   bool
}

var marketplaces = map[string]Marketplace{
	"www.amazon.com":    {Host: "www.amazon.com", Currency: "USD", AcceptLanguage: "en-US,en;q=0.9"},
	"www.amazon.ca":     {Host: "www.amazon.ca", Currency: "CAD", AcceptLanguage: "en-CA,en;q=0.9"},
	"www.amazon.co.uk":  {Host: "www.amazon.co.uk", Currency: "GBP", AcceptLanguage: "en-GB,en;q=0.9"},
	"www.amazon.de":     {Host: "www.amazon.de", Currency: "EUR", AcceptLanguage: "de-DE,de;q=0.9", CommaDecimal: true},
	"www.amazon.fr":     {Host: "www.amazon.fr", Currency: "EUR", AcceptLanguage: "fr-FR,fr;q=0.9", CommaDecimal: true},
	"www.amazon.es":     {Host: "www.amazon.es", Currency: "EUR", AcceptLanguage: "es-ES,es;q=0.9", CommaDecimal: true},
	"www.amazon.it":     {Host: "www.amazon.it", Currency: "EUR", AcceptLanguage: "it-IT,it;q=0.9", CommaDecimal: true},
	"www.amazon.co.jp":  {Host: "www.amazon.co.jp", Currency: "JPY", AcceptLanguage: "ja-JP,ja;q=0.9"},
	"www.amazon.com.au": {Host: "www.amazon.com.au", Currency: "AUD", AcceptLanguage: "en-AU,en;q=0.9"},
	"www.amazon.com.br": {Host: "www.amazon.com.br", Currency: "BRL", AcceptLanguage: "pt-BR,pt;q=0.9", CommaDecimal: true},
}

// MarketplaceFor resolves a storefront host, falling back to the US
// marketplace for unknown hosts so lookups degrade instead of failing.
func MarketplaceFor(host string) Marketplace {
	if m, ok := marketplaces[strings.ToLower(strings.TrimSpace(host))]; ok {
		return m
	}
	return marketplaces["www.amazon.com"]
}
