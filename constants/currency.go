package constants

import "strings"

// Currencies lists the ISO 4217 codes the engine recognises.
var Currencies = []string{"CAD", "USD", "EUR", "GBP", "AUD", "NZD", "JPY", "CHF"}

var countryCurrency = map[string]string{
	"CA": "CAD", "CANADA": "CAD",
	"US": "USD", "USA": "USD", "UNITED STATES": "USD",
	"GB": "GBP", "UK": "GBP", "UNITED KINGDOM": "GBP",
	"AU": "AUD", "AUSTRALIA": "AUD",
	"NZ": "NZD", "NEW ZEALAND": "NZD",
	"JP": "JPY", "JAPAN": "JPY",
	"CH": "CHF", "SWITZERLAND": "CHF",
	"DE": "EUR", "FR": "EUR", "IE": "EUR", "ES": "EUR", "IT": "EUR", "NL": "EUR",
	"BE": "EUR", "AT": "EUR", "PT": "EUR", "FI": "EUR",
	"GERMANY": "EUR", "FRANCE": "EUR", "IRELAND": "EUR", "SPAIN": "EUR", "ITALY": "EUR",
}

// CurrencyForCountry maps a billing country code or name to its currency.
func CurrencyForCountry(country string) (string, bool) {
	c, ok := countryCurrency[strings.ToUpper(strings.TrimSpace(country))]
	return c, ok
}

// IsKnownCurrency reports whether code is one of Currencies.
func IsKnownCurrency(code string) bool {
	for _, c := range Currencies {
		if c == code {
			return true
		}
	}
	return false
}
