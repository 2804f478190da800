// Package pricing converts base USD catalog prices into displayed
// amounts. Prices are whole currency units; no fractional subunits are
// modeled.
package pricing

import (
	"fmt"
	"math"

	"formakit.app/cloud/models"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// usdToEur is the fixed conversion rate applied to EUR displays.
const usdToEur = 0.92

// displayLocales is tried in order when formatting; the final fallback
// is plain English so formatting never fails.
var displayLocales = []string{"en-US", "en-GB", "de-DE"}

// PriceFor returns the price of a product for a license tier in the
// target currency. License and currency are validated at the API
// boundary; this function assumes both are members of their enums.
func PriceFor(product *models.Product, license models.License, cur models.Currency) int64 {
	base := product.BasePriceUSD.Personal
	if license == models.LicenseCommercial {
		base = product.BasePriceUSD.Commercial
	}

	if cur == models.CurrencyUSD {
		return base
	}
	return int64(math.Round(float64(base) * usdToEur))
}

// Format renders an amount as a localized currency string.
func Format(amount int64, cur models.Currency) string {
	return FormatIn(amount, cur, displayLocales...)
}

// FormatIn renders an amount using the first locale tag that parses,
// falling back to English when none do.
func FormatIn(amount int64, cur models.Currency, locales ...string) string {
	unit, err := currency.ParseISO(string(cur))
	if err != nil {
		// Unknown ISO code; render plainly rather than fail
		return fmt.Sprintf("%d %s", amount, cur)
	}

	printer := message.NewPrinter(localeTag(locales))
	return printer.Sprintf("%v", currency.Symbol(unit.Amount(amount)))
}

func localeTag(locales []string) language.Tag {
	for _, locale := range locales {
		if tag, err := language.Parse(locale); err == nil {
			return tag
		}
	}
	return language.English
}
