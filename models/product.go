package models

import (
	"fmt"
	"strings"
	"time"
)

// License is the purchase tier of a product. It determines price and
// usage rights.
type License string

const (
	LicensePersonal   License = "personal"
	LicenseCommercial License = "commercial"
)

// ParseLicense validates a license type at the API boundary.
func ParseLicense(s string) (License, error) {
	switch License(strings.ToLower(s)) {
	case LicensePersonal:
		return LicensePersonal, nil
	case LicenseCommercial:
		return LicenseCommercial, nil
	default:
		return "", fmt.Errorf("unknown license type %q", s)
	}
}

// Currency is a supported display currency. Catalog prices are stored
// in USD and converted on the way out.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// ParseCurrency validates a currency at the API boundary.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(s)) {
	case CurrencyUSD:
		return CurrencyUSD, nil
	case CurrencyEUR:
		return CurrencyEUR, nil
	default:
		return "", fmt.Errorf("unknown currency %q", s)
	}
}

// ProductPrice holds the base USD price per license tier, in whole
// currency units.
type ProductPrice struct {
	Personal   int64 `json:"personal"`
	Commercial int64 `json:"commercial"`
}

type Product struct {
	ID           string       `json:"id"`
	Slug         string       `json:"slug"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	IsBundle     bool         `json:"is_bundle"`
	Published    bool         `json:"published"`
	BasePriceUSD ProductPrice `json:"base_price_usd"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
