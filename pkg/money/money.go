// Package money formats decimal amounts for the active store currency and
// locale. It backs the money* template filters.
package money

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter is bound to one currency and locale.
type Formatter struct {
	unit    currency.Unit
	tag     language.Tag
	printer *message.Printer
	scale   int
	suffix  bool
}

// languages that place the symbol after the amount
var suffixSymbol = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "pl": true, "sv": true,
	"fi": true, "cs": true, "da": true, "nb": true, "pt": true, "ru": true,
}

// New builds a Formatter for an ISO 4217 code and a BCP 47 locale.
func New(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("money: currency %q: %w", code, err)
	}
	tag := language.Make(strings.TrimSpace(locale))
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	scale, _ := currency.Standard.Rounding(unit)
	base, _ := tag.Base()
	return &Formatter{
		unit:    unit,
		tag:     tag,
		printer: message.NewPrinter(tag),
		scale:   scale,
		suffix:  suffixSymbol[base.String()],
	}, nil
}

// MustNew panics when the currency code is invalid.
func MustNew(code, locale string) *Formatter {
	f, err := New(code, locale)
	if err != nil {
		panic(err)
	}
	return f
}

// Currency returns the ISO code.
func (f *Formatter) Currency() string { return f.unit.String() }

// Symbol returns the locale-specific currency symbol.
func (f *Formatter) Symbol() string {
	return f.printer.Sprint(currency.Symbol(f.unit))
}

func (f *Formatter) digits(amount float64, scale int) string {
	return f.printer.Sprint(number.Decimal(amount, number.Scale(scale)))
}

func (f *Formatter) withSymbol(digits string) string {
	if f.suffix {
		return digits + " " + f.Symbol()
	}
	return f.Symbol() + digits
}

// Money renders the amount with the currency symbol: $1,234.50.
func (f *Formatter) Money(amount float64) string {
	return f.withSymbol(f.digits(amount, f.scale))
}

// MoneyWithCurrency appends the ISO code: $1,234.50 USD.
func (f *Formatter) MoneyWithCurrency(amount float64) string {
	return f.Money(amount) + " " + f.Currency()
}

// MoneyWithoutCurrency renders digits only: 1,234.50.
func (f *Formatter) MoneyWithoutCurrency(amount float64) string {
	return f.digits(amount, f.scale)
}

// MoneyWithoutTrailingZeros drops the fraction for whole amounts: $1,234.
func (f *Formatter) MoneyWithoutTrailingZeros(amount float64) string {
	rounded := math.Round(amount*math.Pow10(f.scale)) / math.Pow10(f.scale)
	if rounded == math.Trunc(rounded) {
		return f.withSymbol(f.digits(rounded, 0))
	}
	return f.Money(amount)
}
