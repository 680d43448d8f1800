package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrVATRateMismatch  = errors.New("money: vat rate mismatch")
	ErrInvalidVATRate   = errors.New("money: vat rate must be between 0 and 1")
	ErrNegativeFactor   = errors.New("money: multiplier must not be negative")
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

var one = decimal.NewFromInt(1)

// Money is an amount split into net and VAT parts. Gross is always Net+VAT.
// Values are immutable; every operation returns a new Money.
type Money struct {
	Net      decimal.Decimal `json:"net"`
	VAT      decimal.Decimal `json:"vat"`
	VATRate  decimal.Decimal `json:"vat_rate"`
	Currency string          `json:"currency"`
}

// FromNet builds Money from a net amount, deriving VAT = round(net*rate, 2).
func FromNet(net, vatRate decimal.Decimal, currency string) (Money, error) {
	code, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if err := validateRate(vatRate); err != nil {
		return Money{}, err
	}
	net = round(net)
	return Money{
		Net:      net,
		VAT:      round(net.Mul(vatRate)),
		VATRate:  vatRate,
		Currency: code,
	}, nil
}

// FromGross back-computes net from a gross amount. Gross is preserved exactly:
// net = round(gross/(1+rate), 2) and vat = gross - net.
func FromGross(gross, vatRate decimal.Decimal, currency string) (Money, error) {
	code, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if err := validateRate(vatRate); err != nil {
		return Money{}, err
	}
	gross = round(gross)
	net := round(gross.Div(one.Add(vatRate)))
	return Money{
		Net:      net,
		VAT:      gross.Sub(net),
		VATRate:  vatRate,
		Currency: code,
	}, nil
}

// Zero returns an empty amount in the given currency and rate.
func Zero(vatRate decimal.Decimal, currency string) Money {
	return Money{Net: decimal.Zero, VAT: decimal.Zero, VATRate: vatRate, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// MustFromNet panics on invalid input; useful in tests and fixtures.
func MustFromNet(net string, vatRate string, currency string) Money {
	m, err := FromNet(decimal.RequireFromString(net), decimal.RequireFromString(vatRate), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Gross returns Net+VAT.
func (m Money) Gross() decimal.Decimal {
	return m.Net.Add(m.VAT)
}

// Add sums net and VAT componentwise. A zero operand is neutral regardless of its rate.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency == "" || other.Currency == "" {
		return Money{}, ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	switch {
	case other.IsZero():
		return m, nil
	case m.IsZero():
		return other, nil
	case !m.VATRate.Equal(other.VATRate):
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrVATRateMismatch, m.VATRate, other.VATRate)
	}
	return Money{
		Net:      m.Net.Add(other.Net),
		VAT:      m.VAT.Add(other.VAT),
		VATRate:  m.VATRate,
		Currency: m.Currency,
	}, nil
}

// MultiplyByDays scales net by n rental days and derives VAT from the scaled
// net, so VAT == round(net*rate, 2) holds for the total.
func (m Money) MultiplyByDays(n int) (Money, error) {
	if n < 0 {
		return Money{}, ErrNegativeFactor
	}
	net := m.Net.Mul(decimal.NewFromInt(int64(n)))
	return Money{
		Net:      net,
		VAT:      round(net.Mul(m.VATRate)),
		VATRate:  m.VATRate,
		Currency: m.Currency,
	}, nil
}

// IsZero reports whether both parts are zero.
func (m Money) IsZero() bool {
	return m.Net.IsZero() && m.VAT.IsZero()
}

// IsNegative reports whether the gross amount is below zero.
func (m Money) IsNegative() bool {
	return m.Gross().IsNegative()
}

// Equal compares amounts, rate and currency by value.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency &&
		m.Net.Equal(other.Net) &&
		m.VAT.Equal(other.VAT) &&
		m.VATRate.Equal(other.VATRate)
}

func (m Money) String() string {
	return m.Gross().StringFixed(Scale) + " " + m.Currency
}

func round(d decimal.Decimal) decimal.Decimal {
	// Round is half away from zero, which is half-up for non-negative amounts.
	return d.Round(Scale)
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return ErrInvalidVATRate
	}
	return nil
}
