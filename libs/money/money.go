// Package money provides an immutable decimal-exact monetary value with currency.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when an amount is not numeric or not representable to 2 decimals
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrInvalidCurrency is returned when a currency code is not exactly 3 letters
	ErrInvalidCurrency = errors.New("money: invalid currency code")
	// ErrCurrencyMismatch is returned when arithmetic mixes currencies
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money is an immutable monetary value in a single currency.
// Amounts are fixed point with exactly 2 fractional digits, never binary floating point.
type Money struct {
	amount   decimal.Decimal
	currency string
}

func validCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range currency {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// New parses amount and returns a Money in the given currency.
// More than 2 fractional digits in amount is an error rather than a silent rounding.
func New(amount string, currency string) (Money, error) {
	if !validCurrency(currency) {
		return Money{}, ErrInvalidCurrency
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: d.Round(2), currency: currency}, nil
}

// FromDecimal returns a Money from an already parsed decimal, rounded to 2 decimal places
func FromDecimal(amount decimal.Decimal, currency string) (Money, error) {
	if !validCurrency(currency) {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// FromMinorUnits returns a Money from an integer count of minor units (e.g. ngwee)
func FromMinorUnits(minor int64, currency string) (Money, error) {
	if !validCurrency(currency) {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: decimal.New(minor, -2), currency: currency}, nil
}

// Amount returns the amount as a string with exactly 2 decimal places
func (m Money) Amount() string {
	return m.amount.StringFixed(2)
}

// Currency returns the 3-letter currency code
func (m Money) Currency() string {
	return m.currency
}

// Decimal returns the underlying decimal amount
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// Add returns m + other, failing on currency mismatch
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other, failing on currency mismatch
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Mul returns m scaled by factor, rounded to 2 decimal places half away from zero
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor).Round(2), currency: m.currency}
}

// Cmp compares two amounts of the same currency, returning -1, 0 or 1
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether the amounts match, failing on currency mismatch
func (m Money) Equal(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.Equal(other.amount), nil
}

// IsZero returns true when the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true when the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true when the amount is less than zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount(), Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux moneyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := New(aux.Amount, aux.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// String implements fmt.Stringer
func (m Money) String() string {
	return m.Amount() + " " + m.currency
}
