/*
Package rental holds the shared vocabulary of the rental engine.

PURPOSE:
  Everything the booking engine, the performance engine, the stores and the
  HTTP layer need to agree on lives here: identifiers, money, the closed status
  enums and their classifications, activity kinds, records, errors and the
  store interfaces. The package has no behavior beyond classification and
  validation so every other package can depend on it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A two-decimal amount in a currency (e.g., 500.00 SAR)
  - IDs:   Typed identifiers so a UnitID can't be passed as a BookingID

DESIGN PRINCIPLES:
  1. Precision: Money uses decimal.Decimal, rounded to 2 places at construction
  2. Type Safety: Strong typing for IDs and statuses
  3. One classification: status rules live on the status types, never as
     ad hoc string lists at call sites (see status.go)

SEE ALSO:
  - status.go: BookingStatus state machine, UnitStatus, TargetPeriod
  - activity.go: Activity kinds and entries
  - store.go: Persistence interfaces
*/
package rental

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Two-decimal amount with currency
// =============================================================================

// Currency is an ISO 4217 code.
type Currency string

// CurrencySAR is the default currency.
const CurrencySAR Currency = "SAR"

// MoneyScale is the number of decimal places kept at every boundary.
const MoneyScale = 2

// Money is a monetary amount. Amounts are rounded to MoneyScale places when built.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney rounds v to two places.
func NewMoney(v decimal.Decimal, c Currency) Money {
	return Money{Amount: v.Round(MoneyScale), Currency: c}
}

// NewMoneyFromInt returns a whole amount.
func NewMoneyFromInt(v int64, c Currency) Money {
	return Money{Amount: decimal.NewFromInt(v), Currency: c}
}

// ParseMoney parses a decimal string such as "150.50".
func ParseMoney(s string, c Currency) (Money, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(v, c), nil
}

// MustMoney is ParseMoney for literals in tests and fixtures.
func MustMoney(s string, c Currency) Money {
	m, err := ParseMoney(s, c)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns 0 in currency c.
func ZeroMoney(c Currency) Money { return Money{Amount: decimal.Zero, Currency: c} }

func (m Money) Add(o Money) Money  { return Money{Amount: m.Amount.Add(o.Amount), Currency: m.currencyWith(o)} }
func (m Money) Sub(o Money) Money  { return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.currencyWith(o)} }
func (m Money) IsZero() bool       { return m.Amount.IsZero() }
func (m Money) IsNegative() bool   { return m.Amount.IsNegative() }
func (m Money) Equal(o Money) bool { return m.Amount.Equal(o.Amount) }

// String formats the amount with exactly two decimals, without the currency.
func (m Money) String() string { return m.Amount.StringFixed(MoneyScale) }

func (m Money) currencyWith(o Money) Currency {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}

// MarshalJSON writes the amount as a fixed two-decimal string ("500.00").
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "500.00" or 500.
// The currency is not part of the wire value; callers set it from configuration.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid amount: %s", data)
		}
		s = n.String()
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	m.Amount = v.Round(MoneyScale)
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	UnitID     string
	BookingID  string
	EmployeeID string
	ActivityID string
	TargetID   string
	CustomerID string
	ProjectID  string
)

// NewID returns a random UUID string for any identifier type.
func NewID() string {
	return uuid.NewString()
}
