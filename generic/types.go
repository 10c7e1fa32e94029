/*
Package generic provides the domain-agnostic primitives of the payout engine.

PURPOSE:
  This package holds the value types every calculator shares: money amounts,
  rates, identifiers, time keys and banded tier tables. Domain packages
  (commission, marketplace, closure) build on these types and never on each
  other's internals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity with a unit (always BRL today)
  - Rate: A fraction applied to an Amount (0.05 = 5%)
  - UserID/SaleID: Type-safe identifiers
  - Role: Closed set of user roles (admin, coordinator, seller)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift across tiers
  2. No mid-calculation rounding: Round2 is for presentation boundaries only
  3. Type Safety: Strong typing for IDs prevents mixing users and sales

USAGE:
  net := generic.BRL(1000)
  own := net.Mul(generic.MustParseDecimal("0.05")) // 50.00

SEE ALSO:
  - tier.go: Banded threshold lookups
  - model.go: Sale, Team and ClosureRecord records
  - store.go: Persistence ports
*/
package generic

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitBRL Unit = "BRL"
)

// Rate is a fraction applied to an amount.
type Rate = decimal.Decimal

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// BRL is shorthand for NewAmount(value, UnitBRL).
func BRL(value float64) Amount { return NewAmount(value, UnitBRL) }

// ZeroBRL is the additive identity for money.
func ZeroBRL() Amount { return Amount{Value: decimal.Zero, Unit: UnitBRL} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.unit()} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.unit()} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.unit()} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.unit()} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.unit()} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}
func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Div divides by s. Division by zero yields zero rather than panicking.
func (a Amount) Div(s decimal.Decimal) Amount {
	if s.IsZero() {
		return a.Zero()
	}
	return Amount{Value: a.Value.Div(s), Unit: a.unit()}
}

// ClampZero returns the amount, or zero when it is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// Round2 rounds half away from zero to cents. Presentation only.
func (a Amount) Round2() Amount { return Amount{Value: a.Value.Round(2), Unit: a.unit()} }

// Float64 returns the amount rounded to cents as a float, for DTOs.
func (a Amount) Float64() float64 { return a.Value.Round(2).InexactFloat64() }

func (a Amount) String() string { return a.Value.StringFixed(2) + " " + string(a.unit()) }

func (a Amount) unit() Unit {
	if a.Unit == "" {
		return UnitBRL
	}
	return a.Unit
}

// MarshalJSON writes the amount as a bare JSON number. The document store
// keeps numbers, not strings, and other clients read the same nodes.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*a = ZeroBRL()
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", string(data), err)
	}
	*a = Amount{Value: d, Unit: UnitBRL}
	return nil
}

// Sum adds amounts. An empty list sums to zero BRL.
func Sum(amounts ...Amount) Amount {
	total := ZeroBRL()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type SaleID string

// =============================================================================
// ROLE - Closed set of user roles
// =============================================================================

// Role is the role a user holds. The string values match the ones stored on
// user profiles by the dashboard.
type Role string

const (
	RoleNone        Role = ""
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordenadora"
	RoleSeller      Role = "vendedora"
)

// ParseRole maps a stored role string to a Role. Unknown values map to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleCoordinator, RoleSeller:
		return Role(s)
	case "coordinator":
		return RoleCoordinator
	case "seller":
		return RoleSeller
	default:
		return RoleNone
	}
}

func (r Role) Valid() bool { return r != RoleNone }
