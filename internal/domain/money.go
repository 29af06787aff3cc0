package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact amount in a currency's major unit.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// minorUnitExponents lists ISO 4217 currencies whose minor unit is not 2 digits.
var minorUnitExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnitExponent returns the number of decimal digits in the currency's minor unit.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnit converts a major-unit amount to integer minor units, rounding half away from zero.
func ToMinorUnit(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(MinorUnitExponent(currency)).Round(0).IntPart()
}

// FromMinorUnit converts integer minor units back to a major-unit amount.
func FromMinorUnit(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent(currency))
}

func (m Money) MinorUnit() int64 {
	return ToMinorUnit(m.Amount, m.Currency)
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}
