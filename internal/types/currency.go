package types

import "github.com/shopspring/decimal"

// CURRENCY_PRECISION is a map of 3 digit lowercase ISO currency codes to the
// number of decimal places their minor unit carries.
var CURRENCY_PRECISION = map[string]int32{
	"usd": 2,
	"eur": 2,
	"gbp": 2,
	"aud": 2,
	"cad": 2,
	"chf": 2,
	"sek": 2,
	"nzd": 2,
	"sgd": 2,
	"inr": 2,
	"brl": 2,
	"mxn": 2,
	"jpy": 0,
	"krw": 0,
	"kwd": 3,
	"bhd": 3,
}

// GetCurrencyPrecision returns the minor-unit precision for a currency code,
// defaulting to 2 when the code is unknown.
func GetCurrencyPrecision(code string) int32 {
	if precision, ok := CURRENCY_PRECISION[code]; ok {
		return precision
	}
	return 2
}

// RoundToCurrencyPrecision rounds an amount to the currency's minor unit.
func RoundToCurrencyPrecision(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(GetCurrencyPrecision(code))
}
