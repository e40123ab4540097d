package currency

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Decimals is the usual number of fraction digits.
const Decimals = 2

var symbols = map[string]string{
	"USD": "$",
	"RUB": "₽",
	"EUR": "€",
	"GBP": "£",
	"CNY": "¥",
}

// Symbol returns the display symbol of code: the fixed symbol when known,
// the code itself otherwise, "$" when code is empty.
func Symbol(code string) string {
	if code == "" {
		return "$"
	}
	if s, ok := symbols[code]; ok {
		return s
	}
	return code
}

// Amount lays out amount with "," grouping and "." decimals, rounded half
// away from zero, behind symbol. Negative amounts read "-$1.00".
func Amount(amount float64, symbol string, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(decimals)).Round(0).IntPart()
	return money.NewFormatter(decimals, ".", ",", symbol, "$1").Format(minor)
}

// Format converts an amount in Base and formats it in the selected currency.
func (s *Service) Format(amount float64, decimals int) string {
	st := s.State()
	return Amount(amount*rateIn(st.Rates, st.Selected), Symbol(st.Selected), decimals)
}

// FormatNative formats amount in its own currency, without conversion. A
// nil amount formats as zero. With no native currency the selected
// currency's symbol is used.
func (s *Service) FormatNative(amount *float64, native string, decimals int) string {
	var v float64
	if amount != nil {
		v = *amount
	}
	code := native
	if code == "" {
		code = s.Selected()
	}
	return Amount(v, Symbol(code), decimals)
}

// FormatConverted converts amount from the from currency and formats it in
// the selected currency.
func (s *Service) FormatConverted(amount float64, from string, decimals int) string {
	return Amount(s.ConvertFrom(amount, from), Symbol(s.Selected()), decimals)
}
