package billing

import (
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount with two decimals prefixed by symbol.
func FormatMoney(symbol string, amount float64) string {
	d := decimal.NewFromFloat(amount)
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}

// RoundCents rounds amount to two decimals, half away from zero.
func RoundCents(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

// ScheduleResidual is what remains of total after collecting count installments of total/count
// rounded to cents. A non-zero value is the cent discrepancy left by non-divisible totals.
func ScheduleResidual(total float64, count int) decimal.Decimal {
	if count < 1 {
		return decimal.Zero
	}
	t := decimal.NewFromFloat(total)
	n := decimal.NewFromInt(int64(count))
	per := t.DivRound(n, 2)
	return t.Sub(per.Mul(n))
}

// Sum adds amounts exactly and returns the cent-rounded total.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}
