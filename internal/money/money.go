// Package money содержит операции округления денежных сумм.
package money

import "github.com/shopspring/decimal"

// Round2 округляет сумму до двух знаков после запятой, половину от нуля.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NonNegative возвращает d, либо ноль для отрицательных значений.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// LineTotal возвращает стоимость позиции price * quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
