package repo

import "github.com/shopspring/decimal"

func decimalFrom(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
