package donation

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountReplacer = strings.NewReplacer("$", "", ",", "", " ", "")

// ParseAmount reads a currency-like amount such as "$1,000.00".
func ParseAmount(amount string) (decimal.Decimal, error) {
	return decimal.NewFromString(amountReplacer.Replace(amount))
}

// TotalAmount sums every parseable amount and reports how many could not be parsed.
func TotalAmount(records []Record) (decimal.Decimal, int) {
	total := decimal.Zero
	unparsed := 0
	for _, record := range records {
		value, err := ParseAmount(record.Amount)
		if err != nil {
			unparsed++
			continue
		}
		total = total.Add(value)
	}
	return total, unparsed
}
