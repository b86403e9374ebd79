package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"listings-api/domain"
)

var (
	// ErrEmptyValue is returned when a required price is blank.
	ErrEmptyValue = errors.New("empty value")

	eokRe       = regexp.MustCompile(`^(\d+)억(\d*)$`)
	pyungFactor = decimal.NewFromFloat(3.3)
)

// Price is a parsed asking price in units of 10,000 KRW.
type Price struct {
	Category domain.Category
	Deposit  int64
	Rent     int64
	Sale     int64
}

// Apply copies the price onto a listing.
func (p Price) Apply(l *domain.Listing) {
	l.Category = p.Category
	l.Deposit = p.Deposit
	l.Rent = p.Rent
	l.SalePrice = p.Sale
}

// ParsePrice reads "deposit/rent" as a rental and anything else as a sale
// price. Sale prices may use 억 notation ("3억5000").
func ParsePrice(raw string) (Price, error) {
	s := strings.NewReplacer(",", "", " ", "", "\t", "", "만원", "", "만", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return Price{}, ErrEmptyValue
	}

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return Price{}, fmt.Errorf("invalid rent price %q", raw)
		}
		deposit, err := parseAmount(parts[0])
		if err != nil {
			return Price{}, fmt.Errorf("invalid deposit in %q: %w", raw, err)
		}
		rent, err := parseAmount(parts[1])
		if err != nil {
			return Price{}, fmt.Errorf("invalid rent in %q: %w", raw, err)
		}
		return Price{Category: domain.CategoryRent, Deposit: deposit, Rent: rent}, nil
	}

	sale, err := parseAmount(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid sale price %q: %w", raw, err)
	}
	return Price{Category: domain.CategorySale, Sale: sale}, nil
}

func parseAmount(s string) (int64, error) {
	if s == "" {
		return 0, ErrEmptyValue
	}
	if m := eokRe.FindStringSubmatch(s); m != nil {
		eok, _ := strconv.ParseInt(m[1], 10, 64)
		var rest int64
		if m[2] != "" {
			rest, _ = strconv.ParseInt(m[2], 10, 64)
		}
		return eok*10000 + rest, nil
	}
	// spreadsheets sometimes export integers as "1500.0"
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount: %q", s)
	}
	return d.IntPart(), nil
}

// ParseArea reads an area figure. Blank input is zero.
func ParseArea(raw string) (float64, error) {
	s := strings.NewReplacer(",", "", " ", "", "㎡", "", "m²", "", "m2", "", "평", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid area %q", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative area %q", raw)
	}
	f, _ := d.Float64()
	return f, nil
}

// ToPyung converts square metres to pyung, rounded to two places.
func ToPyung(sqm float64) float64 {
	f, _ := decimal.NewFromFloat(sqm).Div(pyungFactor).Round(2).Float64()
	return f
}

// FormatSalePrice renders a sale price the way the office writes it:
// 15000 -> "1억5000", 10000 -> "1억", 9000 -> "9000".
func FormatSalePrice(price int64) string {
	if price < 10000 {
		return strconv.FormatInt(price, 10)
	}
	eok, rest := price/10000, price%10000
	if rest == 0 {
		return fmt.Sprintf("%d억", eok)
	}
	return fmt.Sprintf("%d억%d", eok, rest)
}

// PriceLabel is the display string for a listing's asking price.
func PriceLabel(l *domain.Listing) string {
	if l.Category == domain.CategorySale {
		return FormatSalePrice(l.SalePrice)
	}
	return fmt.Sprintf("%d/%d", l.Deposit, l.Rent)
}
