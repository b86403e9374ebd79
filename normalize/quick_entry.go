package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`(\d+\.?\d*)`)
	priceRe  = regexp.MustCompile(`(\d+[,\d]*\s*/\s*\d+[,\d]*|\d+억\s*[\d,]*|\d+[,\d]*)`)
)

// QuickEntry is what ParseQuickEntry pulls out of pasted listing text.
type QuickEntry struct {
	Building      string
	ExclusiveArea float64
	ContractArea  float64
	Price         string
}

// ParseQuickEntry reads the short free-text format staff paste from
// messages:
//
//	W타워3 A동 1203호
//	전용 25.3
//	계약 48.1
//	임대 2000/180
//
// The first line is the building. Later lines are recognised by keyword.
func ParseQuickEntry(text string) QuickEntry {
	lines := strings.Split(strings.ReplaceAll(text, "\r", ""), "\n")

	var q QuickEntry
	if len(lines) > 0 {
		q.Building = strings.TrimSpace(lines[0])
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if strings.Contains(line, "전용") {
			if v, ok := firstNumber(line); ok {
				q.ExclusiveArea = v
			}
		}
		if strings.Contains(line, "계약") {
			if v, ok := firstNumber(line); ok {
				q.ContractArea = v
			}
		}
		if strings.Contains(line, "임대") || strings.Contains(line, "매매") {
			if m := FindPrice(line); m != "" {
				q.Price = m
			}
		}
	}
	return q
}

// FindPrice returns the first price-looking token of line with spaces
// removed: "2,000 / 180", "35000" or "3억 5000".
func FindPrice(line string) string {
	return strings.ReplaceAll(priceRe.FindString(line), " ", "")
}

func firstNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
