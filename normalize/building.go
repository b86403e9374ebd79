package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"listings-api/domain"
)

var (
	lotNumberRe  = regexp.MustCompile(`^\d+\-\d+\s*`)
	floorRe      = regexp.MustCompile(`제?\s*\d+\s*층`)
	unitPrefixRe = regexp.MustCompile(`제\s*(\d+호)`)
	trailingUnit = regexp.MustCompile(`\s*(\d+)\s*호\s*$`)
	leadingNum   = regexp.MustCompile(`^\d+\s*`)
)

// CleanBuildingName coerces a raw spreadsheet address into the canonical
// display name, e.g. "12-3 제에이동 제5층 제501호" -> "A동 501호".
func (n *Normalizer) CleanBuildingName(raw string) string {
	text := strings.TrimSpace(raw)

	for _, w := range n.rules.RemoveWords {
		if w == "" {
			continue
		}
		text = strings.ReplaceAll(text, w, "")
	}

	text = lotNumberRe.ReplaceAllString(text, "")
	text = floorRe.ReplaceAllString(text, "")
	text = unitPrefixRe.ReplaceAllString(text, "$1")

	text = replaceAll(text, n.rules.DongAliases)
	text = replaceAll(text, n.rules.BuildingAliases)

	if n.leadingNumberRe != nil && n.leadingNumberRe.MatchString(text) {
		text = leadingNum.ReplaceAllString(text, "")
	}

	return strings.Join(strings.Fields(text), " ")
}

func replaceAll(text string, pairs []Replacement) string {
	for _, p := range pairs {
		if p.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, p.From, p.To)
	}
	return text
}

// SplitUnit separates a trailing unit number ("1203호") from the building
// part of a cleaned name. unit is empty when the name carries none.
func SplitUnit(name string) (building, unit string) {
	m := trailingUnit.FindStringSubmatchIndex(name)
	if m == nil {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(name[:m[0]]), name[m[2]:m[3]]
}

// FloorOfUnit infers the floor from a unit number: 1203 -> 12, 501 -> 5.
// Units shorter than three digits carry no floor.
func FloorOfUnit(unit string) int {
	if len(unit) < 3 {
		return 0
	}
	v, err := strconv.Atoi(unit)
	if err != nil {
		return 0
	}
	return v / 100
}

// NameKey is the comparison key for building names: lower case with all
// whitespace removed.
func NameKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ApplyName fills the name-derived fields of l from a cleaned name.
func ApplyName(l *domain.Listing, cleaned string) {
	l.BuildingName = cleaned
	l.NameKey = NameKey(cleaned)
	_, unit := SplitUnit(cleaned)
	l.UnitNumber = unit
	l.Floor = FloorOfUnit(unit)
}

// PropertyType maps a raw type label onto the office's categories.
// Unknown labels are returned trimmed.
func (n *Normalizer) PropertyType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if mapped, ok := n.rules.PropertyTypes[raw]; ok {
		return mapped
	}
	return raw
}

// Amenities scans text for amenity keywords. found is false when no
// keyword matched at all.
func (n *Normalizer) Amenities(text string) (a domain.Amenities, found bool) {
	a.Parking = containsAny(text, n.rules.Amenities.Parking)
	a.Interior = containsAny(text, n.rules.Amenities.Interior)
	a.ImmediateMoveIn = containsAny(text, n.rules.Amenities.ImmediateMoveIn)
	a.Negotiable = containsAny(text, n.rules.Amenities.Negotiable)
	found = a.Parking || a.Interior || a.ImmediateMoveIn || a.Negotiable
	return a, found
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
