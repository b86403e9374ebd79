package chatlog

import (
	"regexp"
	"strconv"
	"strings"

	"listings-api/domain"
	"listings-api/normalize"
)

var (
	unitRe  = regexp.MustCompile(`(\d{2,5})\s*호`)
	floorRe = regexp.MustCompile(`(\d{1,2})\s*층`)
	areaRe  = regexp.MustCompile(`전용[^\d\n]{0,6}(\d+(?:\.\d+)?)\s*(㎡|m²|m2|평)?`)
)

var priceKeywords = []string{"임대", "매매", "보증금", "월세"}

// Facts is what a message says about a listing.
type Facts struct {
	Building     string // cleaned first line
	BuildingKey  string // name key of the building part, unit removed
	FullKey      string // name key of the whole cleaned first line
	Unit         string
	Floor        int
	Area         float64 // pyung
	HasArea      bool
	Price        *normalize.Price
	Amenities    domain.Amenities
	HasAmenities bool
}

// ExtractFacts pulls building, unit, floor, area, price and amenity
// information out of a message body.
func ExtractFacts(n *normalize.Normalizer, text string) Facts {
	var f Facts

	lines := strings.Split(strings.ReplaceAll(text, "\r", ""), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			f.Building = n.CleanBuildingName(line)
			break
		}
	}
	building, unit := normalize.SplitUnit(f.Building)
	f.BuildingKey = normalize.NameKey(building)
	f.FullKey = normalize.NameKey(f.Building)

	f.Unit = unit
	if f.Unit == "" {
		if m := unitRe.FindStringSubmatch(text); m != nil {
			f.Unit = m[1]
		}
	}

	if m := floorRe.FindStringSubmatch(text); m != nil {
		f.Floor, _ = strconv.Atoi(m[1])
	} else {
		f.Floor = normalize.FloorOfUnit(f.Unit)
	}

	if m := areaRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] != "" && m[2] != "평" {
				v = normalize.ToPyung(v)
			}
			f.Area, f.HasArea = v, true
		}
	}

	for _, line := range lines {
		if !containsAny(line, priceKeywords) {
			continue
		}
		raw := normalize.FindPrice(line)
		if raw == "" {
			continue
		}
		if p, err := normalize.ParsePrice(raw); err == nil {
			f.Price = &p
			break
		}
	}

	f.Amenities, f.HasAmenities = n.Amenities(text)
	return f
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
