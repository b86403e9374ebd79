package chatlog

import (
	"math"
	"strings"
	"unicode/utf8"

	"listings-api/domain"
	"listings-api/normalize"
)

// Match methods, reported back to the caller for auditing.
const (
	MethodUnit       = "unit"
	MethodFloor      = "floor"
	MethodCloseness  = "closeness"
	MethodPrefix     = "prefix"
	MethodSimilarity = "similarity"
)

// Reasons a message did not match.
const (
	ReasonNoBuilding   = "no building name"
	ReasonNoCandidate  = "no listing with a similar name"
	ReasonUnitNotFound = "unit or floor not found for building"
	ReasonAmbiguous    = "several listings fit equally"
)

const (
	minPrefixKeyRunes    = 2
	defaultAreaTol       = 0.5
	defaultMinSimilarity = 0.6
	// a similarity winner must lead the runner-up by this much
	similarityMargin = 0.05
)

// Options tunes the fuzzy parts of matching.
type Options struct {
	AreaTolerance float64 // pyung
	MinSimilarity float64
}

// DefaultOptions are the tolerances used by the memo import.
func DefaultOptions() Options {
	return Options{AreaTolerance: defaultAreaTol, MinSimilarity: defaultMinSimilarity}
}

// Result describes how one message was resolved.
type Result struct {
	Matched   bool
	ListingID uint
	Method    string
	Score     float64
	Reason    string
	Facts     Facts
}

type entry struct {
	listing     *domain.Listing
	buildingKey string
	fullKey     string
}

// Matcher resolves chat messages to listings. Build one per import; it
// snapshots the listings it is given.
type Matcher struct {
	n       *normalize.Normalizer
	opts    Options
	entries []entry
}

// NewMatcher indexes listings for matching.
func NewMatcher(n *normalize.Normalizer, listings []domain.Listing, opts Options) *Matcher {
	if opts.AreaTolerance <= 0 {
		opts.AreaTolerance = defaultAreaTol
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = defaultMinSimilarity
	}

	m := &Matcher{n: n, opts: opts, entries: make([]entry, 0, len(listings))}
	for i := range listings {
		l := &listings[i]
		building, _ := normalize.SplitUnit(l.BuildingName)
		m.entries = append(m.entries, entry{
			listing:     l,
			buildingKey: normalize.NameKey(building),
			fullKey:     l.NameKey,
		})
	}
	return m
}

// Match finds the listing a message talks about.
//
// Candidates are listings whose building key and the message's building
// key are prefixes of one another. They are narrowed by unit, then floor,
// then by area/price closeness. Several survivors resolve to the clearly
// most similar name, or are ambiguous when no name leads by the margin.
// Without prefix candidates the best overall similarity above the
// threshold wins, under the same margin.
func (m *Matcher) Match(text string) Result {
	f := ExtractFacts(m.n, text)
	res := Result{Facts: f}
	if f.BuildingKey == "" {
		res.Reason = ReasonNoBuilding
		return res
	}

	cands := m.prefixCandidates(f.BuildingKey)
	if len(cands) == 0 {
		return m.bySimilarity(res, m.entries, f.FullKey)
	}

	method := MethodPrefix

	switch {
	case f.Unit != "":
		if byUnit := filter(cands, func(e entry) bool { return e.listing.UnitNumber == f.Unit }); len(byUnit) > 0 {
			cands, method = byUnit, MethodUnit
		} else if byFloor := m.byFloor(cands, f.Floor); len(byFloor) > 0 {
			cands, method = byFloor, MethodFloor
		} else {
			res.Reason = ReasonUnitNotFound
			return res
		}
	case f.Floor > 0:
		byFloor := m.byFloor(cands, f.Floor)
		if len(byFloor) == 0 {
			res.Reason = ReasonUnitNotFound
			return res
		}
		cands, method = byFloor, MethodFloor
	}

	if len(cands) > 1 {
		if narrowed, ok := m.byCloseness(cands, f); ok {
			cands = narrowed
			if method == MethodPrefix {
				method = MethodCloseness
			}
		}
	}

	if len(cands) == 1 {
		res.Matched = true
		res.ListingID = cands[0].listing.ID
		res.Method = method
		res.Score = Similarity(f.FullKey, cands[0].fullKey)
		return res
	}

	// several survivors must still be told apart by name
	best, second := rank(cands, f.FullKey)
	if best.score-second < similarityMargin {
		res.Reason = ReasonAmbiguous
		return res
	}
	res.Matched = true
	res.ListingID = best.entry.listing.ID
	res.Method = method
	res.Score = best.score
	return res
}

func (m *Matcher) prefixCandidates(key string) []entry {
	if utf8.RuneCountInString(key) < minPrefixKeyRunes {
		return nil
	}
	return filter(m.entries, func(e entry) bool {
		if utf8.RuneCountInString(e.buildingKey) < minPrefixKeyRunes {
			return false
		}
		return strings.HasPrefix(e.buildingKey, key) || strings.HasPrefix(key, e.buildingKey)
	})
}

func (m *Matcher) byFloor(cands []entry, floor int) []entry {
	if floor <= 0 {
		return nil
	}
	return filter(cands, func(e entry) bool { return e.listing.Floor == floor })
}

// byCloseness keeps candidates whose area is within tolerance and whose
// price equals the message's, for whichever of the two the message states.
func (m *Matcher) byCloseness(cands []entry, f Facts) ([]entry, bool) {
	narrowed := cands
	used := false

	if f.HasArea {
		byArea := filter(narrowed, func(e entry) bool {
			return math.Abs(e.listing.ExclusiveArea-f.Area) <= m.opts.AreaTolerance
		})
		if len(byArea) > 0 {
			narrowed, used = byArea, true
		}
	}
	if f.Price != nil {
		p := *f.Price
		byPrice := filter(narrowed, func(e entry) bool {
			l := e.listing
			if p.Category == domain.CategoryRent {
				return l.Category == domain.CategoryRent && l.Deposit == p.Deposit && l.Rent == p.Rent
			}
			return l.Category == domain.CategorySale && l.SalePrice == p.Sale
		})
		if len(byPrice) > 0 {
			narrowed, used = byPrice, true
		}
	}
	return narrowed, used
}

func (m *Matcher) bySimilarity(res Result, cands []entry, key string) Result {
	if len(cands) == 0 {
		res.Reason = ReasonNoCandidate
		return res
	}
	best, second := rank(cands, key)
	if best.score < m.opts.MinSimilarity {
		res.Reason = ReasonNoCandidate
		res.Score = best.score
		return res
	}
	if best.score-second < similarityMargin {
		res.Reason = ReasonAmbiguous
		return res
	}
	res.Matched = true
	res.ListingID = best.entry.listing.ID
	res.Method = MethodSimilarity
	res.Score = best.score
	return res
}

type scored struct {
	entry entry
	score float64
}

// rank returns the best candidate and the runner-up score. Equal scores
// go to the lower listing id.
func rank(cands []entry, key string) (best scored, second float64) {
	best.score = -1
	second = -1
	for _, e := range cands {
		s := Similarity(key, e.fullKey)
		switch {
		case s > best.score || (s == best.score && e.listing.ID < best.entry.listing.ID):
			if best.score >= 0 {
				second = math.Max(second, best.score)
			}
			best = scored{entry: e, score: s}
		case s > second:
			second = s
		}
	}
	return best, second
}

func filter(entries []entry, keep func(entry) bool) []entry {
	var out []entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
