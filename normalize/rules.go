// Package normalize turns the inconsistent building names, areas and
// prices found in spreadsheets, quick-entry text and chat logs into
// canonical values.
package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Replacement is a literal find/replace pair.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Columns names the spreadsheet headers an import reads.
type Columns struct {
	Building      string `yaml:"building"`
	Price         string `yaml:"price"`
	ExclusiveArea string `yaml:"exclusive_area"`
	ContractArea  string `yaml:"contract_area"`
	PropertyType  string `yaml:"property_type"`
}

// AmenityKeywords lists the words that switch each amenity flag on.
type AmenityKeywords struct {
	Parking         []string `yaml:"parking"`
	Interior        []string `yaml:"interior"`
	ImmediateMoveIn []string `yaml:"immediate_move_in"`
	Negotiable      []string `yaml:"negotiable"`
}

// Rules is the organization-specific reference data used by a Normalizer.
type Rules struct {
	RemoveWords        []string          `yaml:"remove_words"`
	DongAliases        []Replacement     `yaml:"dong_aliases"`
	BuildingAliases    []Replacement     `yaml:"building_aliases"`
	LeadingNumberNames []string          `yaml:"leading_number_names"`
	PropertyTypes      map[string]string `yaml:"property_types"`
	QuickEntryType     string            `yaml:"quick_entry_type"`
	Columns            Columns           `yaml:"columns"`
	Amenities          AmenityKeywords   `yaml:"amenities"`
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() Rules {
	var rules Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &rules); err != nil {
		panic(fmt.Sprintf("normalize: embedded rules are invalid: %v", err))
	}
	return rules
}

// LoadRules reads a rules file. Sections missing from the file keep
// their default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if override.RemoveWords != nil {
		rules.RemoveWords = override.RemoveWords
	}
	if override.DongAliases != nil {
		rules.DongAliases = override.DongAliases
	}
	if override.BuildingAliases != nil {
		rules.BuildingAliases = override.BuildingAliases
	}
	if override.LeadingNumberNames != nil {
		rules.LeadingNumberNames = override.LeadingNumberNames
	}
	if override.PropertyTypes != nil {
		rules.PropertyTypes = override.PropertyTypes
	}
	if override.QuickEntryType != "" {
		rules.QuickEntryType = override.QuickEntryType
	}
	if override.Columns != (Columns{}) {
		rules.Columns = mergeColumns(rules.Columns, override.Columns)
	}
	if !override.Amenities.empty() {
		rules.Amenities = override.Amenities
	}
	return rules, nil
}

func mergeColumns(base, override Columns) Columns {
	if override.Building != "" {
		base.Building = override.Building
	}
	if override.Price != "" {
		base.Price = override.Price
	}
	if override.ExclusiveArea != "" {
		base.ExclusiveArea = override.ExclusiveArea
	}
	if override.ContractArea != "" {
		base.ContractArea = override.ContractArea
	}
	if override.PropertyType != "" {
		base.PropertyType = override.PropertyType
	}
	return base
}

func (a AmenityKeywords) empty() bool {
	return len(a.Parking) == 0 && len(a.Interior) == 0 &&
		len(a.ImmediateMoveIn) == 0 && len(a.Negotiable) == 0
}

// Normalizer applies a fixed set of Rules. It is safe for concurrent use.
type Normalizer struct {
	rules           Rules
	leadingNumberRe *regexp.Regexp
}

// New compiles rules into a Normalizer.
func New(rules Rules) *Normalizer {
	n := &Normalizer{rules: rules}
	if len(rules.LeadingNumberNames) > 0 {
		quoted := make([]string, 0, len(rules.LeadingNumberNames))
		for _, name := range rules.LeadingNumberNames {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
		n.leadingNumberRe = regexp.MustCompile(`^\d+\s*(?:` + strings.Join(quoted, "|") + `)`)
	}
	return n
}

// Default returns a Normalizer over the embedded rules.
func Default() *Normalizer {
	return New(DefaultRules())
}

// Rules returns the tables the normalizer was built from.
func (n *Normalizer) Rules() Rules {
	return n.rules
}

// Columns returns the spreadsheet header names.
func (n *Normalizer) Columns() Columns {
	return n.rules.Columns
}

// QuickEntryType is the property type given to quick-entry listings.
func (n *Normalizer) QuickEntryType() string {
	return n.rules.QuickEntryType
}
