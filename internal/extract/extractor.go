// Package extract scans human-authored messages for data supplied without
// being asked: phone numbers, emails, insurance providers, and names.
//
// Detection runs an ordered table of pattern families. Each family yields
// at most one match, taken from the first pattern that succeeds. Extraction
// is pure: no side effects, and unmatched input returns an empty slice.
package extract

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bookedby/convoqa/internal/models"
)

//go:embed patterns.yaml
var patternsYAML []byte

// Match is one volunteered datum found in a message.
type Match struct {
	Field models.Field
	Value string
}

// heuristics is the versioned configuration behind the pattern table.
type heuristics struct {
	StopWords []string `yaml:"stop_words"`
	Carriers  []string `yaml:"carriers"`
}

type pattern struct {
	re *regexp.Regexp
	// normalize maps the submatch groups to the extracted value. When nil,
	// group 1 is used as-is.
	normalize func(groups []string) string
}

type family struct {
	field    models.Field
	patterns []pattern
	// accept filters candidate values; a false return moves on to the next
	// pattern in the family.
	accept func(value string) bool
}

// Extractor applies the pattern table to messages.
type Extractor struct {
	families []family
}

var (
	phoneDashed = regexp.MustCompile(`\b(\d{3})-(\d{3})-(\d{4})\b`)
	phoneParens = regexp.MustCompile(`\((\d{3})\)\s*(\d{3})[-.\s]?(\d{4})`)
	phoneBare   = regexp.MustCompile(`\b(\d{3})(\d{3})(\d{4})\b`)

	emailRe = regexp.MustCompile(`\b([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)

	insuranceHave = regexp.MustCompile(`(?i)\b(?:i have|i'm with|we have)\s+([A-Z][A-Za-z ]{2,30}?)\s+insurance\b`)
	insuranceIs   = regexp.MustCompile(`(?i)\binsurance (?:is|provider is)\s+([A-Z][A-Za-z ]{2,30})\b`)

	nameIs   = regexp.MustCompile(`\b[Mm]y name is\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)?)`)
	thisIs   = regexp.MustCompile(`\b[Tt]his is\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)?)`)
)

// New builds an Extractor from the embedded heuristics file.
func New() (*Extractor, error) {
	var cfg heuristics
	if err := yaml.Unmarshal(patternsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("extract: parse embedded heuristics: %w", err)
	}
	return NewWithHeuristics(cfg.StopWords, cfg.Carriers), nil
}

// MustNew is New for callers that treat the embedded config as trusted.
func MustNew() *Extractor {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// NewWithHeuristics builds an Extractor with explicit stop words and
// carrier names, overriding the embedded lists.
func NewWithHeuristics(stopWords, carriers []string) *Extractor {
	stops := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		stops[strings.ToLower(w)] = true
	}

	joinPhone := func(groups []string) string {
		return groups[1] + "-" + groups[2] + "-" + groups[3]
	}

	// Family order matters: phone before name keeps digit runs from ever
	// reaching the looser text patterns, and carriers are tried before the
	// free-text insurance fallbacks.
	families := []family{
		{
			field: models.FieldPhone,
			patterns: []pattern{
				{re: phoneDashed, normalize: joinPhone},
				{re: phoneParens, normalize: joinPhone},
				{re: phoneBare, normalize: joinPhone},
			},
		},
		{
			field:    models.FieldEmail,
			patterns: []pattern{{re: emailRe}},
		},
		{
			field:    models.FieldInsurance,
			patterns: carrierPatterns(carriers),
		},
		{
			field:    models.FieldName,
			patterns: []pattern{{re: nameIs}, {re: thisIs}},
			accept: func(v string) bool {
				for _, word := range strings.Fields(v) {
					if stops[strings.ToLower(word)] {
						return false
					}
				}
				return true
			},
		},
	}

	return &Extractor{families: families}
}

// carrierPatterns builds the named-carrier patterns followed by the two
// free-text fallbacks.
func carrierPatterns(carriers []string) []pattern {
	patterns := make([]pattern, 0, len(carriers)+2)
	for _, c := range carriers {
		carrier := c
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(carrier) + `\b`)
		patterns = append(patterns, pattern{
			re:        re,
			normalize: func([]string) string { return carrier },
		})
	}
	patterns = append(patterns,
		pattern{re: insuranceHave, normalize: trimmedGroup1},
		pattern{re: insuranceIs, normalize: trimmedGroup1},
	)
	return patterns
}

func trimmedGroup1(groups []string) string {
	return strings.TrimSpace(groups[1])
}

// Extract returns every volunteered datum found in message, at most one per
// field family, in table order.
func (e *Extractor) Extract(message string) []Match {
	var matches []Match
	for _, fam := range e.families {
		if m, ok := fam.match(message); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func (f *family) match(message string) (Match, bool) {
	for _, p := range f.patterns {
		groups := p.re.FindStringSubmatch(message)
		if groups == nil {
			continue
		}
		value := ""
		if p.normalize != nil {
			value = p.normalize(groups)
		} else if len(groups) > 1 {
			value = groups[1]
		} else {
			value = groups[0]
		}
		if value == "" {
			continue
		}
		if f.accept != nil && !f.accept(value) {
			continue
		}
		return Match{Field: f.field, Value: value}, true
	}
	return Match{}, false
}
