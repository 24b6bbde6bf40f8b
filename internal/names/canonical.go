// Package names turns free-text incident and zone labels into comparable
// token sets and scores their overlap.
package names

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// TokenSet is an order-irrelevant set of canonical name tokens.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from tokens, ignoring empty strings.
func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Contains reports whether tok is in the set.
func (s TokenSet) Contains(tok string) bool {
	_, ok := s[tok]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String joins the sorted tokens with single spaces.
func (s TokenSet) String() string {
	return strings.Join(s.Sorted(), " ")
}

// Qualifier rewrites a multi-word fire-type phrase to a single tag.
type Qualifier struct {
	Pattern string `yaml:"pattern"`
	Tag     string `yaml:"tag"`
}

// Rules configures a Canonicalizer.
type Rules struct {
	PrefixPatterns []string          `yaml:"prefix_patterns"`
	SuffixPatterns []string          `yaml:"suffix_patterns"`
	Qualifiers     []Qualifier       `yaml:"qualifiers"`
	Abbreviations  map[string]string `yaml:"abbreviations"`
	GenericWords   []string          `yaml:"generic_words"`
}

// DefaultRules strips CAL FIRE style unit prefixes ("CA-SCU-") and incident
// number suffixes ("-N22A"), and drops the word "fire".
func DefaultRules() Rules {
	return Rules{
		PrefixPatterns: []string{`^[a-z]{2}-[a-z]{2,4}-`},
		SuffixPatterns: []string{`-[a-z]{1,2}\d{2,4}[a-z]?$`},
		Qualifiers: []Qualifier{
			{Pattern: `prescribed (fire|burn)`, Tag: "rx"},
			{Pattern: `rx (fire|burn)`, Tag: "rx"},
			{Pattern: `controlled burn`, Tag: "rx"},
		},
		Abbreviations: map[string]string{
			"hwy": "highway",
			"mtn": "mountain",
			"mt":  "mount",
			"rd":  "road",
			"cyn": "canyon",
			"crk": "creek",
			"ck":  "creek",
		},
		GenericWords: []string{"fire"},
	}
}

var (
	punctuation     = regexp.MustCompile(`[^a-z0-9\s]+`)
	letterThenDigit = regexp.MustCompile(`([a-z])(\d)`)
)

type qualifier struct {
	re  *regexp.Regexp
	tag string
}

// Canonicalizer is safe for concurrent use once built.
type Canonicalizer struct {
	prefixes      []*regexp.Regexp
	suffixes      []*regexp.Regexp
	qualifiers    []qualifier
	abbreviations map[string]string
	generic       map[string]struct{}
}

// New compiles rules into a Canonicalizer.
func New(rules Rules) (*Canonicalizer, error) {
	c := &Canonicalizer{
		abbreviations: make(map[string]string, len(rules.Abbreviations)),
		generic:       make(map[string]struct{}, len(rules.GenericWords)),
	}
	var err error
	if c.prefixes, err = compileAll(rules.PrefixPatterns); err != nil {
		return nil, fmt.Errorf("prefix pattern: %w", err)
	}
	if c.suffixes, err = compileAll(rules.SuffixPatterns); err != nil {
		return nil, fmt.Errorf("suffix pattern: %w", err)
	}
	for _, q := range rules.Qualifiers {
		re, err := regexp.Compile(`\b(?:` + q.Pattern + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("qualifier pattern %q: %w", q.Pattern, err)
		}
		c.qualifiers = append(c.qualifiers, qualifier{re: re, tag: strings.ToLower(q.Tag)})
	}
	for k, v := range rules.Abbreviations {
		c.abbreviations[strings.ToLower(k)] = strings.ToLower(v)
	}
	for _, w := range rules.GenericWords {
		c.generic[strings.ToLower(w)] = struct{}{}
	}
	return c, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Canonicalize normalizes a raw name into a token set. The empty name yields
// the empty set.
func (c *Canonicalizer) Canonicalize(raw string) TokenSet {
	s := fold(raw)

	for _, re := range c.prefixes {
		s = re.ReplaceAllString(s, "")
	}
	for _, re := range c.suffixes {
		s = re.ReplaceAllString(s, "")
	}

	for _, q := range c.qualifiers {
		s = q.re.ReplaceAllString(s, q.tag)
	}
	s = strings.Join(c.filter(strings.Fields(s)), " ")

	s = punctuation.ReplaceAllString(s, " ")
	s = letterThenDigit.ReplaceAllString(s, "$1 $2")

	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = trimLeadingZeros(f)
	}
	return NewTokenSet(c.filter(fields)...)
}

// filter expands abbreviations and drops generic words.
func (c *Canonicalizer) filter(words []string) []string {
	out := words[:0]
	for _, w := range words {
		if full, ok := c.abbreviations[w]; ok {
			w = full
		}
		if _, ok := c.generic[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(norm.NFKC.String(s)))
}

func trimLeadingZeros(tok string) string {
	if tok == "" || tok[0] != '0' {
		return tok
	}
	trimmed := strings.TrimLeft(tok, "0")
	if trimmed == "" || trimmed[0] < '0' || trimmed[0] > '9' {
		// "000" becomes "0"; "0a" keeps its digit.
		return "0" + trimmed
	}
	return trimmed
}
