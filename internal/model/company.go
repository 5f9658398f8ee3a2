package model

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CompanyRef is the identity used to drive one enhancement run. It is built
// per call and never persisted.
type CompanyRef struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases"`
	BrandHint    string   `json:"brand_hint,omitempty"`
	IndustryHint string   `json:"industry_hint,omitempty"`
}

// NewCompanyRef derives the alias list once from a comma-joined legal name.
func NewCompanyRef(id, name, brandHint, industryHint string) CompanyRef {
	return CompanyRef{
		ID:           strings.TrimSpace(id),
		Name:         strings.TrimSpace(name),
		Aliases:      ParseAliases(name),
		BrandHint:    strings.TrimSpace(brandHint),
		IndustryHint: strings.TrimSpace(industryHint),
	}
}

// CacheKey returns the key under which the company's record is stored.
// Companies without an id (inferred from free-text filings) fall back to
// their normalized primary alias.
func (c CompanyRef) CacheKey() string {
	if c.ID != "" {
		return c.ID
	}
	if len(c.Aliases) > 0 {
		return "name:" + strings.ToLower(c.Aliases[0])
	}
	return ""
}

// dbaPattern splits "X DBA Y", "X d/b/a Y" and "X D.B.A. Y" into separate
// names.
var dbaPattern = regexp.MustCompile(`(?i)\s+d\.?\s*/?\s*b\.?\s*/?\s*a\.?\s+`)

// legalSuffixPattern matches trailing entity suffixes, possibly repeated
// ("Holdings Co., LLC").
var legalSuffixPattern = regexp.MustCompile(`(?i)([\s,]+(llc|l\.l\.c\.?|inc\.?|incorporated|corp\.?|corporation|ltd\.?|limited|co\.?|company|llp|lp|pllc|pc|p\.c\.))+\.?$`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// ParseAliases splits a comma-joined company name into independent,
// normalized names for the same legal entity. Order is preserved and
// duplicates (case-insensitive) are removed.
func ParseAliases(name string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(name, ",") {
		for _, frag := range dbaPattern.Split(part, -1) {
			alias := NormalizeAlias(frag)
			if alias == "" || isBareSuffix(alias) {
				continue
			}
			key := strings.ToLower(alias)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, alias)
		}
	}
	return out
}

// NormalizeAlias folds diacritics, strips legal suffixes and collapses
// whitespace. Case is preserved for display.
func NormalizeAlias(s string) string {
	s = foldDiacritics(s)
	s = whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
	s = legalSuffixPattern.ReplaceAllString(s, "")
	s = strings.Trim(s, " .,-&")
	return whitespacePattern.ReplaceAllString(s, " ")
}

// isBareSuffix reports whether a fragment is only a legal suffix, which
// happens when a name like "Acme, Inc." is split on its comma.
func isBareSuffix(s string) bool {
	return legalSuffixPattern.ReplaceAllString(" "+s, "") == ""
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
