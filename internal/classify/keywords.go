package classify

import (
	"regexp"
	"strings"
)

var (
	competitorKeywords = []string{
		"agency", "agencies", "marketing", "digital marketing", "seo agency",
		"consulting", "consultancy", "studio", "creative", "media",
		"performance marketing", "recruitment", "staffing", "search marketing",
	}

	clientKeywords = []string{
		"saas", "software", "platform", "app", "product", "tool", "suite",
		"cloud", "storage", "data platform", "analytics platform", "advisor",
		"labs", "ai", "systems", "solutions",
	}

	// productHints negate a hard agency hint and, alone, indicate a client.
	productHints = []string{
		"labs", "systems", "cloud", "platform", "app", "software",
		"technologies", "technology",
	}

	// hardAgencyHints are unambiguous service-provider phrases.
	hardAgencyHints = []string{
		"agency", "agencies", "marketing", "digital marketing", "seo agency",
		"consulting", "consultancy", "media group", "performance marketing",
		"creative agency", "advertising agency", "staffing", "recruitment",
	}
)

// phraseSet matches whole-word phrases in lower-cased text.
type phraseSet struct {
	re *regexp.Regexp
}

func newPhraseSet(phrases []string) phraseSet {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(p))
	}
	return phraseSet{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

func (p phraseSet) match(text string) bool {
	return p.re.MatchString(text)
}
