package classify

import "strings"

// legalSuffixes are stripped from the end of company names, longest forms first
// so ", Inc." wins over " Inc.".
var legalSuffixes = []string{
	", Inc.", ", Inc", ", LLC", ", LLP", ", Ltd.", ", Ltd", ", Limited",
	", Corporation", ", Corp.", ", Corp", ", Co.",
	" Inc.", " Inc", " LLC", " LLP", " Ltd.", " Ltd", " Limited",
	" Corporation", " Corp.", " Corp", " Co.", " Co",
}

// NormalizeCompanyName trims the name, collapses internal whitespace and strips
// one trailing legal-entity suffix. Case is preserved; matching is case-insensitive.
func NormalizeCompanyName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	lower := strings.ToLower(name)
	for _, suffix := range legalSuffixes {
		if len(name) > len(suffix) && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return strings.TrimSpace(strings.TrimRight(name[:len(name)-len(suffix)], ","))
		}
	}
	return name
}

// DescribeFromTitles builds a description proxy for a company from the titles
// it is hiring for. Used when reclassifying persisted companies.
func DescribeFromTitles(titles []string) string {
	if len(titles) == 0 {
		return ""
	}

	var clientServices, seoLeadership, performance bool
	for _, t := range titles {
		l := strings.ToLower(t)
		if strings.Contains(l, "account manager") || strings.Contains(l, "customer success") {
			clientServices = true
		}
		if strings.Contains(l, "head of seo") || strings.Contains(l, "director of seo") || strings.Contains(l, "seo director") {
			seoLeadership = true
		}
		if strings.Contains(l, "performance marketing") || strings.Contains(l, "paid media") {
			performance = true
		}
	}

	var tags []string
	if clientServices {
		tags = append(tags, "client services agency")
	}
	if seoLeadership {
		tags = append(tags, "strong seo leadership")
	}
	if performance {
		tags = append(tags, "performance marketing")
	}

	// Tags lead so they survive the classifier's description prefix.
	desc := "Hiring for: " + strings.Join(titles, ", ")
	if len(tags) > 0 {
		desc = "Tags: " + strings.Join(tags, ", ") + ". " + desc
	}
	return desc
}
