// Package enrich derives structured flags from a posting's text.
package enrich

import (
	"regexp"
	"strings"

	"github.com/amishk599/searchradar/internal/model"
)

// MetaMarker guards the enrichment tag prepended to descriptions.
const MetaMarker = "META: "

type rule struct {
	value string
	re    *regexp.Regexp
}

func words(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	remoteRules = []rule{
		{"remote", words("remote", "work from home", "wfh")},
		{"hybrid", words("hybrid")},
		{"onsite", words("on-site", "onsite", "in-office", "in office")},
	}

	employmentRules = []rule{
		{"full_time", words("full-time", "full time", "fulltime")},
		{"part_time", words("part-time", "part time")},
		{"contract", words("contract", "contractor", "freelance")},
	}

	// Checked in order; the first matching level wins.
	seniorityRules = []rule{
		{"vp", words("vp", "vice president", "svp", "evp")},
		{"director", words("head of", "director")},
		{"lead", words("lead", "principal", "staff")},
		{"senior", words("senior", "sr", "sr.")},
		{"junior", words("junior", "jr", "jr.", "entry level", "entry-level")},
	}

	aiSignal = words(
		"ai", "artificial intelligence", "llm", "llms", "large language model",
		"genai", "generative ai", "rag", "vector search", "semantic search",
		"answer engine", "ai search", "ai-powered search", "geo", "aeo",
	)
)

func firstMatch(rules []rule, text string) string {
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.value
		}
	}
	return ""
}

// Extract infers enrichment flags from title, location and description.
func Extract(title, location, description string) model.EnrichmentFlags {
	text := strings.ToLower(title + " || " + location + " || " + description)
	headline := strings.ToLower(title)

	seniority := firstMatch(seniorityRules, headline)
	if seniority == "" {
		seniority = firstMatch(seniorityRules, text)
	}

	return model.EnrichmentFlags{
		Remote:         firstMatch(remoteRules, text),
		EmploymentType: firstMatch(employmentRules, text),
		Seniority:      seniority,
		AIForward:      aiSignal.MatchString(text),
	}
}

// Tag renders flags as a META line, or "" when no flag is set.
func Tag(f model.EnrichmentFlags) string {
	var bits []string
	if f.Remote != "" {
		bits = append(bits, "remote="+f.Remote)
	}
	if f.EmploymentType != "" {
		bits = append(bits, "type="+f.EmploymentType)
	}
	if f.Seniority != "" {
		bits = append(bits, "seniority="+f.Seniority)
	}
	if f.AIForward {
		bits = append(bits, "ai_forward=true")
	}
	if len(bits) == 0 {
		return ""
	}
	return MetaMarker + strings.Join(bits, " | ")
}

// Apply sets job.Flags and prepends the META tag to a non-empty description
// that does not carry one yet. An empty description stays empty so the
// upsert rules keep treating it as "no description".
func Apply(job *model.RawJob) {
	job.Flags = Extract(job.Title, job.Location, job.Description)

	if strings.TrimSpace(job.Description) == "" || strings.Contains(job.Description, MetaMarker) {
		return
	}
	if tag := Tag(job.Flags); tag != "" {
		job.Description = tag + " || " + job.Description
	}
}
