package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed prompts/opportunity.md
var opportunitySystemPrompt string

// opportunityUserTemplate is parsed once at package init and reused on every call.
var opportunityUserTemplate = template.Must(template.New("opportunity").Parse(
	"Analyze this job posting and classify it:\n\n" +
		"Company: {{.Company}}\n" +
		"Title: {{.Title}}\n" +
		"Description: {{.Description}}\n"))

// maxPromptDescription caps the description sent to the provider, in runes.
const maxPromptDescription = 4000

type opportunityPrompt struct {
	Company     string
	Title       string
	Description string
}

func renderOpportunityPrompt(company, title, description string) (string, error) {
	if r := []rune(description); len(r) > maxPromptDescription {
		description = string(r[:maxPromptDescription])
	}

	var buf bytes.Buffer
	if err := opportunityUserTemplate.Execute(&buf, opportunityPrompt{
		Company:     company,
		Title:       title,
		Description: description,
	}); err != nil {
		return "", fmt.Errorf("render opportunity prompt: %w", err)
	}
	return buf.String(), nil
}
