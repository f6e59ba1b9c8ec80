package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/searchradar/internal/model"
)

type mockPosting struct {
	title, company, location, description string
}

// Roughly half are AI-search roles; the rest should be filtered out.
var mockPostings = []mockPosting{
	{"AI Search Engineer", "FutureCorp AI", "Remote", "Build RAG systems."},
	{"SEO Specialist for AI", "TechGiant", "San Francisco, CA", "Optimize for ChatGPT."},
	{"Head of Search", "StartupX", "New York, NY", "Lead search strategy."},
	{"Search Quality Evaluator", "Google", "Mountain View, CA", "Evaluate LLM outputs."},
	{"AI Content Strategist", "MediaCo", "London, UK", "Create AI-friendly content."},
	{"Machine Learning Engineer", "OpenAI", "San Francisco, CA", "Train reasoning models."},
	{"Technical SEO Manager", "AgencyOne", "Remote", "Fix crawl issues for AI bots."},
	{"Product Manager, Search", "Bing", "Redmond, WA", "Integrate Copilot into search."},
	{"Data Analyst", "DataCorp", "Austin, TX", "Analyze search trends."},
	{"Prompt Engineer", "PromptLy", "Remote", "Optimize prompts for SEO."},
	{"Frontend Developer", "WebStudio", "Berlin, DE", "Build websites. Not AI related."},
	{"Barista", "CoffeeShop", "Seattle, WA", "Make coffee."},
	{"Sales Representative", "SalesForce", "Chicago, IL", "Sell software."},
	{"HR Manager", "PeopleOps", "Remote", "Manage people."},
}

// MockSource emits a fixed set of postings without touching the network.
type MockSource struct {
	name string
	now  func() time.Time
}

// NewMockSource creates a MockSource.
func NewMockSource(name string) *MockSource {
	if name == "" {
		name = "mock"
	}
	return &MockSource{name: name, now: time.Now}
}

// Name returns the source name.
func (m *MockSource) Name() string {
	return m.name
}

// Fetch streams the fixed postings, one day apart, newest first.
func (m *MockSource) Fetch(ctx context.Context) (<-chan model.RawJob, error) {
	out := make(chan model.RawJob)
	base := m.now().UTC()

	go func() {
		defer close(out)
		for i, mp := range mockPostings {
			posted := base.Add(-time.Duration(i) * 24 * time.Hour)
			job := model.RawJob{
				ExternalID:  fmt.Sprintf("mock-%d", i),
				Source:      m.name,
				Title:       mp.title,
				Company:     mp.company,
				Location:    mp.location,
				URL:         fmt.Sprintf("https://example.com/job%d", i),
				PostedAt:    &posted,
				Description: mp.description,
			}
			select {
			case out <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// MockCount is the number of postings MockSource emits.
func MockCount() int {
	return len(mockPostings)
}
