package adapter

import (
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	xhtml "golang.org/x/net/html"
)

// extractText converts an HTML or HTML-encoded string to plain text.
// It unescapes entities first (JSON-LD descriptions are often double-encoded),
// drops script and style content, joins the remaining text nodes with spaces,
// then collapses whitespace.
func extractText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(content)))
	if err != nil {
		return cleanText(content)
	}
	doc.Find("script, style, noscript, template").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return cleanText(b.String())
}

func writeText(b *strings.Builder, n *xhtml.Node) {
	if n.Type == xhtml.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// jobPosting is the subset of a schema.org JobPosting we read.
type jobPosting struct {
	Description string
	DatePosted  *time.Time
}

// parseJobPostingLD finds a JobPosting in a JSON-LD block. The block may be a
// single object, an array of objects, or an object with an @graph array.
func parseJobPostingLD(raw string) (jobPosting, bool) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return jobPosting{}, false
	}

	root := gjson.Parse(raw)
	var candidates []gjson.Result
	switch {
	case root.IsArray():
		candidates = root.Array()
	case root.IsObject():
		if graph := objectField(root, "@graph"); graph.IsArray() {
			candidates = graph.Array()
		} else {
			candidates = []gjson.Result{root}
		}
	}

	for _, c := range candidates {
		if !isJobPosting(objectField(c, "@type")) {
			continue
		}
		posting := jobPosting{Description: objectField(c, "description").String()}
		if t, ok := parseDate(objectField(c, "datePosted").String()); ok {
			posting.DatePosted = &t
		}
		return posting, true
	}
	return jobPosting{}, false
}

// objectField reads a top-level key without gjson path syntax, so keys such as
// "@type" are not mistaken for modifiers.
func objectField(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return out
}

func isJobPosting(t gjson.Result) bool {
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.String() == "JobPosting" {
				return true
			}
		}
		return false
	}
	return t.String() == "JobPosting"
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
