package render

import (
	"strings"
	"testing"
)

func TestNewsletter(t *testing.T) {
	html, err := Newsletter(Data{
		Title: "Weekly AI (Jun 2, 2025)",
		Intro: "This week in inference.",
		Entries: []Entry{
			{
				Header:       "Faster Serving",
				Title:        "New Batching Approach",
				URL:          "https://example.com/batching",
				Domain:       "example.com",
				Tier:         "Essential",
				Summary:      "A new approach to batching.",
				WhyItMatters: []string{"cuts latency", "drops cost"},
				Implications: "Expect wider adoption.",
			},
			{
				Title:   "Minor Update",
				URL:     "https://example.org/update",
				Domain:  "example.org",
				Summary: "A small release.",
			},
		},
	})
	if err != nil {
		t.Fatalf("Newsletter failed: %v", err)
	}

	for _, want := range []string{
		"Weekly AI (Jun 2, 2025)",
		"This week in inference.",
		"Faster Serving",
		`href="https://example.com/batching"`,
		"cuts latency",
		"Expect wider adoption.",
		"Minor Update",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Rendered HTML missing %q", want)
		}
	}

	if strings.Contains(html, `class="tier"></span>`) {
		t.Error("Unranked entry should not render an empty tier badge")
	}
}

func TestNewsletterEscapesContent(t *testing.T) {
	html, err := Newsletter(Data{
		Title:   "Issue",
		Entries: []Entry{{Title: "<script>alert(1)</script>", URL: "https://example.com/x", Summary: "s"}},
	})
	if err != nil {
		t.Fatalf("Newsletter failed: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("Article title should be HTML-escaped")
	}
}
