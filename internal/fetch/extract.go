package fetch

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

// ExtractedContent is what the grab phase keeps from a fetched page.
type ExtractedContent struct {
	Title        string
	TextContent  string
	PublishDate  *time.Time
	CanonicalURL string
}

// publishDateSelectors are tried in order; the first non-empty content wins.
var publishDateSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="article:published_time"]`,
	`meta[property="og:article:published_time"]`,
	`meta[name="datePublished"]`,
	`meta[property="datePublished"]`,
	`meta[name="date"]`,
	`meta[name="DC.date.issued"]`,
	`meta[property="article:modified_time"]`,
}

var (
	nonArticlePathRe = regexp.MustCompile(`(?i)/(tag|category|author|page|search|login|signup|about|contact|privacy|terms)/`)
	binaryExtRe      = regexp.MustCompile(`(?i)\.(pdf|zip|png|jpg|gif|mp4|mp3)$`)
)

// ExtractContent pulls the main article text, title, canonical URL and
// publish date out of an HTML document. Readability failures degrade to an
// empty text body rather than an error; a page with no extractable article
// is a valid (if useless) fetch result.
func ExtractContent(html, pageURL string) ExtractedContent {
	var out ExtractedContent

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		out.CanonicalURL = strings.TrimSpace(href)
	}

	out.PublishDate = extractPublishDate(doc)

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil {
		out.Title = strings.TrimSpace(article.Title)
		out.TextContent = strings.TrimSpace(article.TextContent)
	}

	if out.Title == "" {
		out.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	}

	return out
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// extractPublishDate tries meta tags in priority order, then JSON-LD
// datePublished, then a <time datetime> element. First parseable match wins.
func extractPublishDate(doc *goquery.Document) *time.Time {
	for _, selector := range publishDateSelectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if t := parseDate(content); t != nil {
				return t
			}
		}
	}

	var fromJSONLD *time.Time
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := parseJSONLDDate(s.Text()); t != nil {
			fromJSONLD = t
			return false
		}
		return true
	})
	if fromJSONLD != nil {
		return fromJSONLD
	}

	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t := parseDate(datetime); t != nil {
			return t
		}
	}

	return nil
}

// parseJSONLDDate digs datePublished out of a JSON-LD block, including the
// common @graph wrapper.
func parseJSONLDDate(raw string) *time.Time {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	if s, ok := data["datePublished"].(string); ok {
		if t := parseDate(s); t != nil {
			return t
		}
	}

	if graph, ok := data["@graph"].([]any); ok {
		for _, node := range graph {
			obj, ok := node.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := obj["datePublished"].(string); ok {
				if t := parseDate(s); t != nil {
					return t
				}
			}
		}
	}

	return nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// ExtractLinks returns the unique absolute links on an HTML index page that
// look like article URLs: http(s), at least two path segments, not an
// obvious navigation/utility path, not a binary download. Order of first
// appearance is preserved.
func ExtractLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !likelyArticlePath(resolved.Path) {
			return
		}

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

func likelyArticlePath(path string) bool {
	if path == "" || path == "/" {
		return false
	}

	segments := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments++
		}
	}
	if segments < 2 {
		return false
	}

	if nonArticlePathRe.MatchString(path) {
		return false
	}
	if binaryExtRe.MatchString(path) {
		return false
	}

	return true
}
