// Package render turns a run's curated articles into the final newsletter
// HTML document.
package render

import (
	"fmt"
	"html/template"
	"strings"
)

// Entry is one article section of the newsletter.
type Entry struct {
	Header       string
	Title        string
	URL          string
	Domain       string
	Tier         string
	Summary      string
	WhyItMatters []string
	Implications string
}

// Data is everything the newsletter template needs.
type Data struct {
	Title   string
	Intro   string
	Entries []Entry
}

var newsletterTmpl = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 680px; margin: 0 auto; padding: 24px; color: #1a1a1a; }
h1 { font-size: 28px; border-bottom: 2px solid #1a1a1a; padding-bottom: 8px; }
h2 { font-size: 20px; margin-bottom: 4px; }
.intro { font-size: 16px; font-style: italic; margin: 16px 0; }
.tier { display: inline-block; font-size: 12px; font-family: sans-serif; padding: 2px 8px; border-radius: 3px; background: #eee; }
.source { font-size: 13px; color: #666; }
.why { margin: 8px 0 8px 16px; }
.implications { font-size: 14px; color: #444; }
article { margin: 28px 0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Intro}}<p class="intro">{{.Intro}}</p>{{end}}
{{range .Entries}}<article>
{{if .Header}}<h2>{{.Header}}</h2>{{end}}
<h3><a href="{{.URL}}">{{.Title}}</a></h3>
<p class="source">{{.Domain}}{{if .Tier}} <span class="tier">{{.Tier}}</span>{{end}}</p>
<p>{{.Summary}}</p>
{{if .WhyItMatters}}<ul class="why">{{range .WhyItMatters}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Implications}}<p class="implications">{{.Implications}}</p>{{end}}
</article>
{{end}}
</body>
</html>
`))

// Newsletter renders the HTML document for a newsletter issue.
func Newsletter(data Data) (string, error) {
	var b strings.Builder
	if err := newsletterTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render newsletter template: %w", err)
	}
	return b.String(), nil
}
