// Package urlutil canonicalizes URLs so that the same article discovered
// through different links collapses to one record.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters that identify campaigns, not content.
var trackingParams = map[string]struct{}{
	"utm_source":    {},
	"utm_medium":    {},
	"utm_campaign":  {},
	"utm_term":      {},
	"utm_content":   {},
	"fbclid":        {},
	"gclid":         {},
	"mc_cid":        {},
	"mc_eid":        {},
	"ref":           {},
	"source":        {},
	"_ga":           {},
	"_gl":           {},
	"hsCtaTracking": {},
	"mkt_tok":       {},
}

// Normalize canonicalizes rawURL: forces https, strips a leading "www.",
// removes tracking parameters, sorts the remaining query, drops the
// fragment and any trailing slash. Normalizing an already-normalized URL is
// a fixed point. Unparseable input is returned unchanged.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Scheme = "https"
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	q := u.Query()
	for param := range q {
		if _, tracked := trackingParams[param]; tracked {
			q.Del(param)
		}
	}
	u.RawQuery = encodeSorted(q)

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// encodeSorted renders query values with keys in lexical order so that
// parameter order never distinguishes two URLs.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Domain extracts the host of rawURL without a leading "www.". It returns
// an empty string for unparseable input.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
