package images

import (
	"net/url"
	"regexp"
	"strings"
)

// The extraction scans raw HTML text rather than a parsed DOM so that CSS
// url() targets inside <style> blocks and inline style attributes go through
// the same pass as <img> tags.
var (
	// src must be a whole attribute name (whitespace before it), so rewritten
	// markup carrying data-original-src is not re-extracted.
	imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]*\ssrc\s*=\s*["']([^"']+)["']`)
	cssURLPattern = regexp.MustCompile(`(?i)background(?:-image)?:\s*url\(["']?([^"')]+)["']?\)`)
)

// ExtractImageURLs returns the unique downloadable image URLs referenced by
// the HTML, in first-seen order. Data URIs and anything that does not parse
// as an absolute http(s) URL are excluded.
func ExtractImageURLs(html string) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(raw string) {
		if _, ok := seen[raw]; ok {
			return
		}
		seen[raw] = struct{}{}
		if isCandidateURL(raw) {
			urls = append(urls, raw)
		}
	}

	for _, match := range imgSrcPattern.FindAllStringSubmatch(html, -1) {
		add(match[1])
	}
	for _, match := range cssURLPattern.FindAllStringSubmatch(html, -1) {
		add(match[1])
	}

	return urls
}

// isCandidateURL reports whether a raw attribute value is worth downloading.
// Size-based tracking-pixel filtering happens after download, not here.
func isCandidateURL(raw string) bool {
	if strings.HasPrefix(raw, "data:") {
		return false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
