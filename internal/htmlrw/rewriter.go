// Package htmlrw rewrites archived email HTML: remote image references are
// repointed at the local image cache and unsubscribe links are neutralized so
// an archived copy can never trigger a live opt-out.
package htmlrw

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const disabledUnsubscribeTitle = "Unsubscribe link disabled (archived email)"

var unsubscribePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)opt[-\s]?out`),
	regexp.MustCompile(`(?i)manage[-\s]?preferences`),
	regexp.MustCompile(`(?i)manage[-\s]?subscription`),
	regexp.MustCompile(`(?i)email[-\s]?settings`),
	regexp.MustCompile(`(?i)remove[-\s]?me`),
	regexp.MustCompile(`(?i)stop[-\s]?emails`),
}

type Rewriter struct {
	imageBaseURL string
	log          *logrus.Logger
}

func NewRewriter(imageBaseURL string, log *logrus.Logger) *Rewriter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Rewriter{
		imageBaseURL: strings.TrimSuffix(imageBaseURL, "/"),
		log:          log,
	}
}

// RewriteHTML replaces mapped image URLs with their local equivalents and
// disables unsubscribe links. If the HTML cannot be parsed the original
// content is returned unchanged: losing the rewrite is acceptable, losing the
// archived content is not.
func (r *Rewriter) RewriteHTML(htmlContent string, imageMapping map[string]string) string {
	if htmlContent == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		r.log.WithError(err).Warn("failed to parse HTML, keeping original content")
		return htmlContent
	}

	r.rewriteImages(doc, imageMapping)
	r.disableUnsubscribeLinks(doc)

	rewritten, err := doc.Html()
	if err != nil {
		r.log.WithError(err).Warn("failed to render rewritten HTML, keeping original content")
		return htmlContent
	}

	return rewritten
}

func (r *Rewriter) localURL(localPath string) string {
	return r.imageBaseURL + "/" + localPath
}

func (r *Rewriter) rewriteImages(doc *goquery.Document, imageMapping map[string]string) {
	if len(imageMapping) == 0 {
		return
	}

	// <img> tags: swap src, keep the original in a sibling attribute.
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		localPath, mapped := imageMapping[src]
		if !mapped {
			return
		}
		sel.SetAttr("src", r.localURL(localPath))
		sel.SetAttr("data-original-src", src)
	})

	// CSS url() targets in inline style attributes.
	doc.Find(`[style*="background"]`).Each(func(_ int, sel *goquery.Selection) {
		style, ok := sel.Attr("style")
		if !ok || style == "" {
			return
		}
		if replaced, changed := r.replaceMappedURLs(style, imageMapping); changed {
			sel.SetAttr("style", replaced)
		}
	})

	// CSS url() targets in <style> blocks.
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		css := sel.Text()
		if css == "" {
			return
		}
		if replaced, changed := r.replaceMappedURLs(css, imageMapping); changed {
			sel.SetText(replaced)
		}
	})
}

// replaceMappedURLs substitutes every mapped original URL occurring in the
// text. The original URL is regex-escaped so metacharacters in query strings
// cannot corrupt the replacement.
func (r *Rewriter) replaceMappedURLs(text string, imageMapping map[string]string) (string, bool) {
	changed := false
	for originalURL, localPath := range imageMapping {
		if !strings.Contains(text, originalURL) {
			continue
		}
		pattern := regexp.MustCompile(regexp.QuoteMeta(originalURL))
		text = pattern.ReplaceAllLiteralString(text, r.localURL(localPath))
		changed = true
	}
	return text, changed
}

func (r *Rewriter) disableUnsubscribeLinks(doc *goquery.Document) {
	disabled := 0

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		title, _ := sel.Attr("title")

		if !isUnsubscribeLink(href, sel.Text(), title) {
			return
		}

		sel.SetAttr("data-original-href", href)
		sel.SetAttr("href", "#")
		sel.AddClass("unsubscribe-disabled")
		sel.SetAttr("title", disabledUnsubscribeTitle)
		disabled++
	})

	if disabled > 0 {
		r.log.WithField("count", disabled).Debug("disabled unsubscribe links")
	}
}

// isUnsubscribeLink matches the link's href, visible text, and title against
// the unsubscribe patterns.
func isUnsubscribeLink(href, text, title string) bool {
	for _, pattern := range unsubscribePatterns {
		if pattern.MatchString(href) || pattern.MatchString(text) || pattern.MatchString(title) {
			return true
		}
	}
	return false
}
