package htmlrw

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SanitizeForDisplay strips active content from email HTML so it can be
// rendered inline: script, iframe, object, embed and form elements are
// removed, along with every on* event-handler attribute. This is a display
// concern only; ingestion stores the unsanitized original.
func (r *Rewriter) SanitizeForDisplay(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		r.log.WithError(err).Warn("failed to parse HTML for sanitization, keeping original content")
		return htmlContent
	}

	doc.Find("script, iframe, object, embed, form").Remove()

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			// Collect first: RemoveAttr mutates the slice being ranged over.
			var handlers []string
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					handlers = append(handlers, attr.Key)
				}
			}
			for _, key := range handlers {
				sel.RemoveAttr(key)
			}
		}
	})

	sanitized, err := doc.Html()
	if err != nil {
		r.log.WithError(err).Warn("failed to render sanitized HTML, keeping original content")
		return htmlContent
	}

	return sanitized
}
