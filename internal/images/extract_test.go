package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractImageURLs(t *testing.T) {
	t.Run("extracts img src attributes", func(t *testing.T) {
		html := `<div><img src="https://cdn.example.com/a.png" alt="a"><img width="10" src='https://cdn.example.com/b.jpg'></div>`
		urls := ExtractImageURLs(html)
		assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.jpg"}, urls)
	})

	t.Run("extracts css background urls from inline styles and style blocks", func(t *testing.T) {
		html := `
			<style>.hero { background-image: url("https://cdn.example.com/hero.jpg"); }</style>
			<td style="background: url(https://cdn.example.com/cell.png) no-repeat"></td>`
		urls := ExtractImageURLs(html)
		assert.ElementsMatch(t, []string{"https://cdn.example.com/hero.jpg", "https://cdn.example.com/cell.png"}, urls)
	})

	t.Run("deduplicates repeated URLs", func(t *testing.T) {
		html := `<img src="https://cdn.example.com/a.png"><img src="https://cdn.example.com/a.png">`
		urls := ExtractImageURLs(html)
		assert.Equal(t, []string{"https://cdn.example.com/a.png"}, urls)
	})

	t.Run("excludes data URIs", func(t *testing.T) {
		html := `<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw="><img src="https://cdn.example.com/real.gif">`
		urls := ExtractImageURLs(html)
		assert.Equal(t, []string{"https://cdn.example.com/real.gif"}, urls)
	})

	t.Run("excludes relative and non-http URLs", func(t *testing.T) {
		html := `<img src="/local/a.png"><img src="ftp://files.example.com/b.png"><img src="cid:inline-part">`
		assert.Empty(t, ExtractImageURLs(html))
	})

	t.Run("empty html yields no urls", func(t *testing.T) {
		assert.Empty(t, ExtractImageURLs(""))
	})
}
