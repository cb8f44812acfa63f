package utils

import (
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent replaces embedded images with plain links, since
// descriptions must not pull third party content into the dashboard.
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(template.HTMLEscapeString(htmlStr))
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			s.Remove()
			return
		}
		label := s.AttrOr("alt", src)
		s.ReplaceWithHtml(`<a href="` + template.HTMLEscapeString(src) + `" target="_blank" rel="nofollow noreferrer noopener">` +
			template.HTMLEscapeString(label) + `</a>`)
	})

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		s.AddClass("report-link")
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return template.HTML(template.HTMLEscapeString(htmlStr))
	}
	return template.HTML(out)
}
