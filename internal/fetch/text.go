package fetch

import (
	"bytes"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([\w.:-]+)`)

// decodeBody converts body to UTF-8 using the charset from the Content-Type
// header or, failing that, a <meta charset> in the first KB of the document.
// Unknown charsets leave the body untouched.
func decodeBody(body []byte, contentType string) []byte {
	name := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		name = params["charset"]
	}
	if name == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			name = string(m[1])
		}
	}
	if name == "" {
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// boilerplate is removed before text extraction.
const boilerplate = "script, style, noscript, nav, footer, header, svg, iframe, template, form"

// blockElements get a trailing space so adjacent blocks do not run together.
const blockElements = "br, p, div, li, h1, h2, h3, h4, h5, h6, tr, td, th, section, article, blockquote, span, a"

// extractText returns the page title and the visible body text with
// whitespace collapsed.
func extractText(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", eris.Wrap(err, "fetch: parse html")
	}

	title := collapseWhitespace(doc.Find("title").First().Text())

	doc.Find(boilerplate).Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return title, collapseWhitespace(doc.Find("body").Text()), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n characters without splitting a
// multi-byte sequence. n <= 0 means no limit.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
