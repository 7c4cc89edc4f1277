package html

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Extract returns the items matched by selector in body, in document
// order. For a match carrying an href the item is the href resolved
// against base, otherwise its trimmed text. Empty values are skipped and
// duplicates keep their first position.
func Extract(body []byte, base *url.URL, selector string, textOnly bool) ([]string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("html: invalid selector %q: %w", selector, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("html: parse document: %w", err)
	}

	var items []string
	seen := make(map[string]struct{})
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		value := itemValue(s, base, textOnly)
		if value == "" {
			return
		}
		if _, dup := seen[value]; dup {
			return
		}
		seen[value] = struct{}{}
		items = append(items, value)
	})
	return items, nil
}

func itemValue(s *goquery.Selection, base *url.URL, textOnly bool) string {
	if !textOnly {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				return resolve(base, href)
			}
		}
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

// resolve returns href made absolute against base. Unparseable hrefs are
// returned unchanged.
func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
