package silo

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/silobot/silo/models"
)

// Meta tag fallback chains, highest priority first.
var (
	descriptionMetaNames = []string{"og:description", "description"}
	authorMetaNames      = []string{"author", "article:author", "og:author", "twitter:creator"}
	publishDateMetaNames = []string{"article:published_time", "og:published_time", "publication_date", "date"}
)

// ExtractMetadata parses a page's HTML into structured metadata and a
// cleaned plain-text body. It is a pure function: no network access, no
// side effects. An empty document yields zero metadata and empty text.
func ExtractMetadata(htmlContent, pageURL, contentType string) (models.Metadata, string) {
	meta := models.Metadata{ContentType: contentType}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			meta.Domain = strings.ToLower(u.Hostname())
		}
		meta.CanonicalURL = pageURL
	}
	if htmlContent == "" {
		return meta, ""
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return meta, ""
	}

	p := newPageScan(doc)

	meta.Title = p.title
	meta.Description = p.metaContent(descriptionMetaNames)
	meta.Author = p.metaContent(authorMetaNames)
	meta.PublishDate = p.metaContent(publishDateMetaNames)
	meta.Favicon = absoluteURL(p.favicon, pageURL)
	if canonical := absoluteURL(p.canonical, pageURL); canonical != "" {
		meta.CanonicalURL = canonical
	}
	meta.Language = strings.ToLower(p.language)

	text := ExtractText(doc)
	meta.WordCount = len(strings.Fields(text))
	meta.ReadTime = readTimeMinutes(meta.WordCount)

	return meta, text
}

// ExtractText returns the page's visible text with boilerplate containers
// (script, style, noscript, header, footer, nav) removed and whitespace
// collapsed to single spaces.
func ExtractText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "header", "footer", "nav":
				return
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// readTimeMinutes estimates reading time at 200 words per minute, rounded
// up. Zero words means no estimate.
func readTimeMinutes(wordCount int) int {
	if wordCount == 0 {
		return 0
	}
	return (wordCount + 199) / 200
}

// pageScan is a single traversal collecting everything the extractor needs.
type pageScan struct {
	title     string
	metaTags  map[string]string // name/property (lowercased) -> content, first wins
	favicon   string
	canonical string
	language  string
}

func newPageScan(doc *html.Node) *pageScan {
	p := &pageScan{metaTags: make(map[string]string)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if p.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					p.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				p.scanMeta(n)
			case "link":
				p.scanLink(n)
			case "html":
				if lang := attrValue(n, "lang"); lang != "" {
					p.language = lang
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return p
}

func (p *pageScan) scanMeta(n *html.Node) {
	var name, property, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = strings.ToLower(attr.Val)
		case "property":
			property = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if name != "" {
		if _, ok := p.metaTags[name]; !ok {
			p.metaTags[name] = content
		}
	}
	if property != "" {
		if _, ok := p.metaTags[property]; !ok {
			p.metaTags[property] = content
		}
	}
}

func (p *pageScan) scanLink(n *html.Node) {
	rel := strings.ToLower(attrValue(n, "rel"))
	href := attrValue(n, "href")
	if href == "" {
		return
	}
	if p.favicon == "" && strings.Contains(rel, "icon") {
		p.favicon = href
	}
	if p.canonical == "" && rel == "canonical" {
		p.canonical = href
	}
}

// metaContent returns the first matching meta tag content from a
// priority-ordered list of names/properties.
func (p *pageScan) metaContent(names []string) string {
	for _, name := range names {
		if content, ok := p.metaTags[name]; ok {
			return content
		}
	}
	return ""
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// absoluteURL resolves href against base, returning href unchanged when no
// base is available and "" when href is empty.
func absoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	if base == "" {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
