package pipeline

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// maxTextChars caps extracted page text before it reaches the summarizer.
const maxTextChars = 25000

const truncationMarker = "\n\n[TRUNCATED]"

// Document is the readable view of a fetched page.
type Document struct {
	Title       string
	Byline      string
	SiteName    string
	PublishedAt string
	Text        string
}

// Parse extracts readable text from a page, preferring go-readability and
// falling back to a plain HTML walk when readability yields nothing. Plain
// text bodies pass through untouched.
func Parse(p *Page) Document {
	if strings.Contains(strings.ToLower(p.ContentType), "text/plain") {
		return Document{Text: clampText(normalizeText(string(p.Body)))}
	}

	var doc Document
	pageURL, _ := url.Parse(p.FinalURL)
	if pageURL != nil {
		if art, err := readability.FromReader(bytes.NewReader(p.Body), pageURL); err == nil {
			doc.Title = strings.TrimSpace(art.Title)
			doc.Byline = strings.TrimSpace(art.Byline)
			doc.SiteName = strings.TrimSpace(art.SiteName)
			if art.PublishedTime != nil {
				doc.PublishedAt = art.PublishedTime.UTC().Format("2006-01-02")
			}
			doc.Text = normalizeText(art.TextContent)
		}
	}
	if doc.Text == "" {
		title, text := walkHTML(p.Body)
		if doc.Title == "" {
			doc.Title = title
		}
		doc.Text = normalizeText(text)
	}
	doc.Text = clampText(doc.Text)
	return doc
}

func clampText(text string) string {
	if len(text) <= maxTextChars {
		return text
	}
	return text[:maxTextChars] + truncationMarker
}

// normalizeText trims every line and drops blank ones.
func normalizeText(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}

// walkHTML is the readability fallback: a depth-first text collection that
// skips script, style and navigation chrome.
func walkHTML(body []byte) (title, text string) {
	node, err := html.Parse(bytes.NewReader(body))
	if err != nil || node == nil {
		return "", ""
	}
	title = strings.TrimSpace(findTitle(node))
	content := findFirst(node, "main")
	if content == nil {
		content = findFirst(node, "article")
	}
	if content == nil {
		content = findFirst(node, "body")
	}
	if content == nil {
		return title, ""
	}
	var b strings.Builder
	collectText(&b, content)
	return title, b.String()
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe":
			return
		case "br", "hr", "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "tr":
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(n.Data, "\t", " "), "\r", " "))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li":
			b.WriteString("\n")
		}
	}
}
