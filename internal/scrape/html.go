package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// skipped elements contribute no visible text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
}

// decode converts body to UTF-8. An explicit charset in contentType wins;
// otherwise the encoding is sniffed from BOMs and <meta> tags.
func decode(body []byte, contentType string) ([]byte, error) {
	if label := charsetParam(contentType); label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			out, err := enc.NewDecoder().Bytes(body)
			if err != nil {
				return nil, eris.Wrapf(err, "scrape: decode %s", label)
			}
			return out, nil
		}
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body, nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: decode %s", name)
	}
	return out, nil
}

func charsetParam(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, "charset") {
			return strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}
	return ""
}

// parsePage builds a Page from an HTML document. base resolves relative
// links.
func parsePage(body []byte, base *url.URL) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	p := &Page{}
	var text strings.Builder
	seenMail := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
			return
		case html.ElementNode:
			if n.DataAtom == atom.Title {
				if p.Title == "" {
					p.Title = strings.TrimSpace(nodeText(n))
				}
				return
			}
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.A {
				addLink(p, n, base, seenMail)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = strings.Join(strings.Fields(text.String()), " ")
	return p, nil
}

func addLink(p *Page, n *html.Node, base *url.URL, seenMail map[string]bool) {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" {
		return
	}

	if rest, ok := cutPrefixFold(href, "mailto:"); ok {
		addr, _, _ := strings.Cut(rest, "?")
		if addr, err := url.PathUnescape(strings.TrimSpace(addr)); err == nil && addr != "" {
			if k := strings.ToLower(addr); !seenMail[k] {
				seenMail[k] = true
				p.Mailto = append(p.Mailto, addr)
			}
		}
		return
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	u.Fragment = ""
	p.Links = append(p.Links, Link{
		Href: u.String(),
		Text: strings.Join(strings.Fields(nodeText(n)), " "),
	})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
