package docpipe

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0(?:$|[^.\d])`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(?:$|[^.\d])`),
}

// htmlParser turns an HTML page into blocks and tables. Hidden elements are
// pruned first (the sanitizer drops style attributes), then the page goes
// through the UGC policy before the DOM walk.
type htmlParser struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func newHTMLParser() *htmlParser {
	return &htmlParser{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (h *htmlParser) extractFile(path string) (*parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return h.parse(data)
}

func (h *htmlParser) parse(data []byte) (*parsed, error) {
	raw, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	title := findHTMLTitle(raw)
	pruneHidden(raw)

	var visible bytes.Buffer
	if err := html.Render(&visible, raw); err != nil {
		return nil, err
	}
	clean := h.policy.Sanitize(visible.String())

	doc, err := html.Parse(strings.NewReader(clean))
	if err != nil {
		return nil, err
	}
	res := &parsed{title: title}
	walkHTML(doc, res)
	if len(res.blocks) == 0 && len(res.tables) == 0 {
		if text := collectHTMLText(doc); text != "" {
			res.blocks = []string{text}
		}
	}
	if res.title == "" && len(res.blocks) > 0 {
		res.title = firstLine(res.blocks[0])
	}

	if md, err := h.md.ConvertString(clean); err == nil {
		res.md = strings.TrimSpace(md)
	}
	return res, nil
}

// pruneHidden removes boilerplate and invisibly styled subtrees in place.
func pruneHidden(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (isBoilerplate(c) || hasHiddenStyle(c)) {
			n.RemoveChild(c)
		} else {
			pruneHidden(c)
		}
		c = next
	}
}

func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Header:
		return true
	}
	return false
}

func hasHiddenStyle(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		for _, pat := range hiddenStylePatterns {
			if pat.MatchString(a.Val) {
				return true
			}
		}
	}
	return false
}

func findHTMLTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findHTMLTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// walkHTML collects headings, paragraphs and list items as blocks and
// tables as row grids.
func walkHTML(n *html.Node, res *parsed) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.P, atom.Li, atom.Blockquote, atom.Pre:
			if text := collectHTMLText(n); text != "" {
				res.blocks = append(res.blocks, text)
			}
			return
		case atom.Table:
			if t := htmlTable(n); len(t.Rows) > 0 {
				res.tables = append(res.tables, t)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, res)
	}
}

func htmlTable(n *html.Node) Table {
	var t Table
	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				// Nested tables stay inside their cell's text.
			case atom.Tr:
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						row = append(row, collectHTMLText(cell))
					}
				}
				if len(row) > 0 {
					t.Rows = append(t.Rows, row)
				}
			default:
				rows(c)
			}
		}
	}
	rows(n)
	return t
}

// collectHTMLText returns the visible text of a subtree on one line.
func collectHTMLText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(sb.String())
}
