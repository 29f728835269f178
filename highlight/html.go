package highlight

import (
	"fmt"
	"strings"

	"github.com/Areen-09/legal-doc-demystifier/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const markAttr = "data-highlight"

// ApplyHTML wraps the text-mode matches of terms in <mark data-highlight>
// elements. Marks from an earlier run are removed first, so applying it to
// its own output changes nothing.
func ApplyHTML(src string, terms []model.KeyTerm) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	unmark(body)
	markNode(body, terms)

	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
	}
	return sb.String(), nil
}

func isHighlight(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Mark {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == markAttr {
			return true
		}
	}
	return false
}

// unmark replaces every highlight mark with its children and joins the text
// the marks had split apart.
func unmark(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			unmark(c)
		}
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isHighlight(c) {
			for gc := c.FirstChild; gc != nil; {
				gcNext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gcNext
			}
			n.RemoveChild(c)
		}
		c = next
	}
	mergeText(n)
}

func mergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		c = next
	}
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Textarea, atom.Title:
		return true
	}
	return isHighlight(n)
}

func markNode(n *html.Node, terms []model.KeyTerm) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
			splitText(n, c, MarkText(c.Data, terms))
		case html.ElementNode:
			if !skipElement(c) {
				markNode(c, terms)
			}
		}
		c = next
	}
}

// splitText replaces text node t with text and mark nodes per marks
func splitText(parent, t *html.Node, marks []Mark) {
	if len(marks) == 0 {
		return
	}
	text := t.Data
	pos := 0
	for _, m := range marks {
		if m.Start > pos {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[pos:m.Start]}, t)
		}
		mark := &html.Node{
			Type:     html.ElementNode,
			Data:     "mark",
			DataAtom: atom.Mark,
			Attr: []html.Attribute{
				{Key: markAttr},
				{Key: "class", Val: m.Class()},
				{Key: "data-term", Val: m.Term},
				{Key: "data-risk", Val: string(m.Risk)},
			},
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: text[m.Start:m.End]})
		parent.InsertBefore(mark, t)
		pos = m.End
	}
	if pos < len(text) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[pos:]}, t)
	}
	parent.RemoveChild(t)
}
