package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Tags kept in a simplified DOM. The value says whether a closing tag is written.
var allowedTags = map[string]bool{
	"html": true, "head": true, "body": true, "title": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "div": true, "span": true, "br": false, "hr": false,
	"ul": true, "ol": true, "li": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "th": true, "td": true,
	"a": true, "button": true, "input": false, "textarea": true, "select": true, "option": true, "label": true,
	"form": true, "img": false, "pre": true, "code": true, "strong": true, "em": true, "b": true, "i": true,
}

var allowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true,
	"id": true, "class": true,
	"type": true, "value": true, "placeholder": true, "name": true,
	"selected": true, "checked": true, "disabled": true, "readonly": true,
	"aria-label": true, "aria-hidden": true, "role": true,
	"data-testid": true, "for": true,
}

// Attributes written even when empty, since their presence is the signal.
var flagAttrs = map[string]bool{
	"value": true, "selected": true, "checked": true, "disabled": true, "readonly": true,
}

// Password values are never written to a snapshot.
const redacted = "[redacted]"

func GetSimplifiedDOM(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = simplifyNode(&buf, doc)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func simplifyNode(w io.Writer, n *html.Node) error {
	switch n.Type {
	case html.ErrorNode, html.CommentNode:
		return nil
	case html.DocumentNode:
		// Process children
	case html.DoctypeNode:
		if _, err := io.WriteString(w, "<!DOCTYPE "+n.Data+">"); err != nil {
			return err
		}
	case html.TextNode:
		trimmed := strings.TrimSpace(n.Data)
		if trimmed != "" {
			if _, err := io.WriteString(w, html.EscapeString(trimmed)+" "); err != nil {
				return err
			}
		}
		return nil
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "meta", "link", "svg":
			return nil
		}

		if _, ok := allowedTags[n.Data]; !ok {
			return simplifyChildren(w, n)
		}
		if err := writeOpenTag(w, n); err != nil {
			return err
		}
	}

	if err := simplifyChildren(w, n); err != nil {
		return err
	}

	if n.Type == html.ElementNode && allowedTags[n.Data] {
		if _, err := io.WriteString(w, "</"+n.Data+">"); err != nil {
			return err
		}
	}
	return nil
}

func simplifyChildren(w io.Writer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := simplifyNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

func writeOpenTag(w io.Writer, n *html.Node) error {
	if _, err := io.WriteString(w, "<"+n.Data); err != nil {
		return err
	}

	password := n.Data == "input" && strings.EqualFold(attr(n, "type"), "password")
	for _, a := range n.Attr {
		if !allowedAttrs[a.Key] {
			continue
		}
		val := strings.TrimSpace(a.Val)
		if val == "" && !flagAttrs[a.Key] {
			continue
		}
		if password && a.Key == "value" && val != "" {
			val = redacted
		}
		if _, err := io.WriteString(w, " "+a.Key+"=\""+html.EscapeString(val)+"\""); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, ">")
	return err
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WriteSnapshot simplifies htmlContent and writes it to dir/<name>.html,
// creating dir when needed. It returns the written path.
func WriteSnapshot(dir, name, htmlContent string) (string, error) {
	simplified, err := GetSimplifiedDOM(htmlContent)
	if err != nil {
		return "", fmt.Errorf("simplify dom: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	fileName := unsafeFileChars.ReplaceAllString(name, "_")
	if fileName == "" {
		fileName = "snapshot"
	}
	path := filepath.Join(dir, fileName+".html")
	if err := os.WriteFile(path, []byte(simplified), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
