package session

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/sharedrop/queue"
)

// RewriteContent replaces local staged-image references in an HTML body with
// the uploaded remote URLs, matched by file name. Already-rewritten
// references no longer match any local name, so applying the rewrite again
// with the same media set is a no-op.
func RewriteContent(content string, media []*queue.MediaOperation) (string, error) {
	if content == "" || len(media) == 0 {
		return content, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return "", fmt.Errorf("session: parse post body: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			rewriteImg(n, media)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("session: render post body: %w", err)
		}
	}
	return sb.String(), nil
}

func rewriteImg(n *html.Node, media []*queue.MediaOperation) {
	src := attrValue(n, "src")
	if src == "" {
		return
	}
	for _, op := range media {
		if op.RemoteURL == "" || !MatchesFileName(src, op.FileName) {
			continue
		}
		setAttr(n, "src", op.RemoteURL)
		if op.Width > 0 {
			setAttr(n, "width", strconv.FormatInt(op.Width, 10))
		}
		if op.Height > 0 {
			setAttr(n, "height", strconv.FormatInt(op.Height, 10))
		}
		return
	}
}

// MatchesFileName reports whether a reference (an img src or a server-side
// file name) corresponds to a staged file. The server may rename uploads,
// so besides an exact base-name match, a reference containing the staged
// name's stem also counts.
func MatchesFileName(ref, fileName string) bool {
	refBase := strings.ToLower(path.Base(strings.TrimSpace(ref)))
	name := strings.ToLower(strings.TrimSpace(fileName))
	if name == "" || refBase == "" {
		return false
	}
	if refBase == name {
		return true
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	if stem == "" {
		return false
	}
	i := strings.Index(refBase, stem)
	if i < 0 {
		return false
	}
	// The stem must end the reference or be followed by a rename suffix or
	// an extension, so image_a does not claim image_a_final.jpg.
	rest := refBase[i+len(stem):]
	return rest == "" || rest[0] == '.' || rest[0] == '-'
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
