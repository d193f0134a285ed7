package extract

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitize = bluemonday.UGCPolicy()
)

// mergeItems folds per-attachment items into one Share. Titles are
// space-joined, the first URL wins, image lists are unioned, and the body is
// rendered from exactly one content field chosen by fixed precedence:
// imported text, then selected text, then description, then title, then the
// bare link.
func mergeItems(items []*Item) *Share {
	var (
		titles, imported, selected, descriptions []string
		share                                    Share
	)
	for _, it := range items {
		if it.Title != "" {
			titles = append(titles, it.Title)
		}
		if it.ImportedText != "" {
			imported = append(imported, it.ImportedText)
		}
		if it.SelectedText != "" {
			selected = append(selected, it.SelectedText)
		}
		if it.Description != "" {
			descriptions = append(descriptions, it.Description)
		}
		if share.URL == "" && it.URL != "" {
			share.URL = it.URL
		}
		share.Images = append(share.Images, it.Images...)
		if share.Post == nil && len(it.PostPayload) > 0 {
			share.Post = it.PostPayload
		}
		if share.Blog == nil && len(it.BlogPayload) > 0 {
			share.Blog = it.BlogPayload
		}
	}
	share.Title = strings.Join(titles, " ")
	share.Content = renderContent(
		strings.Join(imported, "\n\n"),
		strings.Join(selected, "\n\n"),
		strings.Join(descriptions, "\n\n"),
		share.Title,
		share.URL,
	)
	return &share
}

func renderContent(imported, selected, description, title, url string) string {
	switch {
	case imported != "":
		return renderMarkdown(imported)
	case selected != "":
		body := fmt.Sprintf("<blockquote><p>%s</p></blockquote>", html.EscapeString(selected))
		if url != "" {
			body += fmt.Sprintf("\n\n<p><a href=%q>Read on</a></p>", url)
		}
		return body
	case description != "":
		body := fmt.Sprintf("<p>%s</p>", html.EscapeString(description))
		if url != "" {
			body += fmt.Sprintf("\n\n<p><a href=%q>%s</a></p>", url, html.EscapeString(url))
		}
		return body
	case title != "":
		body := fmt.Sprintf("<p>%s</p>", html.EscapeString(title))
		if url != "" {
			body += fmt.Sprintf("\n\n<p><a href=%q>%s</a></p>", url, html.EscapeString(url))
		}
		return body
	case url != "":
		return fmt.Sprintf("<p>%s</p>", url)
	}
	return ""
}

// renderMarkdown converts imported markdown to sanitized HTML. Imported text
// that is not markdown passes through as plain paragraphs.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return fmt.Sprintf("<p>%s</p>", html.EscapeString(src))
	}
	return strings.TrimSpace(sanitize.Sanitize(buf.String()))
}
