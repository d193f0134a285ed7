package extract

import (
	"context"
	"net/url"
	"strings"
)

// textExtractor handles shared plain text. A string that is a single
// full-string URL is reclassified as a link share instead of article prose.
type textExtractor struct{}

func (e *textExtractor) CanHandle(att Attachment) bool { return att.Type == TypeText }

func (e *textExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	text := strings.TrimSpace(string(att.Data))
	if text == "" {
		return &Item{}, nil
	}
	if u := asWebURL(text); u != "" {
		return &Item{URL: u}, nil
	}
	return &Item{SelectedText: text}, nil
}

// asWebURL returns text normalized as an http(s) URL if the whole string is
// one, and "" otherwise.
func asWebURL(text string) string {
	if strings.ContainsAny(text, " \t\n") {
		return ""
	}
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
