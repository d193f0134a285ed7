package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// urlExtractor handles shared web links. With FetchLinkedPages enabled it
// fetches the page, pulls the readable article out of it, and imports the
// body as markdown; otherwise the share carries just the link.
type urlExtractor struct {
	cfg Config
}

func (e *urlExtractor) CanHandle(att Attachment) bool {
	if att.Type != TypeURL {
		return false
	}
	return asWebURL(strings.TrimSpace(string(att.Data))) != ""
}

func (e *urlExtractor) Extract(ctx context.Context, att Attachment) (*Item, error) {
	raw := asWebURL(strings.TrimSpace(string(att.Data)))
	if raw == "" {
		return nil, fmt.Errorf("extract: not a web url: %q", att.Data)
	}
	item := &Item{URL: raw}
	if !e.cfg.FetchLinkedPages {
		return item, nil
	}

	// Import failures degrade to a bare link share.
	title, imported, err := e.importPage(ctx, raw)
	if err != nil {
		e.cfg.Logger.Warn("import linked page", "url", raw, "error", err)
		return item, nil
	}
	item.Title = title
	item.ImportedText = imported
	return item, nil
}

func (e *urlExtractor) importPage(ctx context.Context, raw string) (title, imported string, err error) {
	pageURL, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, raw, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}

	md, err := htmlToMarkdown(sanitize.Sanitize(article.Content))
	if err != nil {
		return "", "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(article.Title), strings.TrimSpace(md), nil
}

var mdConverter = converter.NewConverter(converter.WithPlugins(
	base.NewBasePlugin(),
	commonmark.NewCommonmarkPlugin(),
	table.NewTablePlugin(),
))

func htmlToMarkdown(src string) (string, error) {
	return mdConverter.ConvertString(src)
}
