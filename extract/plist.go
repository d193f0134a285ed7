package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// plistExtractor handles the dictionary payload a browser share sheet
// produces, carrying the page title, the user's selection, and the page URL.
// The payload arrives serialized as a JSON object.
type plistExtractor struct{}

func (e *plistExtractor) CanHandle(att Attachment) bool { return att.Type == TypePlist }

func (e *plistExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	var payload struct {
		Title     string `json:"title"`
		Selection string `json:"selection"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(att.Data, &payload); err != nil {
		return nil, fmt.Errorf("extract: decode property list: %w", err)
	}
	return &Item{
		Title:        strings.TrimSpace(payload.Title),
		SelectedText: strings.TrimSpace(payload.Selection),
		URL:          strings.TrimSpace(payload.URL),
	}, nil
}
