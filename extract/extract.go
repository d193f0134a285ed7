package extract

import (
	"context"
	"sync"

	"github.com/hazyhaar/sharedrop/container"
)

// Extractor handles one kind of attachment.
type Extractor interface {
	// CanHandle reports whether this extractor accepts the attachment.
	CanHandle(att Attachment) bool
	// Extract produces an item from the attachment.
	Extract(ctx context.Context, att Attachment) (*Item, error)
}

// ShareExtractor extracts and merges every attachment of a share. Dispatch
// is first-match over a fixed extractor order, so an attachment is handled
// by exactly one extractor.
type ShareExtractor struct {
	cfg        Config
	extractors []Extractor
}

// NewShareExtractor returns an extractor staging media into store.
func NewShareExtractor(store *container.Container, cfg Config) *ShareExtractor {
	cfg.defaults()
	return &ShareExtractor{
		cfg: cfg,
		extractors: []Extractor{
			&postExtractor{},
			&blogExtractor{},
			&bundleExtractor{store: store, cfg: cfg},
			&urlExtractor{cfg: cfg},
			&imageExtractor{store: store, cfg: cfg},
			&plistExtractor{},
			&textExtractor{},
		},
	}
}

// extractorFor returns the first extractor accepting att, or nil.
func (se *ShareExtractor) extractorFor(att Attachment) Extractor {
	for _, ex := range se.extractors {
		if ex.CanHandle(att) {
			return ex
		}
	}
	return nil
}

// ValidContent reports whether at least one attachment has a handler.
// Hosts use it to decide whether the share sheet should be offered at all.
func (se *ShareExtractor) ValidContent(atts []Attachment) bool {
	for _, att := range atts {
		if se.extractorFor(att) != nil {
			return true
		}
	}
	return false
}

// LoadShare extracts every attachment concurrently, waits for all of them,
// and merges the results into one Share. Attachments without a handler and
// attachments whose extraction fails are logged and skipped; a share with
// zero usable attachments merges to an empty Share rather than an error.
func (se *ShareExtractor) LoadShare(ctx context.Context, atts []Attachment) (*Share, error) {
	items := make([]*Item, len(atts))

	var wg sync.WaitGroup
	for i, att := range atts {
		ex := se.extractorFor(att)
		if ex == nil {
			se.cfg.Logger.Warn("no extractor for attachment", "type", att.Type)
			continue
		}
		wg.Add(1)
		go func(i int, att Attachment, ex Extractor) {
			defer wg.Done()
			item, err := ex.Extract(ctx, att)
			if err != nil {
				se.cfg.Logger.Error("extract attachment",
					"type", att.Type, "error", err)
				return
			}
			items[i] = item
		}(i, att, ex)
	}
	wg.Wait()

	kept := make([]*Item, 0, len(items))
	for _, it := range items {
		if it != nil && !it.Empty() {
			kept = append(kept, it)
		}
	}
	return mergeItems(kept), nil
}
