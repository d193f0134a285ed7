package extract

import "context"

// postExtractor passes a pre-composed post payload through untouched; the
// sharing application already shaped it and the service layer consumes it
// as-is.
type postExtractor struct{}

func (e *postExtractor) CanHandle(att Attachment) bool { return att.Type == TypePost }

func (e *postExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	return &Item{PostPayload: att.Data}, nil
}

// blogExtractor passes a target-blog payload through untouched.
type blogExtractor struct{}

func (e *blogExtractor) CanHandle(att Attachment) bool { return att.Type == TypeBlog }

func (e *blogExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	return &Item{BlogPayload: att.Data}, nil
}
