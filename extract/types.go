// Package extract turns the heterogeneous attachments of a share into a
// single Share value ready for upload. Each attachment type has a dedicated
// extractor; the first extractor that accepts an attachment handles it, and
// the per-attachment results are merged into one post body.
package extract

import "fmt"

// Attachment type identifiers, matching the uniform type identifiers a host
// application tags shared payloads with.
const (
	TypeURL     = "public.url"
	TypeFileURL = "public.file-url"
	TypeImage   = "public.image"
	TypeText    = "public.plain-text"
	TypePlist   = "public.property-list"
	TypePost    = "org.sharedrop.post"
	TypeBlog    = "org.sharedrop.blog"
)

// Attachment is one shared payload. Data carries inline payloads (text,
// image bytes, property lists); Path points at on-disk payloads such as
// file URLs and text bundles. Exactly one of the two is normally set.
type Attachment struct {
	Type string
	Data []byte
	Path string
}

// InsertionState says how an extracted image relates to the post body.
type InsertionState int

const (
	// EmbeddedInHTML means the body already references the image and the
	// group rewrite will point the reference at the uploaded copy.
	EmbeddedInHTML InsertionState = iota
	// RequiresInsertion means the image arrived on its own and a reference
	// must be appended to the body before upload.
	RequiresInsertion
)

func (s InsertionState) String() string {
	switch s {
	case EmbeddedInHTML:
		return "embedded"
	case RequiresInsertion:
		return "requires-insertion"
	}
	return fmt.Sprintf("InsertionState(%d)", int(s))
}

// Image is a staged image ready for upload.
type Image struct {
	FileName  string // name within the shared container's media directory
	LocalPath string // absolute path of the staged file
	MimeType  string
	Width     int
	Height    int
	Insertion InsertionState
}

// Item is the result of extracting a single attachment. Unset fields simply
// did not occur in the attachment.
type Item struct {
	Title        string
	SelectedText string // user-selected excerpt, rendered as a quote
	Description  string // page or document summary
	ImportedText string // full imported body, markdown or plain text
	URL          string
	Images       []Image
	PostPayload  []byte // raw org.sharedrop.post payload, if any
	BlogPayload  []byte // raw org.sharedrop.blog payload, if any
}

// Empty reports whether extraction produced nothing usable.
func (it *Item) Empty() bool {
	return it.Title == "" && it.SelectedText == "" && it.Description == "" &&
		it.ImportedText == "" && it.URL == "" && len(it.Images) == 0 &&
		len(it.PostPayload) == 0 && len(it.BlogPayload) == 0
}

// Share is the merged result of extracting every attachment of one share.
type Share struct {
	Title   string
	Content string // HTML body
	URL     string
	Images  []Image
	Post    []byte // raw org.sharedrop.post payload, if any
	Blog    []byte // raw org.sharedrop.blog payload, if any
}
