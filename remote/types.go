// Package remote is the HTTP client for the publishing API: media uploads,
// post creation, and media-to-post association.
package remote

// MediaFile is one staged file to upload.
type MediaFile struct {
	Name     string // file name within the upload, used for result matching
	MimeType string
	Path     string // absolute path of the staged file
}

// Media is the server's record of an uploaded file. File is the name the
// server stored the upload under, which may differ from the submitted name
// when the server deduplicates or normalizes file names.
type Media struct {
	ID     int64  `json:"ID"`
	URL    string `json:"URL"`
	File   string `json:"file"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

// PostParams describes a post to create.
type PostParams struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status,omitempty"`
	Type       string `json:"type,omitempty"`
	Tags       string `json:"tags,omitempty"`
	Categories string `json:"categories,omitempty"`
}

// Post is the server's record of a created post.
type Post struct {
	ID     int64  `json:"ID"`
	URL    string `json:"URL"`
	Status string `json:"status"`
}
