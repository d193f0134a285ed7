package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// Client talks to the publishing API. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a client for the API at baseURL authenticating with the
// bearer token.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
		log:     logger,
	}
}

// UploadMedia uploads the given files to a site in one multipart request and
// returns the server's media records, in server order.
func (c *Client) UploadMedia(ctx context.Context, siteID int64, files []MediaFile) ([]Media, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreatePart(mediaPartHeader(f))
		if err != nil {
			return nil, fmt.Errorf("remote: build media part: %w", err)
		}
		src, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("remote: open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("remote: read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("remote: finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/sites/%d/media/new", c.baseURL, siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("remote: build media request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Media []Media `json:"media"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("remote: upload media: %w", err)
	}
	c.log.Debug("media uploaded", "site", siteID, "count", len(result.Media))
	return result.Media, nil
}

func mediaPartHeader(f MediaFile) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="media[]"; filename=%q`, f.Name))
	if f.MimeType != "" {
		h.Set("Content-Type", f.MimeType)
	}
	return h
}

// CreatePost creates a post on a site and returns the server's record.
func (c *Client) CreatePost(ctx context.Context, siteID int64, params PostParams) (*Post, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("remote: encode post: %w", err)
	}
	url := fmt.Sprintf("%s/sites/%d/posts/new", c.baseURL, siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("remote: build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var post Post
	if err := c.do(req, &post); err != nil {
		return nil, fmt.Errorf("remote: create post: %w", err)
	}
	c.log.Debug("post created", "site", siteID, "post", post.ID)
	return &post, nil
}

// AttachMediaToPost sets a post as the parent of an uploaded media item, so
// the media shows up in the post's gallery server-side.
func (c *Client) AttachMediaToPost(ctx context.Context, siteID, mediaID, postID int64) error {
	payload, err := json.Marshal(map[string]int64{"parent_id": postID})
	if err != nil {
		return fmt.Errorf("remote: encode attach: %w", err)
	}
	url := fmt.Sprintf("%s/sites/%d/media/%d", c.baseURL, siteID, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remote: build attach request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, &struct{}{}); err != nil {
		return fmt.Errorf("remote: attach media %d to post %d: %w", mediaID, postID, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
