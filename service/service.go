// Package service is the submission façade: it turns an extracted share into
// persisted upload operations and drives their upload.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hazyhaar/sharedrop/container"
	"github.com/hazyhaar/sharedrop/extract"
	"github.com/hazyhaar/sharedrop/queue"
	"github.com/hazyhaar/sharedrop/session"
)

// Service creates upload operations from shares and submits them.
type Service struct {
	store *queue.Store
	media *container.Container
	mgr   *session.Manager
	token string
	log   *slog.Logger
}

// New returns a service. token is the publishing API credential; an empty
// token means no account is configured and submissions are refused.
func New(store *queue.Store, media *container.Container, mgr *session.Manager, token string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, media: media, mgr: mgr, token: token, log: logger}
}

// HasCredentials reports whether an account is configured.
func (s *Service) HasCredentials() bool { return s.token != "" }

// postPayload is the pre-composed post a sharing application can attach.
type postPayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	Tags       string `json:"tags"`
	Categories string `json:"categories"`
}

// blogPayload selects the target site.
type blogPayload struct {
	SiteID int64 `json:"site_id"`
}

// SubmitShare persists and uploads an extracted share as one operation
// group. Post and blog payloads attached to the share override the merged
// title, body, and target site. The returned group ID identifies the
// operations in the store.
func (s *Service) SubmitShare(ctx context.Context, siteID int64, share *extract.Share, postStatus string) (string, error) {
	title, content := share.Title, share.Content
	pType, tags, categories := "", "", ""
	if len(share.Post) > 0 {
		var p postPayload
		if err := json.Unmarshal(share.Post, &p); err != nil {
			return "", fmt.Errorf("service: decode post payload: %w", err)
		}
		if p.Title != "" {
			title = p.Title
		}
		if p.Content != "" {
			content = p.Content
		}
		if p.Status != "" {
			postStatus = p.Status
		}
		pType, tags, categories = p.Type, p.Tags, p.Categories
	}
	if len(share.Blog) > 0 {
		var b blogPayload
		if err := json.Unmarshal(share.Blog, &b); err != nil {
			return "", fmt.Errorf("service: decode blog payload: %w", err)
		}
		if b.SiteID != 0 {
			siteID = b.SiteID
		}
	}
	return s.SaveAndUploadPostWithMedia(ctx, siteID, title, content, postStatus, pType, tags, categories, share.Images)
}

// SaveAndUploadPost persists a text-only post and uploads it.
func (s *Service) SaveAndUploadPost(ctx context.Context, siteID int64, title, content, postStatus string) (string, error) {
	return s.SaveAndUploadPostWithMedia(ctx, siteID, title, content, postStatus, "", "", "", nil)
}

// SaveAndUploadPostWithMedia persists one post operation plus one media
// operation per image under a fresh group, then uploads the group. Images
// not yet referenced from the body get an image tag appended first, so the
// upload rewrite can resolve them like any other reference.
func (s *Service) SaveAndUploadPostWithMedia(ctx context.Context, siteID int64, title, content, postStatus, postType, tags, categories string, images []extract.Image) (string, error) {
	if !s.HasCredentials() {
		return "", fmt.Errorf("service: no account configured")
	}
	if siteID == 0 {
		return "", fmt.Errorf("service: no target site")
	}

	groupID := uuid.Must(uuid.NewV7()).String()
	content = appendUnreferencedImages(content, images)

	post := &queue.PostOperation{
		Operation:  queue.Operation{GroupID: groupID, SiteID: siteID},
		Title:      title,
		Content:    content,
		PostStatus: postStatus,
		PostType:   postType,
		Tags:       tags,
		Categories: categories,
	}
	mediaOps := make([]*queue.MediaOperation, 0, len(images))
	for _, img := range images {
		mediaOps = append(mediaOps, &queue.MediaOperation{
			Operation: queue.Operation{GroupID: groupID, SiteID: siteID},
			FileName:  img.FileName,
			LocalPath: img.LocalPath,
			MimeType:  img.MimeType,
			Width:     int64(img.Width),
			Height:    int64(img.Height),
		})
	}
	// One transaction: the worker never sees a post without its siblings.
	if err := s.store.CreateGroup(ctx, post, mediaOps); err != nil {
		return "", err
	}
	s.log.Info("share submitted",
		"group", groupID, "site", siteID, "media", len(images))

	if err := s.mgr.UploadGroup(ctx, groupID); err != nil {
		return groupID, err
	}
	return groupID, nil
}

// Cancel abandons a submitted group and cleans up its staged files.
func (s *Service) Cancel(ctx context.Context, groupID string) error {
	return s.mgr.CancelGroup(ctx, groupID)
}

// appendUnreferencedImages adds an image tag for every image the body does
// not already reference.
func appendUnreferencedImages(content string, images []extract.Image) string {
	var sb strings.Builder
	sb.WriteString(content)
	for _, img := range images {
		if img.Insertion == extract.EmbeddedInHTML || strings.Contains(content, img.FileName) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "<img src=%q>", img.FileName)
	}
	return sb.String()
}
