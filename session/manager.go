// Package session coordinates background upload groups: media first, then
// the dependent post, with completion handling that is safe to run from more
// than one process at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/sharedrop/container"
	"github.com/hazyhaar/sharedrop/queue"
	"github.com/hazyhaar/sharedrop/remote"
)

// Uploader is the slice of the publishing API the manager needs.
// *remote.Client implements it.
type Uploader interface {
	UploadMedia(ctx context.Context, siteID int64, files []remote.MediaFile) ([]remote.Media, error)
	CreatePost(ctx context.Context, siteID int64, params remote.PostParams) (*remote.Post, error)
	AttachMediaToPost(ctx context.Context, siteID, mediaID, postID int64) error
}

// Notifier receives group outcomes for user-facing notification.
type Notifier interface {
	NotifySuccess(ctx context.Context, post *queue.PostOperation, mediaCount int) error
	NotifyFailure(ctx context.Context, post *queue.PostOperation, mediaCount int) error
}

// Config tunes the manager.
type Config struct {
	// SessionID identifies this process's background session in the store,
	// so a peer process can find the operations it left behind.
	SessionID string `yaml:"session_id"`

	// PollInterval is how often the worker loop scans for pending groups.
	PollInterval time.Duration `yaml:"poll_interval"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.SessionID == "" {
		c.SessionID = "sharedrop-session"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns upload execution for operation groups.
type Manager struct {
	store    *queue.Store
	media    *container.Container
	client   Uploader
	notifier Notifier
	cfg      Config
	log      *slog.Logger

	wg      sync.WaitGroup
	taskSeq atomic.Int64
}

// New returns a manager uploading through client and staging media in media.
func New(store *queue.Store, media *container.Container, client Uploader, notifier Notifier, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		store:    store,
		media:    media,
		client:   client,
		notifier: notifier,
		cfg:      cfg,
		log:      cfg.Logger,
	}
}

// UploadGroup uploads a group's pending media and, once every sibling is
// complete, its post. Media operations are claimed by moving them to
// inprogress; an operation another process already claimed is skipped, so
// two processes driving the same group do not double-upload.
func (m *Manager) UploadGroup(ctx context.Context, groupID string) error {
	m.wg.Add(1)
	defer m.wg.Done()

	post, err := m.store.PostOpForGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("session: load group %s: %w", groupID, err)
	}
	mediaOps, err := m.store.MediaOpsForGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("session: load group %s media: %w", groupID, err)
	}

	claimed, err := m.claimPending(ctx, mediaOps)
	if err != nil {
		return err
	}
	if len(claimed) > 0 {
		if err := m.uploadMedia(ctx, post, claimed, len(mediaOps)); err != nil {
			return err
		}
	}
	return m.finalizeGroup(ctx, groupID)
}

// claimPending moves pending media operations to inprogress and returns the
// ones this call won.
func (m *Manager) claimPending(ctx context.Context, ops []*queue.MediaOperation) ([]*queue.MediaOperation, error) {
	taskID := m.taskSeq.Add(1)
	var claimed []*queue.MediaOperation
	for _, op := range ops {
		if op.Status != queue.StatusPending {
			continue
		}
		moved, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusInProgress)
		if err != nil {
			return nil, fmt.Errorf("session: claim media op %s: %w", op.ID, err)
		}
		if !moved {
			continue
		}
		if err := m.store.UpdateTaskID(ctx, op.ID, m.cfg.SessionID, taskID); err != nil {
			return nil, err
		}
		claimed = append(claimed, op)
	}
	return claimed, nil
}

func (m *Manager) uploadMedia(ctx context.Context, post *queue.PostOperation, claimed []*queue.MediaOperation, groupSize int) error {
	files := make([]remote.MediaFile, len(claimed))
	for i, op := range claimed {
		files[i] = remote.MediaFile{
			Name:     op.FileName,
			MimeType: op.MimeType,
			Path:     op.LocalPath,
		}
	}

	results, err := m.client.UploadMedia(ctx, post.SiteID, files)
	if err != nil {
		m.log.Error("media upload failed",
			"group", post.GroupID, "count", len(claimed), "error", err)
		m.failMedia(ctx, post, claimed, groupSize)
		return fmt.Errorf("session: upload media for group %s: %w", post.GroupID, err)
	}

	// The server may rename uploads, so results are matched back to local
	// operations by name rather than by position.
	var unmatched []*queue.MediaOperation
	for _, op := range claimed {
		res, ok := matchResult(results, op.FileName)
		if !ok {
			unmatched = append(unmatched, op)
			continue
		}
		if err := m.store.UpdateMediaResult(ctx, op.ID, res.ID, res.URL, res.Width, res.Height); err != nil {
			return err
		}
		if _, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusComplete); err != nil {
			return err
		}
		if err := m.media.RemoveMedia(op.FileName); err != nil {
			m.log.Warn("remove staged file", "file", op.FileName, "error", err)
		}
	}
	if len(unmatched) > 0 {
		m.failMedia(ctx, post, unmatched, groupSize)
		return fmt.Errorf("session: %d uploaded media not found in response for group %s",
			len(unmatched), post.GroupID)
	}
	return nil
}

func matchResult(results []remote.Media, fileName string) (remote.Media, bool) {
	for _, res := range results {
		if MatchesFileName(res.File, fileName) {
			return res, true
		}
	}
	return remote.Media{}, false
}

// failMedia marks the given media operations errored, removes their staged
// files, and surfaces the group failure once. The dependent post is left
// pending and is never uploaded.
func (m *Manager) failMedia(ctx context.Context, post *queue.PostOperation, ops []*queue.MediaOperation, groupSize int) {
	for _, op := range ops {
		if _, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusError); err != nil {
			m.log.Error("mark media op failed", "op", op.ID, "error", err)
		}
		if err := m.media.RemoveMedia(op.FileName); err != nil {
			m.log.Warn("remove staged file", "file", op.FileName, "error", err)
		}
	}
	if err := m.notifier.NotifyFailure(ctx, post, groupSize); err != nil {
		m.log.Error("notify failure", "group", post.GroupID, "error", err)
	}
}

// finalizeGroup uploads the post once every sibling media operation is
// complete. It is safe to call repeatedly and from multiple processes: a
// group whose post is already terminal, still waiting on media, or claimed
// by a peer process is left alone.
func (m *Manager) finalizeGroup(ctx context.Context, groupID string) error {
	post, err := m.store.PostOpForGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("session: load group %s: %w", groupID, err)
	}
	if post.Status.Terminal() {
		return nil
	}
	mediaOps, err := m.store.MediaOpsForGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("session: load group %s media: %w", groupID, err)
	}
	for _, op := range mediaOps {
		switch op.Status {
		case queue.StatusPending, queue.StatusInProgress:
			return nil
		case queue.StatusError:
			// Failure was surfaced when the media errored.
			return nil
		}
	}

	if len(mediaOps) > 0 {
		rewritten, err := RewriteContent(post.Content, mediaOps)
		if err != nil {
			return err
		}
		if rewritten != post.Content {
			if err := m.store.UpdatePostContent(ctx, post.ID, rewritten); err != nil {
				return err
			}
			post.Content = rewritten
		}
	}

	moved, err := m.store.UpdateStatus(ctx, post.ID, queue.StatusInProgress)
	if err != nil {
		return fmt.Errorf("session: claim post op %s: %w", post.ID, err)
	}
	if !moved {
		// A peer process got here first.
		return nil
	}

	created, err := m.client.CreatePost(ctx, post.SiteID, remote.PostParams{
		Title:      post.Title,
		Content:    post.Content,
		Status:     post.PostStatus,
		Type:       post.PostType,
		Tags:       post.Tags,
		Categories: post.Categories,
	})
	if err != nil {
		if _, serr := m.store.UpdateStatus(ctx, post.ID, queue.StatusError); serr != nil {
			m.log.Error("mark post op failed", "op", post.ID, "error", serr)
		}
		if nerr := m.notifier.NotifyFailure(ctx, post, len(mediaOps)); nerr != nil {
			m.log.Error("notify failure", "group", groupID, "error", nerr)
		}
		return fmt.Errorf("session: create post for group %s: %w", groupID, err)
	}

	if err := m.store.UpdatePostRemoteID(ctx, post.ID, created.ID); err != nil {
		return err
	}
	post.RemotePostID = created.ID
	if _, err := m.store.UpdateStatus(ctx, post.ID, queue.StatusComplete); err != nil {
		return err
	}

	// Association failures do not fail the group; the post is live.
	for _, op := range mediaOps {
		if op.RemoteMediaID == 0 {
			continue
		}
		if err := m.client.AttachMediaToPost(ctx, post.SiteID, op.RemoteMediaID, created.ID); err != nil {
			m.log.Warn("attach media to post",
				"media", op.RemoteMediaID, "post", created.ID, "error", err)
		}
	}

	if err := m.notifier.NotifySuccess(ctx, post, len(mediaOps)); err != nil {
		m.log.Error("notify success", "group", groupID, "error", err)
	}
	m.log.Info("group uploaded", "group", groupID, "post", created.ID, "media", len(mediaOps))
	return nil
}

// FinishEvents reconciles a background session that signalled completion:
// the group the session was carrying gets its finalization re-run. Both the
// originating process and a peer may call this for the same session; the
// second call finds nothing left to do.
func (m *Manager) FinishEvents(ctx context.Context, sessionID string) error {
	groupID, err := m.store.GroupForSession(ctx, sessionID)
	if errors.Is(err, queue.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// The originating process may have died after the upload result was
	// recorded but before the status flip. Settle those here so the group
	// can finalize.
	mediaOps, err := m.store.MediaOpsForGroup(ctx, groupID)
	if err != nil {
		return err
	}
	for _, op := range mediaOps {
		if op.SessionID != sessionID || op.Status != queue.StatusInProgress || op.RemoteMediaID == 0 {
			continue
		}
		if _, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusComplete); err != nil {
			return err
		}
		if err := m.media.RemoveMedia(op.FileName); err != nil {
			m.log.Warn("remove staged file", "file", op.FileName, "error", err)
		}
	}

	return m.finalizeGroup(ctx, groupID)
}

// MarkTaskComplete settles one finished upload task: every media operation
// enqueued under the session task is marked complete and its staged file
// removed, then the owning group is finalized. Operations already settled by
// the uploading process pass through the forward-only guard as no-ops.
func (m *Manager) MarkTaskComplete(ctx context.Context, sessionID string, taskID int64) error {
	ops, err := m.store.MediaOpsForTask(ctx, sessionID, taskID)
	if err != nil {
		return err
	}
	groups := make(map[string]bool)
	for _, op := range ops {
		if _, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusComplete); err != nil {
			return err
		}
		if err := m.media.RemoveMedia(op.FileName); err != nil {
			m.log.Warn("remove staged file", "file", op.FileName, "error", err)
		}
		groups[op.GroupID] = true
	}
	for groupID := range groups {
		if err := m.finalizeGroup(ctx, groupID); err != nil {
			return err
		}
	}
	return nil
}

// CancelGroup abandons a group: every non-terminal operation is marked
// errored and the staged files are removed.
func (m *Manager) CancelGroup(ctx context.Context, groupID string) error {
	mediaOps, err := m.store.MediaOpsForGroup(ctx, groupID)
	if err != nil {
		return err
	}
	for _, op := range mediaOps {
		if _, err := m.store.UpdateStatus(ctx, op.ID, queue.StatusError); err != nil {
			return err
		}
		if err := m.media.RemoveMedia(op.FileName); err != nil {
			m.log.Warn("remove staged file", "file", op.FileName, "error", err)
		}
	}
	post, err := m.store.PostOpForGroup(ctx, groupID)
	if errors.Is(err, queue.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := m.store.UpdateStatus(ctx, post.ID, queue.StatusError); err != nil {
		return err
	}
	m.log.Info("group cancelled", "group", groupID)
	return nil
}

// Run polls for groups with pending work until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	m.log.Info("upload worker started", "poll_interval", m.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			groups, err := m.store.PendingGroups(ctx)
			if err != nil {
				m.log.Error("scan pending groups", "error", err)
				continue
			}
			for _, groupID := range groups {
				if err := m.UploadGroup(ctx, groupID); err != nil {
					m.log.Error("upload group", "group", groupID, "error", err)
				}
			}
		}
	}
}

// Shutdown waits for in-flight group uploads to finish, up to ctx's
// deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("session: shutdown: %w", ctx.Err())
	case <-done:
		return nil
	}
}
