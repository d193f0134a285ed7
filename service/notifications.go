package service

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/sharedrop/queue"
)

// StoreNotifier records group outcomes as notification rows in the shared
// store, where the host application picks them up and surfaces them to the
// user.
type StoreNotifier struct {
	store *queue.Store
	log   *slog.Logger
}

// NewStoreNotifier returns a notifier persisting into store.
func NewStoreNotifier(store *queue.Store, logger *slog.Logger) *StoreNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreNotifier{store: store, log: logger}
}

func (n *StoreNotifier) NotifySuccess(ctx context.Context, post *queue.PostOperation, mediaCount int) error {
	n.log.Info("share uploaded",
		"group", post.GroupID, "post", post.RemotePostID, "media", mediaCount)
	return n.store.SaveNotification(ctx, &queue.Notification{
		Category:      queue.NotifySuccess,
		PostOpID:      post.ID,
		RemotePostID:  post.RemotePostID,
		SiteID:        post.SiteID,
		MediaCount:    mediaCount,
		PostStatus:    post.PostStatus,
		FromExtension: true,
	})
}

func (n *StoreNotifier) NotifyFailure(ctx context.Context, post *queue.PostOperation, mediaCount int) error {
	n.log.Warn("share failed",
		"group", post.GroupID, "media", mediaCount)
	return n.store.SaveNotification(ctx, &queue.Notification{
		Category:      queue.NotifyFailure,
		PostOpID:      post.ID,
		SiteID:        post.SiteID,
		MediaCount:    mediaCount,
		PostStatus:    post.PostStatus,
		FromExtension: true,
	})
}
