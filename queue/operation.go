// Package queue persists upload operations in the shared SQLite store that
// both the sharedrop daemon and the host application read and write.
package queue

import "time"

// Upload operation statuses. An operation only ever moves forward:
// pending → inprogress → {complete, error}.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inprogress"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Status is the lifecycle state of an upload operation.
type Status string

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusError:
		return true
	}
	return false
}

// rank orders statuses along the forward-only lifecycle. Complete and error
// are both terminal.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusComplete, StatusError:
		return 2
	}
	return -1
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool { return s == StatusComplete || s == StatusError }

// CanTransition reports whether moving from s to next respects the
// forward-only lifecycle. Transitions never go backward, so a redundant
// completion attempt from a second process is rejected rather than replayed.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

// Operation is the common part of a persisted upload work item. A group
// (GroupID) binds one post operation to its zero-or-more sibling media
// operations; the post is never uploaded before all siblings complete.
type Operation struct {
	ID        string
	GroupID   string
	SiteID    int64
	IsMedia   bool
	Status    Status
	SessionID string // background session the operation is tagged with
	TaskID    int64  // upload task within the session, 0 until enqueued
	Created   time.Time
}

// PostOperation is an upload operation for a blog post.
type PostOperation struct {
	Operation
	Title        string
	Content      string // HTML body; local image refs until the group rewrite
	PostStatus   string // e.g. draft, publish
	PostType     string
	Tags         string
	Categories   string
	RemotePostID int64 // server-assigned after upload
}

// MediaOperation is an upload operation for a single staged media file.
type MediaOperation struct {
	Operation
	FileName      string
	LocalPath     string
	MimeType      string
	RemoteMediaID int64
	RemoteURL     string
	Width         int64
	Height        int64
}

// Notification categories for completion notifications.
const (
	NotifySuccess = "success"
	NotifyFailure = "failure"
)

// Notification is a locally-posted completion record for a share. The host
// app routes a tap on a success notification to the editor for RemotePostID.
type Notification struct {
	ID            string
	Category      string // NotifySuccess or NotifyFailure
	PostOpID      string
	RemotePostID  int64
	SiteID        int64
	MediaCount    int
	PostStatus    string
	FromExtension bool
	Created       time.Time
}
