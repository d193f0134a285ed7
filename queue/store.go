package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/sharedrop/dbopen"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("queue: not found")

// Store is the shared upload store. It is safe for concurrent use and for
// concurrent access from multiple processes through the same database file.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the upload store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: open store: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// OpenMemory opens an in-memory store for tests.
func OpenMemory(logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := dbopen.Open(":memory:", dbopen.WithSchema(schema), dbopen.WithoutPing())
	if err != nil {
		return nil, fmt.Errorf("queue: open memory store: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)
	return &Store{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

const insertPostSQL = `
	INSERT INTO upload_operations (
		id, group_id, site_id, is_media, status, session_id, task_id, created_at,
		post_title, post_content, post_status, post_type, post_tags, post_categories, remote_post_id
	) VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertMediaSQL = `
	INSERT INTO upload_operations (
		id, group_id, site_id, is_media, status, session_id, task_id, created_at,
		file_name, local_path, mime_type, remote_media_id, remote_url, width, height
	) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func postArgs(op *PostOperation) []any {
	return []any{
		op.ID, op.GroupID, op.SiteID, op.Status, op.SessionID, op.TaskID, op.Created.Unix(),
		op.Title, op.Content, op.PostStatus, op.PostType, op.Tags, op.Categories, op.RemotePostID,
	}
}

func mediaArgs(op *MediaOperation) []any {
	return []any{
		op.ID, op.GroupID, op.SiteID, op.Status, op.SessionID, op.TaskID, op.Created.Unix(),
		op.FileName, op.LocalPath, op.MimeType, op.RemoteMediaID, op.RemoteURL, op.Width, op.Height,
	}
}

// CreatePostOp inserts a post operation. A zero ID or Created is filled in.
func (s *Store) CreatePostOp(ctx context.Context, op *PostOperation) error {
	fillOp(&op.Operation, false)
	if _, err := dbopen.Exec(ctx, s.db, insertPostSQL, postArgs(op)...); err != nil {
		return fmt.Errorf("queue: create post op: %w", err)
	}
	return nil
}

// CreateMediaOp inserts a media operation. A zero ID or Created is filled in.
func (s *Store) CreateMediaOp(ctx context.Context, op *MediaOperation) error {
	fillOp(&op.Operation, true)
	if _, err := dbopen.Exec(ctx, s.db, insertMediaSQL, mediaArgs(op)...); err != nil {
		return fmt.Errorf("queue: create media op: %w", err)
	}
	return nil
}

// CreateGroup inserts a post operation and its sibling media operations in
// one transaction, so a half-written group is never visible to a concurrent
// worker scan.
func (s *Store) CreateGroup(ctx context.Context, post *PostOperation, media []*MediaOperation) error {
	fillOp(&post.Operation, false)
	for _, op := range media {
		fillOp(&op.Operation, true)
	}
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertPostSQL, postArgs(post)...); err != nil {
			return fmt.Errorf("insert post op: %w", err)
		}
		for _, op := range media {
			if _, err := tx.ExecContext(ctx, insertMediaSQL, mediaArgs(op)...); err != nil {
				return fmt.Errorf("insert media op %s: %w", op.FileName, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue: create group %s: %w", post.GroupID, err)
	}
	return nil
}

func fillOp(op *Operation, isMedia bool) {
	if op.ID == "" {
		op.ID = uuid.Must(uuid.NewV7()).String()
	}
	if op.Status == "" {
		op.Status = StatusPending
	}
	if op.Created.IsZero() {
		op.Created = time.Now().UTC()
	}
	op.IsMedia = isMedia
}

const postColumns = `id, group_id, site_id, status, session_id, task_id, created_at,
	post_title, post_content, post_status, post_type, post_tags, post_categories, remote_post_id`

const mediaColumns = `id, group_id, site_id, status, session_id, task_id, created_at,
	file_name, local_path, mime_type, remote_media_id, remote_url, width, height`

func scanPostOp(row interface{ Scan(...any) error }) (*PostOperation, error) {
	var op PostOperation
	var created int64
	err := row.Scan(
		&op.ID, &op.GroupID, &op.SiteID, &op.Status, &op.SessionID, &op.TaskID, &created,
		&op.Title, &op.Content, &op.PostStatus, &op.PostType, &op.Tags, &op.Categories, &op.RemotePostID)
	if err != nil {
		return nil, err
	}
	op.Created = time.Unix(created, 0).UTC()
	return &op, nil
}

func scanMediaOp(row interface{ Scan(...any) error }) (*MediaOperation, error) {
	var op MediaOperation
	var created int64
	err := row.Scan(
		&op.ID, &op.GroupID, &op.SiteID, &op.Status, &op.SessionID, &op.TaskID, &created,
		&op.FileName, &op.LocalPath, &op.MimeType, &op.RemoteMediaID, &op.RemoteURL, &op.Width, &op.Height)
	if err != nil {
		return nil, err
	}
	op.IsMedia = true
	op.Created = time.Unix(created, 0).UTC()
	return &op, nil
}

// PostOpForGroup returns the post operation of a group, or ErrNotFound.
func (s *Store) PostOpForGroup(ctx context.Context, groupID string) (*PostOperation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM upload_operations
		WHERE group_id = ? AND is_media = 0
		ORDER BY created_at LIMIT 1`, groupID)
	op, err := scanPostOp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: post op for group %s: %w", groupID, err)
	}
	return op, nil
}

// MediaOpsForGroup returns all media operations of a group in creation order.
func (s *Store) MediaOpsForGroup(ctx context.Context, groupID string) ([]*MediaOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM upload_operations
		WHERE group_id = ? AND is_media = 1
		ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("queue: media ops for group %s: %w", groupID, err)
	}
	defer rows.Close()
	var ops []*MediaOperation
	for rows.Next() {
		op, err := scanMediaOp(rows)
		if err != nil {
			return nil, fmt.Errorf("queue: scan media op: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MediaOpForFile returns the media operation with the given staged file name,
// or ErrNotFound.
func (s *Store) MediaOpForFile(ctx context.Context, fileName string) (*MediaOperation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mediaColumns+` FROM upload_operations
		WHERE file_name = ? AND is_media = 1
		ORDER BY created_at LIMIT 1`, fileName)
	op, err := scanMediaOp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: media op for file %s: %w", fileName, err)
	}
	return op, nil
}

// GroupForSession returns the group bound to a background session, or
// ErrNotFound if the session left no operations behind.
func (s *Store) GroupForSession(ctx context.Context, sessionID string) (string, error) {
	var groupID string
	err := s.db.QueryRowContext(ctx, `
		SELECT group_id FROM upload_operations
		WHERE session_id = ? LIMIT 1`, sessionID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("queue: group for session %s: %w", sessionID, err)
	}
	return groupID, nil
}

// MediaOpsForTask returns the media operations enqueued under a session task.
func (s *Store) MediaOpsForTask(ctx context.Context, sessionID string, taskID int64) ([]*MediaOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM upload_operations
		WHERE session_id = ? AND task_id = ? AND is_media = 1
		ORDER BY created_at, id`, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("queue: media ops for task %d: %w", taskID, err)
	}
	defer rows.Close()
	var ops []*MediaOperation
	for rows.Next() {
		op, err := scanMediaOp(rows)
		if err != nil {
			return nil, fmt.Errorf("queue: scan media op: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// PendingGroups returns the groups that still have a pending operation,
// oldest first.
func (s *Store) PendingGroups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM upload_operations
		WHERE status = ?
		GROUP BY group_id ORDER BY MIN(created_at)`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("queue: pending groups: %w", err)
	}
	defer rows.Close()
	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("queue: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateStatus moves an operation to next if the transition goes forward.
// It reports whether the row actually moved; a false result with a nil error
// means another process already advanced the operation at least as far, which
// callers treat as a benign duplicate.
func (s *Store) UpdateStatus(ctx context.Context, id string, next Status) (bool, error) {
	if !next.Valid() {
		return false, fmt.Errorf("queue: invalid status %q", next)
	}
	res, err := dbopen.Exec(ctx, s.db, `
		UPDATE upload_operations SET status = ?
		WHERE id = ?
		  AND (CASE status WHEN 'pending' THEN 0 WHEN 'inprogress' THEN 1 ELSE 2 END)
		    < (CASE ?      WHEN 'pending' THEN 0 WHEN 'inprogress' THEN 1 ELSE 2 END)`,
		next, id, next)
	if err != nil {
		return false, fmt.Errorf("queue: update status of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue: rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateTaskID tags an operation with the background session and task that
// will carry its upload.
func (s *Store) UpdateTaskID(ctx context.Context, id, sessionID string, taskID int64) error {
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE upload_operations SET session_id = ?, task_id = ? WHERE id = ?`,
		sessionID, taskID, id)
	if err != nil {
		return fmt.Errorf("queue: update task id of %s: %w", id, err)
	}
	return nil
}

// UpdatePostRemoteID records the server-assigned post ID.
func (s *Store) UpdatePostRemoteID(ctx context.Context, id string, remotePostID int64) error {
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE upload_operations SET remote_post_id = ? WHERE id = ? AND is_media = 0`,
		remotePostID, id)
	if err != nil {
		return fmt.Errorf("queue: update remote post id of %s: %w", id, err)
	}
	return nil
}

// UpdatePostContent replaces the stored post body, typically after local
// image references have been rewritten to their remote URLs.
func (s *Store) UpdatePostContent(ctx context.Context, id, content string) error {
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE upload_operations SET post_content = ? WHERE id = ? AND is_media = 0`,
		content, id)
	if err != nil {
		return fmt.Errorf("queue: update post content of %s: %w", id, err)
	}
	return nil
}

// UpdateMediaResult records the remote identity of an uploaded media file.
func (s *Store) UpdateMediaResult(ctx context.Context, id string, remoteMediaID int64, remoteURL string, width, height int64) error {
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE upload_operations
		SET remote_media_id = ?, remote_url = ?, width = ?, height = ?
		WHERE id = ? AND is_media = 1`,
		remoteMediaID, remoteURL, width, height, id)
	if err != nil {
		return fmt.Errorf("queue: update media result of %s: %w", id, err)
	}
	return nil
}

// SaveNotification persists a completion notification for the host app.
func (s *Store) SaveNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.Must(uuid.NewV7()).String()
	}
	if n.Created.IsZero() {
		n.Created = time.Now().UTC()
	}
	fromExt := 0
	if n.FromExtension {
		fromExt = 1
	}
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO notifications (
			id, category, post_op_id, remote_post_id, site_id, media_count,
			post_status, from_extension, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Category, n.PostOpID, n.RemotePostID, n.SiteID, n.MediaCount,
		n.PostStatus, fromExt, n.Created.Unix())
	if err != nil {
		return fmt.Errorf("queue: save notification: %w", err)
	}
	return nil
}

// Notifications returns all stored notifications, newest first.
func (s *Store) Notifications(ctx context.Context) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, post_op_id, remote_post_id, site_id, media_count,
		       post_status, from_extension, created_at
		FROM notifications ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("queue: notifications: %w", err)
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		var n Notification
		var fromExt int
		var created int64
		if err := rows.Scan(&n.ID, &n.Category, &n.PostOpID, &n.RemotePostID, &n.SiteID,
			&n.MediaCount, &n.PostStatus, &fromExt, &created); err != nil {
			return nil, fmt.Errorf("queue: scan notification: %w", err)
		}
		n.FromExtension = fromExt != 0
		n.Created = time.Unix(created, 0).UTC()
		out = append(out, &n)
	}
	return out, rows.Err()
}
