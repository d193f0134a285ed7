package queue

import (
	"context"
	"errors"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusComplete, true},
		{StatusPending, StatusError, true},
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusError, true},
		{StatusInProgress, StatusPending, false},
		{StatusComplete, StatusError, false},
		{StatusError, StatusComplete, false},
		{StatusComplete, StatusInProgress, false},
		{StatusComplete, StatusComplete, false},
		{Status("bogus"), StatusComplete, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateAndFetchGroup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	post := &PostOperation{
		Operation: Operation{GroupID: "g1", SiteID: 42},
		Title:     "Hello",
		Content:   "<p>body</p>",
	}
	if err := s.CreatePostOp(ctx, post); err != nil {
		t.Fatal(err)
	}
	if post.ID == "" || post.Status != StatusPending {
		t.Fatalf("post op not filled: %+v", post.Operation)
	}

	for _, name := range []string{"image_a.jpg", "image_b.jpg"} {
		op := &MediaOperation{
			Operation: Operation{GroupID: "g1", SiteID: 42},
			FileName:  name,
			MimeType:  "image/jpeg",
		}
		if err := s.CreateMediaOp(ctx, op); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.PostOpForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Hello" || got.SiteID != 42 {
		t.Fatalf("PostOpForGroup = %+v", got)
	}

	media, err := s.MediaOpsForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 2 {
		t.Fatalf("len(media) = %d, want 2", len(media))
	}

	if _, err := s.PostOpForGroup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing group err = %v, want ErrNotFound", err)
	}
}

func TestCreateGroup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	post := &PostOperation{Operation: Operation{GroupID: "g1", SiteID: 42}, Title: "Hello"}
	media := []*MediaOperation{
		{Operation: Operation{GroupID: "g1", SiteID: 42}, FileName: "image_a.jpg"},
		{Operation: Operation{GroupID: "g1", SiteID: 42}, FileName: "image_b.jpg"},
	}
	if err := s.CreateGroup(ctx, post, media); err != nil {
		t.Fatal(err)
	}

	got, err := s.PostOpForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Hello" {
		t.Fatalf("PostOpForGroup = %+v", got)
	}
	ops, err := s.MediaOpsForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(media) = %d, want 2", len(ops))
	}
}

func TestCreateGroupRollsBackOnFailure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	post := &PostOperation{Operation: Operation{GroupID: "g1", SiteID: 42}}
	// A duplicate primary key on the second media op aborts the insert.
	media := []*MediaOperation{
		{Operation: Operation{ID: "dup", GroupID: "g1", SiteID: 42}, FileName: "image_a.jpg"},
		{Operation: Operation{ID: "dup", GroupID: "g1", SiteID: 42}, FileName: "image_b.jpg"},
	}
	if err := s.CreateGroup(ctx, post, media); err == nil {
		t.Fatal("expected constraint error")
	}

	// Nothing from the group survives, the post included.
	if _, err := s.PostOpForGroup(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("post op after rollback: err = %v, want ErrNotFound", err)
	}
	ops, err := s.MediaOpsForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Fatalf("media ops after rollback: %+v", ops)
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	op := &PostOperation{Operation: Operation{GroupID: "g1", SiteID: 1}}
	if err := s.CreatePostOp(ctx, op); err != nil {
		t.Fatal(err)
	}

	moved, err := s.UpdateStatus(ctx, op.ID, StatusInProgress)
	if err != nil || !moved {
		t.Fatalf("pending -> inprogress: moved=%v err=%v", moved, err)
	}
	moved, err = s.UpdateStatus(ctx, op.ID, StatusComplete)
	if err != nil || !moved {
		t.Fatalf("inprogress -> complete: moved=%v err=%v", moved, err)
	}

	// A second completion attempt, as happens when both processes observe
	// the same task finishing, is a no-op.
	moved, err = s.UpdateStatus(ctx, op.ID, StatusComplete)
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Error("duplicate completion moved the row")
	}

	// Terminal states never roll back.
	moved, err = s.UpdateStatus(ctx, op.ID, StatusError)
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Error("complete -> error moved the row")
	}
	got, err := s.PostOpForGroup(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusComplete {
		t.Fatalf("status = %s, want complete", got.Status)
	}
}

func TestSessionAndTaskLookups(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	op := &MediaOperation{
		Operation: Operation{GroupID: "g1", SiteID: 1},
		FileName:  "image_a.jpg",
	}
	if err := s.CreateMediaOp(ctx, op); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTaskID(ctx, op.ID, "sess-1", 7); err != nil {
		t.Fatal(err)
	}

	group, err := s.GroupForSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if group != "g1" {
		t.Fatalf("GroupForSession = %q, want g1", group)
	}
	if _, err := s.GroupForSession(ctx, "sess-none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session err = %v, want ErrNotFound", err)
	}

	ops, err := s.MediaOpsForTask(ctx, "sess-1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].FileName != "image_a.jpg" {
		t.Fatalf("MediaOpsForTask = %+v", ops)
	}

	byFile, err := s.MediaOpForFile(ctx, "image_a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if byFile.ID != op.ID {
		t.Fatalf("MediaOpForFile id = %s, want %s", byFile.ID, op.ID)
	}
}

func TestMediaResultWriteBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	op := &MediaOperation{
		Operation: Operation{GroupID: "g1", SiteID: 1},
		FileName:  "image_a.jpg",
	}
	if err := s.CreateMediaOp(ctx, op); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateMediaResult(ctx, op.ID, 99, "https://cdn.example.com/a.jpg", 640, 480); err != nil {
		t.Fatal(err)
	}

	got, err := s.MediaOpForFile(ctx, "image_a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.RemoteMediaID != 99 || got.RemoteURL != "https://cdn.example.com/a.jpg" {
		t.Fatalf("write-back not persisted: %+v", got)
	}
	if got.Width != 640 || got.Height != 480 {
		t.Fatalf("dimensions = %dx%d, want 640x480", got.Width, got.Height)
	}
}

func TestPendingGroups(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, g := range []string{"g1", "g2"} {
		op := &PostOperation{Operation: Operation{GroupID: g, SiteID: 1}}
		if err := s.CreatePostOp(ctx, op); err != nil {
			t.Fatal(err)
		}
		if g == "g2" {
			if _, err := s.UpdateStatus(ctx, op.ID, StatusComplete); err != nil {
				t.Fatal(err)
			}
		}
	}

	groups, err := s.PendingGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0] != "g1" {
		t.Fatalf("PendingGroups = %v, want [g1]", groups)
	}
}

func TestNotifications(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n := &Notification{
		Category:      NotifySuccess,
		PostOpID:      "op-1",
		RemotePostID:  1234,
		SiteID:        42,
		MediaCount:    3,
		PostStatus:    "draft",
		FromExtension: true,
	}
	if err := s.SaveNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	got, err := s.Notifications(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len(notifications) = %d, want 1", len(got))
	}
	if got[0].Category != NotifySuccess || got[0].MediaCount != 3 || !got[0].FromExtension {
		t.Fatalf("notification = %+v", got[0])
	}
}
