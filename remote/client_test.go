package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image_a.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/42/media/new" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		fhs := r.MultipartForm.File["media[]"]
		if len(fhs) != 1 || fhs[0].Filename != "image_a.jpg" {
			t.Errorf("files = %+v", fhs)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"media": []map[string]any{
				{"ID": 9, "URL": "https://cdn.example.com/a.jpg", "file": "a.jpg", "width": 640, "height": 480},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	media, err := c.UploadMedia(context.Background(), 42, []MediaFile{
		{Name: "image_a.jpg", MimeType: "image/jpeg", Path: path},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 1 || media[0].ID != 9 || media[0].URL != "https://cdn.example.com/a.jpg" {
		t.Fatalf("media = %+v", media)
	}
}

func TestUploadMediaNoFiles(t *testing.T) {
	c := NewClient("http://unused.invalid", "tok", nil)
	media, err := c.UploadMedia(context.Background(), 1, nil)
	if err != nil || media != nil {
		t.Fatalf("empty upload: media=%v err=%v", media, err)
	}
}

func TestCreatePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/42/posts/new" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var params PostParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatal(err)
		}
		if params.Title != "Hello" || params.Status != "draft" {
			t.Errorf("params = %+v", params)
		}
		json.NewEncoder(w).Encode(Post{ID: 1234, URL: "https://blog.example.com/?p=1234", Status: "draft"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	post, err := c.CreatePost(context.Background(), 42, PostParams{
		Title: "Hello", Content: "<p>body</p>", Status: "draft",
	})
	if err != nil {
		t.Fatal(err)
	}
	if post.ID != 1234 {
		t.Fatalf("post = %+v", post)
	}
}

func TestCreatePostServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	if _, err := c.CreatePost(context.Background(), 42, PostParams{Title: "x"}); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestAttachMediaToPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/42/media/9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["parent_id"] != 1234 {
			t.Errorf("parent_id = %d", body["parent_id"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	if err := c.AttachMediaToPost(context.Background(), 42, 9, 1234); err != nil {
		t.Fatal(err)
	}
}
