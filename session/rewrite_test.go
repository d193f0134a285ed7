package session

import (
	"strings"
	"testing"

	"github.com/hazyhaar/sharedrop/queue"
)

func mediaOp(fileName, remoteURL string, w, h int64) *queue.MediaOperation {
	return &queue.MediaOperation{
		Operation: queue.Operation{Status: queue.StatusComplete},
		FileName:  fileName,
		RemoteURL: remoteURL,
		Width:     w,
		Height:    h,
	}
}

func TestRewriteContent(t *testing.T) {
	media := []*queue.MediaOperation{
		mediaOp("image_a.jpg", "https://cdn.example.com/a.jpg", 640, 480),
		mediaOp("image_b.jpg", "https://cdn.example.com/b.jpg", 0, 0),
	}
	in := `<p>hi</p><img src="image_a.jpg"><img src="image_b.jpg"><img src="other.png">`

	out, err := RewriteContent(in, media)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`src="https://cdn.example.com/a.jpg"`,
		`src="https://cdn.example.com/b.jpg"`,
		`width="640"`,
		`height="480"`,
		`src="other.png"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "image_a.jpg") || strings.Contains(out, "image_b.jpg") {
		t.Errorf("local file names survived rewrite:\n%s", out)
	}
}

func TestRewriteContentIdempotent(t *testing.T) {
	media := []*queue.MediaOperation{
		mediaOp("image_a.jpg", "https://cdn.example.com/a.jpg", 640, 480),
	}
	in := `<p>x</p><img src="image_a.jpg">`

	once, err := RewriteContent(in, media)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := RewriteContent(once, media)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Fatalf("rewrite not idempotent:\nonce:  %s\ntwice: %s", once, twice)
	}
}

func TestRewriteContentSkipsUnresolvedMedia(t *testing.T) {
	media := []*queue.MediaOperation{mediaOp("image_a.jpg", "", 0, 0)}
	in := `<img src="image_a.jpg">`

	out, err := RewriteContent(in, media)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `src="image_a.jpg"`) {
		t.Fatalf("unresolved media was rewritten: %s", out)
	}
}

func TestMatchesFileName(t *testing.T) {
	tests := []struct {
		ref, file string
		want      bool
	}{
		{"image_abc.jpg", "image_abc.jpg", true},
		{"IMAGE_ABC.JPG", "image_abc.jpg", true},
		{"https://cdn.example.com/2026/image_abc.jpg", "image_abc.jpg", true},
		// Server-side rename keeps the stem.
		{"image_abc-1.jpg", "image_abc.jpg", true},
		{"image_abc.jpeg", "image_abc.jpg", true},
		// A longer stem sharing a prefix is a different file.
		{"image_abc_final.jpg", "image_abc.jpg", false},
		{"other.jpg", "image_abc.jpg", false},
		{"", "image_abc.jpg", false},
		{"image_abc.jpg", "", false},
	}
	for _, tt := range tests {
		if got := MatchesFileName(tt.ref, tt.file); got != tt.want {
			t.Errorf("MatchesFileName(%q, %q) = %v, want %v", tt.ref, tt.file, got, tt.want)
		}
	}
}
