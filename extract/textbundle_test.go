package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/sharedrop/container"
)

func writeTextpack(t *testing.T, dir string, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, "share.textpack")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func bundleTestExtractor(t *testing.T) (*bundleExtractor, *container.Container) {
	t.Helper()
	store, err := container.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{}
	cfg.defaults()
	return &bundleExtractor{store: store, cfg: cfg}, store
}

func TestTextpackExtraction(t *testing.T) {
	ex, store := bundleTestExtractor(t)

	path := writeTextpack(t, t.TempDir(), map[string][]byte{
		"share.textbundle/info.json":      []byte(`{"version":2,"type":"net.daringfireball.markdown"}`),
		"share.textbundle/text.md":        []byte("# My Title\n\nBody with ![pic](assets/pic.png) inline."),
		"share.textbundle/assets/pic.png": pngBytes(t, 4, 4),
	})

	item, err := ex.Extract(context.Background(), Attachment{Type: TypeFileURL, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "My Title" {
		t.Errorf("title = %q, want My Title", item.Title)
	}
	if strings.Contains(item.ImportedText, "# My Title") {
		t.Errorf("heading left in body: %q", item.ImportedText)
	}
	if len(item.Images) != 1 {
		t.Fatalf("len(images) = %d, want 1", len(item.Images))
	}
	img := item.Images[0]
	if img.Insertion != EmbeddedInHTML {
		t.Errorf("referenced asset insertion = %v, want embedded", img.Insertion)
	}
	if strings.Contains(item.ImportedText, "assets/pic.png") {
		t.Errorf("asset reference not rewritten: %q", item.ImportedText)
	}
	if !strings.Contains(item.ImportedText, img.FileName) {
		t.Errorf("staged name %q missing from body: %q", img.FileName, item.ImportedText)
	}
	names, err := store.ListMedia()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Errorf("staged files = %v", names)
	}
}

func TestTextbundleDirWithUnreferencedAsset(t *testing.T) {
	ex, _ := bundleTestExtractor(t)

	dir := filepath.Join(t.TempDir(), "share.textbundle")
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "text.md"), []byte("Just prose."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "extra.png"), pngBytes(t, 4, 4), 0o644); err != nil {
		t.Fatal(err)
	}

	item, err := ex.Extract(context.Background(), Attachment{Type: TypeFileURL, Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if item.ImportedText != "Just prose." {
		t.Errorf("body = %q", item.ImportedText)
	}
	if len(item.Images) != 1 || item.Images[0].Insertion != RequiresInsertion {
		t.Fatalf("unreferenced asset not marked for insertion: %+v", item.Images)
	}
}

func TestBundleWithoutTextFails(t *testing.T) {
	ex, _ := bundleTestExtractor(t)

	path := writeTextpack(t, t.TempDir(), map[string][]byte{
		"share.textbundle/info.json": []byte(`{"version":2}`),
	})
	if _, err := ex.Extract(context.Background(), Attachment{Type: TypeFileURL, Path: path}); err == nil {
		t.Fatal("expected error for bundle without text file")
	}
}

func TestSplitLeadingHeading(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantRest  string
	}{
		{"# Title\n\nbody", "Title", "body"},
		{"no heading here", "", "no heading here"},
		{"## not a top heading\nbody", "", "## not a top heading\nbody"},
		{"\n# Padded\nbody", "Padded", "body"},
	}
	for _, tt := range tests {
		title, rest := splitLeadingHeading(tt.in)
		if title != tt.wantTitle || rest != tt.wantRest {
			t.Errorf("splitLeadingHeading(%q) = (%q, %q), want (%q, %q)",
				tt.in, title, rest, tt.wantTitle, tt.wantRest)
		}
	}
}
