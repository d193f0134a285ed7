package extract

import (
	"strings"
	"testing"
)

func TestMergePrecedence(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string // substring the body must contain
		not  string // substring the body must not contain
	}{
		{
			name: "imported text wins over everything",
			item: Item{
				ImportedText: "imported body",
				SelectedText: "selection",
				Description:  "description",
				Title:        "title",
				URL:          "https://example.com",
			},
			want: "imported body",
			not:  "blockquote",
		},
		{
			name: "selection beats description",
			item: Item{
				SelectedText: "selection",
				Description:  "description",
				URL:          "https://example.com",
			},
			want: "<blockquote><p>selection</p></blockquote>",
			not:  "description",
		},
		{
			name: "description beats title",
			item: Item{Description: "description", Title: "title"},
			want: "<p>description</p>",
		},
		{
			name: "title beats bare link",
			item: Item{Title: "title", URL: "https://example.com"},
			want: "<p>title</p>",
		},
		{
			name: "bare link last",
			item: Item{URL: "https://example.com"},
			want: "<p>https://example.com</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := mergeItems([]*Item{&tt.item})
			if !strings.Contains(share.Content, tt.want) {
				t.Errorf("content = %q, want substring %q", share.Content, tt.want)
			}
			if tt.not != "" && strings.Contains(share.Content, tt.not) {
				t.Errorf("content = %q, must not contain %q", share.Content, tt.not)
			}
		})
	}
}

func TestMergeSelectionWithLinkGetsReadOn(t *testing.T) {
	share := mergeItems([]*Item{{
		SelectedText: "quoted",
		URL:          "https://example.com/article",
	}})
	if !strings.Contains(share.Content, `<a href="https://example.com/article">Read on</a>`) {
		t.Fatalf("content = %q", share.Content)
	}
}

func TestMergeJoinsTitlesAndUnionsImages(t *testing.T) {
	share := mergeItems([]*Item{
		{Title: "first", Images: []Image{{FileName: "a.jpg"}}},
		{Title: "second", Images: []Image{{FileName: "b.jpg"}}},
		{URL: "https://one.example.com"},
		{URL: "https://two.example.com"},
	})
	if share.Title != "first second" {
		t.Errorf("title = %q", share.Title)
	}
	if len(share.Images) != 2 {
		t.Errorf("len(images) = %d, want 2", len(share.Images))
	}
	// First URL wins.
	if share.URL != "https://one.example.com" {
		t.Errorf("url = %q", share.URL)
	}
}

func TestMergeEscapesHTMLInProse(t *testing.T) {
	share := mergeItems([]*Item{{SelectedText: `<script>alert("x")</script>`}})
	if strings.Contains(share.Content, "<script>") {
		t.Fatalf("unescaped markup in body: %s", share.Content)
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := renderMarkdown("# Heading\n\nSome *emphasis* and ![pic](image_abc.jpg).")
	if !strings.Contains(got, "<h1") || !strings.Contains(got, "<em>emphasis</em>") {
		t.Fatalf("markdown not rendered: %s", got)
	}
	if !strings.Contains(got, `src="image_abc.jpg"`) {
		t.Fatalf("image reference lost: %s", got)
	}
}
