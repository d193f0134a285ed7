package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/sharedrop/container"
)

// bundleExtractor handles shared text bundles: a .textbundle directory or a
// zipped .textpack, both holding a text.* file, an info.json, and an assets
// directory. The text is imported as markdown; asset images are staged into
// the media directory and the markdown references are rewritten to the
// staged names, so they survive conversion already embedded in the body.
type bundleExtractor struct {
	store *container.Container
	cfg   Config
}

func (e *bundleExtractor) CanHandle(att Attachment) bool {
	if att.Type != TypeFileURL {
		return false
	}
	switch strings.ToLower(filepath.Ext(att.Path)) {
	case ".textbundle", ".textpack":
		return true
	}
	return false
}

func (e *bundleExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	var (
		files map[string][]byte
		err   error
	)
	if strings.EqualFold(filepath.Ext(att.Path), ".textpack") {
		files, err = readPack(att.Path)
	} else {
		files, err = readBundleDir(att.Path)
	}
	if err != nil {
		return nil, err
	}

	text, ok := bundleText(files)
	if !ok {
		return nil, fmt.Errorf("extract: bundle %s has no text file", filepath.Base(att.Path))
	}
	if data, ok := files["info.json"]; ok {
		var info bundleInfo
		if err := json.Unmarshal(data, &info); err == nil {
			e.cfg.Logger.Debug("text bundle",
				"type", info.Type, "version", info.Version)
		}
	}

	item := &Item{}
	item.Title, text = splitLeadingHeading(text)

	for name, data := range files {
		if !strings.HasPrefix(name, "assets/") {
			continue
		}
		ext := filepath.Ext(name)
		if !imageExts[strings.ToLower(ext)] {
			continue
		}
		img, err := stageImage(e.store, e.cfg, data, ext)
		if err != nil {
			e.cfg.Logger.Warn("stage bundle asset",
				"bundle", filepath.Base(att.Path), "asset", name, "error", err)
			continue
		}
		if strings.Contains(text, name) {
			text = strings.ReplaceAll(text, name, img.FileName)
			img.Insertion = EmbeddedInHTML
		} else {
			img.Insertion = RequiresInsertion
		}
		item.Images = append(item.Images, img)
	}

	item.ImportedText = strings.TrimSpace(text)
	return item, nil
}

// bundleInfo is the info.json sidecar. Only the declared content type is
// interesting, and even that only for logging.
type bundleInfo struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
}

func readPack(p string) (map[string][]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("extract: read textpack: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: open textpack: %w", err)
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract: open %s in textpack: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract: read %s in textpack: %w", f.Name, err)
		}
		files[f.Name] = content
	}
	return stripCommonDir(files), nil
}

func readBundleDir(p string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	root := os.DirFS(p)
	err := fs.WalkDir(root, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(root, name)
		if err != nil {
			return err
		}
		files[name] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract: read textbundle: %w", err)
	}
	return files, nil
}

// stripCommonDir removes the single top-level directory a textpack zip
// usually wraps its contents in.
func stripCommonDir(files map[string][]byte) map[string][]byte {
	var prefix string
	for name := range files {
		dir, _, ok := strings.Cut(name, "/")
		if !ok {
			return files
		}
		if prefix == "" {
			prefix = dir
		} else if dir != prefix {
			return files
		}
	}
	out := make(map[string][]byte, len(files))
	for name, data := range files {
		out[strings.TrimPrefix(name, prefix+"/")] = data
	}
	return out
}

func bundleText(files map[string][]byte) (string, bool) {
	for _, name := range []string{"text.md", "text.markdown", "text.txt"} {
		if data, ok := files[name]; ok {
			return string(data), true
		}
	}
	for name, data := range files {
		if strings.HasPrefix(path.Base(name), "text.") {
			return string(data), true
		}
	}
	return "", false
}

// splitLeadingHeading lifts a leading "# Title" line out of markdown text so
// it becomes the post title instead of a duplicated body heading.
func splitLeadingHeading(text string) (title, rest string) {
	trimmed := strings.TrimLeft(text, "\n")
	first, remainder, _ := strings.Cut(trimmed, "\n")
	if h, ok := strings.CutPrefix(first, "# "); ok {
		return strings.TrimSpace(h), strings.TrimLeft(remainder, "\n")
	}
	return "", text
}
