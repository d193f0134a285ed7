// Package container manages the app-group shared directory used by both the
// sharedrop daemon and the host application. Media files staged for upload
// live in a Media subdirectory and are removed once uploaded or cancelled.
//
// The container is an explicit handle passed into every component that needs
// the shared filesystem; there is no process-wide singleton.
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// mediaSubdir is the staging directory for media files pending upload.
const mediaSubdir = "Media"

// Container is a handle on the shared app-group directory.
type Container struct {
	root string
}

// New creates (if needed) and returns a container rooted at dir.
func New(dir string) (*Container, error) {
	if dir == "" {
		return nil, fmt.Errorf("container: empty root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("container: mkdir root: %w", err)
	}
	return &Container{root: dir}, nil
}

// Root returns the container root directory.
func (c *Container) Root() string { return c.root }

// MediaDir returns the media staging directory, creating it on first use.
func (c *Container) MediaDir() (string, error) {
	dir := filepath.Join(c.root, mediaSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("container: mkdir media: %w", err)
	}
	return dir, nil
}

// NewMediaFileName returns a fresh staged-media file name of the form
// image_<uuidv7>.<ext>. ext may be given with or without a leading dot.
func (c *Container) NewMediaFileName(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("image_%s.%s", uuid.Must(uuid.NewV7()).String(), ext)
}

// SaveMedia writes data under name in the media directory and returns the
// absolute path of the written file.
func (c *Container) SaveMedia(name string, data []byte) (string, error) {
	dir, err := c.MediaDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("container: write media %s: %w", name, err)
	}
	return path, nil
}

// MediaPath returns the absolute path a staged media file would have.
// It does not check that the file exists.
func (c *Container) MediaPath(name string) string {
	return filepath.Join(c.root, mediaSubdir, filepath.Base(name))
}

// RemoveMedia deletes a staged media file. Removing a file that is already
// gone is not an error; completion callbacks may run in both processes.
func (c *Container) RemoveMedia(name string) error {
	err := os.Remove(c.MediaPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("container: remove media %s: %w", name, err)
	}
	return nil
}

// ListMedia returns the names of all staged media files.
func (c *Container) ListMedia() ([]string, error) {
	dir, err := c.MediaDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("container: read media dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
