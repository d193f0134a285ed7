package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/hazyhaar/sharedrop/container"
)

// imageExts are the image file extensions accepted from file-url shares.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".heic": true,
}

// imageExtractor stages shared images into the container's media directory,
// downsampling anything larger than the configured maximum dimension.
type imageExtractor struct {
	store *container.Container
	cfg   Config
}

func (e *imageExtractor) CanHandle(att Attachment) bool {
	switch att.Type {
	case TypeImage:
		return true
	case TypeFileURL:
		return imageExts[strings.ToLower(filepath.Ext(att.Path))]
	}
	return false
}

func (e *imageExtractor) Extract(_ context.Context, att Attachment) (*Item, error) {
	data := att.Data
	ext := ""
	if att.Path != "" {
		var err error
		data, err = os.ReadFile(att.Path)
		if err != nil {
			return nil, fmt.Errorf("extract: read image file: %w", err)
		}
		ext = filepath.Ext(att.Path)
	}
	img, err := stageImage(e.store, e.cfg, data, ext)
	if err != nil {
		return nil, err
	}
	img.Insertion = RequiresInsertion
	return &Item{Images: []Image{img}}, nil
}

// stageImage decodes, downsamples, and writes one image into the media
// directory. HEIC payloads cannot be decoded here and are rejected; other
// non-web formats are re-encoded as JPEG.
func stageImage(store *container.Container, cfg Config, data []byte, ext string) (Image, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("extract: decode image (%s): %w", ext, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if max := cfg.MaxImageDimension; w > max || h > max {
		w, h = fitWithin(w, h, max)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		src = dst
	}

	var (
		buf  bytes.Buffer
		mime string
	)
	switch format {
	case "png":
		mime = "image/png"
		ext = "png"
		err = png.Encode(&buf, src)
	case "gif":
		mime = "image/gif"
		ext = "gif"
		err = gif.Encode(&buf, src, nil)
	default:
		mime = "image/jpeg"
		ext = "jpg"
		err = jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return Image{}, fmt.Errorf("extract: encode image: %w", err)
	}

	name := store.NewMediaFileName(ext)
	path, err := store.SaveMedia(name, buf.Bytes())
	if err != nil {
		return Image{}, fmt.Errorf("extract: stage image: %w", err)
	}
	return Image{
		FileName:  name,
		LocalPath: path,
		MimeType:  mime,
		Width:     w,
		Height:    h,
	}, nil
}

// fitWithin scales w x h down so the longest side equals max, preserving
// aspect ratio.
func fitWithin(w, h, max int) (int, int) {
	if w >= h {
		return max, max1(int(float64(h) * float64(max) / float64(w)))
	}
	return max1(int(float64(w) * float64(max) / float64(h))), max
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
