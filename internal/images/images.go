package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image dimensions too large")
)

type codec struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	".png":  {png.Decode, png.DecodeConfig},
	".jpg":  {jpeg.Decode, jpeg.DecodeConfig},
	".jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	".webp": {webp.Decode, webp.DecodeConfig},
}

// LocalHost stores menu images on disk and serves them under /uploads/.
// Images wider than MaxWidth are scaled down and every upload is re-encoded
// as JPEG.
type LocalHost struct {
	Dir      string
	BaseURL  string
	MaxWidth uint
	// MaxDimension caps the declared width and height, checked from the
	// header before any pixels are decoded.
	MaxDimension int
}

func NewLocalHost(dir, baseURL string) (*LocalHost, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalHost{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxWidth: 800, MaxDimension: 8000}, nil
}

// Supported reports whether filename has an extension Upload accepts.
func Supported(filename string) bool {
	_, ok := codecs[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Upload decodes r, resizes it and stores it under a fresh UUID name. It
// returns the public URL of the stored file.
func (h *LocalHost) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	c, ok := codecs[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedFormat
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}

	cfg, err := c.decodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filename, err)
	}
	if h.MaxDimension > 0 && (cfg.Width > h.MaxDimension || cfg.Height > h.MaxDimension) {
		return "", fmt.Errorf("%s is %dx%d: %w", filename, cfg.Width, cfg.Height, ErrTooLarge)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if h.MaxWidth > 0 && uint(img.Bounds().Dx()) > h.MaxWidth {
		img = resize.Resize(h.MaxWidth, 0, img, resize.Lanczos3)
	}

	name := uuid.New().String() + ".jpg"
	out, err := os.Create(filepath.Join(h.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 80}); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	slog.Info("Image stored", "file", name, "original", filename)
	return h.BaseURL + "/uploads/" + name, nil
}

// Destroy removes the image whose public ID (file name without extension)
// is publicID. Removing an image that is already gone is not an error.
func (h *LocalHost) Destroy(_ context.Context, publicID string) error {
	if _, err := uuid.Parse(publicID); err != nil {
		return fmt.Errorf("invalid image id %q", publicID)
	}
	err := os.Remove(filepath.Join(h.Dir, publicID+".jpg"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicID extracts the public ID from an image URL: the last path segment
// without its extension. It returns "" for an empty URL.
func PublicID(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	base := imageURL
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
