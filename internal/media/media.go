// Package media reads user-selected images and encodes them for inline transport.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// Encoded is an image in inline form: a MIME type and standard base64 data.
type Encoded struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// DataURL returns the image as a data: URI.
func (e Encoded) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + e.Data
}

// Read loads one image from r. declared is the MIME type reported by the
// client; it is replaced by the sniffed type when empty or generic.
// limit <= 0 disables the size check.
func Read(r io.Reader, name, declared string, limit int64) (domain.Image, error) {
	var buf bytes.Buffer
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	if _, err := io.Copy(&buf, src); err != nil {
		return domain.Image{}, fmt.Errorf("read image %q: %w", name, err)
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return domain.Image{}, fmt.Errorf("%w: %q is larger than %d bytes", ErrImageTooLarge, name, limit)
	}

	img := domain.Image{Name: name, Data: buf.Bytes()}
	mime, err := PickMIME(declared, img.Data)
	if err != nil {
		return domain.Image{}, fmt.Errorf("image %q: %w", name, err)
	}
	img.MIMEType = mime
	return img, nil
}

// Encode converts one image to its inline base64 representation.
func Encode(img domain.Image) (Encoded, error) {
	if len(img.Data) == 0 {
		return Encoded{}, ErrEmptyImage
	}
	mime, err := PickMIME(img.MIMEType, img.Data)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{
		MIMEType: mime,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}, nil
}

// EncodeAll encodes up to domain.MaxImages images concurrently.
// Images past the limit are dropped; output order matches input order.
func EncodeAll(ctx context.Context, imgs []domain.Image) ([]Encoded, error) {
	imgs = Truncate(imgs)
	out := make([]Encoded, len(imgs))

	g, ctx := errgroup.WithContext(ctx)
	for i, img := range imgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := Encode(img)
			if err != nil {
				return fmt.Errorf("encode image %d (%s): %w", i+1, img.Name, err)
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Truncate keeps the first domain.MaxImages images in selection order.
func Truncate(imgs []domain.Image) []domain.Image {
	if len(imgs) > domain.MaxImages {
		return imgs[:domain.MaxImages]
	}
	return imgs
}

// Decode parses standard or URL-safe base64, optionally wrapped in a data: URI.
// The MIME type from the URI prefix is returned when present.
func Decode(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hint string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hint = meta[:semi]
			} else {
				hint = meta
			}
			s = s[idx+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hint, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return b, hint, nil
}

// PickMIME returns the declared type when it names an image, otherwise the
// type sniffed from data. Non-image content is rejected.
func PickMIME(declared string, data []byte) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	sniffed := sniff(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, sniffed)
	}
	return sniffed, nil
}

func sniff(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	// http.DetectContentType covers gif, webp, bmp and the non-image types.
	ct := http.DetectContentType(b)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
