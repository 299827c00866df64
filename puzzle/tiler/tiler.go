// Package tiler slices a source image into the base64-encoded piece images
// served by the play and join responses. Piece i is the tile cut from row
// i/cols, column i%cols of the source, scaled to a fixed square edge so that
// payload size stays bounded regardless of the source resolution.
package tiler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

var (
	ErrFetchFailed  = errors.New("failed to fetch source image")
	ErrDecodeFailed = errors.New("failed to decode source image")
	ErrImageTooWide = errors.New("source image smaller than grid")
)

const (
	// Edge length of an encoded tile in pixels.
	defaultTileEdge = 128

	// Refuse to download images larger than this.
	maxImageBytes = 32 << 20

	jpegQuality = 80
)

// Tiler fetches images over HTTP and cuts them into puzzle tiles.
type Tiler struct {
	client *http.Client
	edge   int
}

// New creates a tiler with a bounded-timeout HTTP client and the default
// tile edge.
func New() *Tiler {
	return &Tiler{
		client: &http.Client{Timeout: 30 * time.Second},
		edge:   defaultTileEdge,
	}
}

// NewWithClient creates a tiler using the provided HTTP client, used by
// tests to avoid real network access.
func NewWithClient(client *http.Client) *Tiler {
	return &Tiler{
		client: client,
		edge:   defaultTileEdge,
	}
}

// Slice downloads the image at imageURL and cuts it into cols*cols tiles.
// The returned slice is indexed by piece id; each entry is a base64-encoded
// JPEG of that piece.
func (t *Tiler) Slice(ctx context.Context, imageURL string, cols int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	img, _, err := image.Decode(http.MaxBytesReader(nil, resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	return SliceImage(img, cols, t.edge)
}

// SliceImage cuts an already-decoded image into cols*cols tiles of edge*edge
// pixels each, returning base64-encoded JPEGs indexed by piece id.
func SliceImage(img image.Image, cols, edge int) ([]string, error) {
	if cols < 2 {
		return nil, fmt.Errorf("invalid column count %d", cols)
	}

	bounds := img.Bounds()
	tileW := bounds.Dx() / cols
	tileH := bounds.Dy() / cols
	if tileW == 0 || tileH == 0 {
		return nil, fmt.Errorf("%w: %dx%d into %d columns", ErrImageTooWide, bounds.Dx(), bounds.Dy(), cols)
	}

	tiles := make([]string, 0, cols*cols)
	var buf bytes.Buffer

	for row := 0; row < cols; row++ {
		for col := 0; col < cols; col++ {
			src := image.Rect(
				bounds.Min.X+col*tileW,
				bounds.Min.Y+row*tileH,
				bounds.Min.X+(col+1)*tileW,
				bounds.Min.Y+(row+1)*tileH,
			)

			dst := image.NewRGBA(image.Rect(0, 0, edge, edge))
			draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

			buf.Reset()
			if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
				return nil, fmt.Errorf("failed to encode tile %d: %w", row*cols+col, err)
			}

			tiles = append(tiles, base64.StdEncoding.EncodeToString(buf.Bytes()))
		}
	}

	return tiles, nil
}
