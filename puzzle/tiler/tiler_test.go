package tiler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func TestSliceImage(t *testing.T) {
	t.Run("4x4 grid", func(t *testing.T) {
		tiles, err := SliceImage(testImage(400, 400), 4, 64)
		if err != nil {
			t.Fatalf("SliceImage failed: %v", err)
		}
		if len(tiles) != 16 {
			t.Fatalf("Expected 16 tiles, got %d", len(tiles))
		}

		for i, tile := range tiles {
			raw, err := base64.StdEncoding.DecodeString(tile)
			if err != nil {
				t.Fatalf("Tile %d is not valid base64: %v", i, err)
			}
			img, err := jpeg.Decode(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("Tile %d is not a valid JPEG: %v", i, err)
			}
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
				t.Errorf("Tile %d: expected 64x64, got %dx%d", i, img.Bounds().Dx(), img.Bounds().Dy())
			}
		}
	})

	t.Run("non-square source", func(t *testing.T) {
		tiles, err := SliceImage(testImage(300, 150), 2, 32)
		if err != nil {
			t.Fatalf("SliceImage failed: %v", err)
		}
		if len(tiles) != 4 {
			t.Errorf("Expected 4 tiles, got %d", len(tiles))
		}
	})

	t.Run("image smaller than grid", func(t *testing.T) {
		_, err := SliceImage(testImage(3, 3), 4, 32)
		if !errors.Is(err, ErrImageTooWide) {
			t.Errorf("Expected ErrImageTooWide, got %v", err)
		}
	})

	t.Run("invalid columns", func(t *testing.T) {
		if _, err := SliceImage(testImage(100, 100), 1, 32); err == nil {
			t.Error("Expected error for 1 column")
		}
	})
}

func TestTilerSlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.png":
			w.Header().Set("Content-Type", "image/png")
			png.Encode(w, testImage(256, 256))
		case "/garbage":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tl := NewWithClient(srv.Client())

	t.Run("fetch and slice", func(t *testing.T) {
		tiles, err := tl.Slice(context.Background(), srv.URL+"/image.png", 2)
		if err != nil {
			t.Fatalf("Slice failed: %v", err)
		}
		if len(tiles) != 4 {
			t.Errorf("Expected 4 tiles, got %d", len(tiles))
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		_, err := tl.Slice(context.Background(), srv.URL+"/garbage", 2)
		if !errors.Is(err, ErrDecodeFailed) {
			t.Errorf("Expected ErrDecodeFailed, got %v", err)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := tl.Slice(context.Background(), srv.URL+"/nope.png", 2)
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("Expected ErrFetchFailed, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := tl.Slice(ctx, srv.URL+"/image.png", 2); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}
