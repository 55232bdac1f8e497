package optimizer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
)

func TestFormatForName(t *testing.T) {
	tests := []struct {
		name    string
		want    imaging.Format
		wantErr bool
	}{
		{"photo.png", imaging.PNG, false},
		{"photo.PNG", imaging.PNG, false},
		{"photo.jpg", imaging.JPEG, false},
		{"photo.JPEG", imaging.JPEG, false},
		{"photo.gif", 0, true},
		{"photo.tiff", 0, true},
		{"photo", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatForName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatForName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("FormatForName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestHasAlpha(t *testing.T) {
	rect := image.Rect(0, 0, 4, 4)

	opaque := image.NewNRGBA(rect)
	fill(opaque, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	translucent := image.NewNRGBA(rect)
	fill(translucent, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	translucent.SetNRGBA(2, 2, color.NRGBA{A: 0})

	paletted := image.NewPaletted(rect, color.Palette{color.NRGBA{A: 0}, color.NRGBA{R: 255, A: 255}})
	paletted.SetColorIndex(1, 1, 0)

	testCases := []struct {
		name string
		img  image.Image
		want bool
	}{
		{"opaque NRGBA", opaque, false},
		{"NRGBA with transparent pixel", translucent, true},
		{"YCbCr", image.NewYCbCr(rect, image.YCbCrSubsampleRatio420), false},
		{"Gray", image.NewGray(rect), false},
		{"Paletted with transparent entry", paletted, true},
		{"Alpha", image.NewAlpha(rect), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasAlpha(tc.img); got != tc.want {
				t.Errorf("HasAlpha() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalize_FlattensOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 12, G: 34, B: 56, A: 255})
	src.SetNRGBA(2, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 128})

	got := Normalize(src)

	if HasAlpha(got) {
		t.Fatal("normalized image still has transparency")
	}
	if b := got.Bounds(); b.Dx() != 3 || b.Dy() != 1 {
		t.Fatalf("bounds = %v, want 3x1", b)
	}

	if c := nrgbaAt(got, 0, 0); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("transparent pixel = %v, want white", c)
	}
	if c := nrgbaAt(got, 1, 0); c != (color.NRGBA{R: 12, G: 34, B: 56, A: 255}) {
		t.Errorf("opaque pixel = %v, want unchanged", c)
	}
	half := nrgbaAt(got, 2, 0)
	if half.A != 255 || half.R < 120 || half.R > 135 || half.R != half.G || half.G != half.B {
		t.Errorf("half-transparent black pixel = %v, want mid gray", half)
	}
}

func TestNormalize_OffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 12))
	src.SetNRGBA(10, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	got := Normalize(src)

	b := got.Bounds()
	if b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", b)
	}
	if c := nrgbaAt(got, b.Min.X, b.Min.Y); c != (color.NRGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("top-left = %v, want source pixel", c)
	}
	if c := nrgbaAt(got, b.Min.X+1, b.Min.Y+1); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("bottom-right = %v, want white", c)
	}
}

func TestNormalize_OpaquePassThrough(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 8, 8), image.YCbCrSubsampleRatio444)
	if got := Normalize(src); got != image.Image(src) {
		t.Error("opaque image should be returned unchanged")
	}
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{100, 100, 100, 100},
		{1200, 1200, 1200, 1200},
		{1200, 800, 1200, 800},
		{2000, 1000, 1200, 600},
		{1000, 2000, 600, 1200},
		{2400, 2400, 1200, 1200},
		{1201, 7, 1200, 6},
	}
	for _, tt := range tests {
		src := image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))
		got := Downscale(src, 1200)
		b := got.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Downscale(%dx%d) = %dx%d, want %dx%d", tt.w, tt.h, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
		if b.Dx() > 1200 || b.Dy() > 1200 {
			t.Errorf("Downscale(%dx%d) exceeds bound: %v", tt.w, tt.h, b)
		}
		expectedH := float64(b.Dx()) * float64(tt.h) / float64(tt.w)
		if math.Abs(float64(b.Dy())-expectedH) > 1 {
			t.Errorf("Downscale(%dx%d) aspect drift: got height %d, expected %.2f", tt.w, tt.h, b.Dy(), expectedH)
		}
		if tt.w <= 1200 && tt.h <= 1200 && got != image.Image(src) {
			t.Errorf("Downscale(%dx%d) should return the original image", tt.w, tt.h)
		}
	}
}

func TestEncode_DecodesAsTargetFormat(t *testing.T) {
	src := noiseImage(64, 48, 1)
	opts := Options{JPEGQuality: 85, PNGCompression: png.BestCompression}

	for _, tc := range []struct {
		format imaging.Format
		name   string
	}{
		{imaging.PNG, "png"},
		{imaging.JPEG, "jpeg"},
	} {
		var buf bytes.Buffer
		if err := Encode(&buf, src, tc.format, opts); err != nil {
			t.Fatalf("Encode(%s): %v", tc.name, err)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("DecodeConfig(%s): %v", tc.name, err)
		}
		if format != tc.name {
			t.Errorf("encoded format = %q, want %q", format, tc.name)
		}
		if cfg.Width != 64 || cfg.Height != 48 {
			t.Errorf("%s dimensions = %dx%d, want 64x48", tc.name, cfg.Width, cfg.Height)
		}
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, noiseImage(4, 4, 1), imaging.GIF, Options{JPEGQuality: 85}); err == nil {
		t.Error("expected error for GIF output")
	}
}

func TestEncode_NormalizedPNGHasNoAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	src.SetNRGBA(3, 3, color.NRGBA{R: 9, G: 9, B: 9, A: 255})

	var buf bytes.Buffer
	if err := Encode(&buf, Normalize(src), imaging.PNG, Options{PNGCompression: png.BestCompression}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if HasAlpha(decoded) {
		t.Error("decoded PNG has transparency")
	}
	if c := nrgbaAt(decoded, 0, 0); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("background pixel = %v, want white", c)
	}
	if c := nrgbaAt(decoded, 3, 3); c != (color.NRGBA{R: 9, G: 9, B: 9, A: 255}) {
		t.Errorf("opaque pixel = %v, want unchanged", c)
	}
}

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

// noiseImage returns an opaque image of random pixels, which compresses poorly.
func noiseImage(w, h int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rnd.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}
