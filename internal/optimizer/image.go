package optimizer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

// Options controls how a single image is re-encoded.
type Options struct {
	MaxDimension   int
	JPEGQuality    int
	PNGCompression png.CompressionLevel
	AutoOrient     bool
}

// FormatForName returns the output format for a source file name.
// Only PNG and JPEG sources are re-encoded.
func FormatForName(name string) (imaging.Format, error) {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return 0, fmt.Errorf("unsupported image format: %s", name)
	}
	if format != imaging.PNG && format != imaging.JPEG {
		return 0, fmt.Errorf("unsupported image format: %s", name)
	}
	return format, nil
}

// Decode reads an image, applying the EXIF orientation tag when autoOrient is set.
func Decode(r io.Reader, autoOrient bool) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(autoOrient))
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// Normalize flattens an image with transparency onto an opaque white
// background of the same size. Opaque images are returned unchanged.
func Normalize(img image.Image) image.Image {
	if !HasAlpha(img) {
		return img
	}
	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// Downscale shrinks img to fit inside maxDim x maxDim, keeping the aspect
// ratio. Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// Encode writes img in the given format using the re-encode settings.
func Encode(w io.Writer, img image.Image, format imaging.Format, opts Options) error {
	switch format {
	case imaging.PNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(opts.PNGCompression))
	case imaging.JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality))
	default:
		return fmt.Errorf("unsupported output format: %v", format)
	}
}
