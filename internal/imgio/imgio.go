// Package imgio loads stereo input images as 8-bit grayscale and writes
// disparity artifacts. The matching engine itself never touches the
// filesystem; everything path-shaped lives here.
package imgio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// LoadGray decodes the image at path and converts it to 8-bit grayscale.
// PNG, JPEG, TIFF and BMP are supported.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return ToGray(img), nil
}

// ToGray converts any decoded image to 8-bit grayscale using the standard
// luminance weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			gray.Pix[(y-bounds.Min.Y)*gray.Stride+(x-bounds.Min.X)] = c.Y
		}
	}
	return gray
}

// Scale resamples img by the given factor using Catmull-Rom interpolation.
// A factor of 1 returns the input unchanged.
func Scale(img *image.Gray, factor float64) (*image.Gray, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("scale factor must be positive, got %g", factor)
	}
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	w := int(float64(b.Dx())*factor + 0.5)
	h := int(float64(b.Dy())*factor + 0.5)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scale factor %g collapses %dx%d image", factor, b.Dx(), b.Dy())
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// SavePNG writes img as a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
