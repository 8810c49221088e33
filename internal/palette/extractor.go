package palette

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/gen2brain/avif"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

// DefaultMaxDimension bounds the sampled image on both axes. Coarse color
// histograms barely change below full resolution, and decoding dominates
// the per-file cost.
const DefaultMaxDimension = 128

var ErrDegenerateImage = errors.New("image has no pixels")

// ExtractionError attributes a failed extraction to the file it was run on.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract histogram %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Histogram is a normalized distribution over the palette buckets.
type Histogram []float64

func (h Histogram) Sum() float64 {
	total := 0.0
	for _, value := range h {
		total += value
	}
	return total
}

type Extractor struct {
	palette      Palette
	maxDimension uint
}

func NewExtractor(p Palette) *Extractor {
	if len(p) == 0 {
		p = Default
	}

	return &Extractor{palette: p, maxDimension: DefaultMaxDimension}
}

func (e *Extractor) Palette() Palette {
	return e.palette
}

func (e *Extractor) ExtractFromPath(path string) (Histogram, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("open image: %w", err)}
	}
	defer file.Close()

	decoded, err := decodeImage(file, path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	histogram, err := e.ExtractFromImage(decoded)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	return histogram, nil
}

func (e *Extractor) ExtractFromImage(img image.Image) (Histogram, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrDegenerateImage
	}

	sampled := e.sample(img)
	bounds := sampled.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return nil, ErrDegenerateImage
	}

	counts := make([]int, len(e.palette))
	for y := 0; y < bounds.Dy(); y++ {
		row := sampled.Pix[y*sampled.Stride : y*sampled.Stride+bounds.Dx()*4]
		for offset := 0; offset < len(row); offset += 4 {
			pixel := Color{
				float64(row[offset]) / 255.0,
				float64(row[offset+1]) / 255.0,
				float64(row[offset+2]) / 255.0,
			}
			counts[e.palette.Closest(pixel)]++
		}
	}

	histogram := make(Histogram, len(counts))
	total := float64(pixels)
	for index, count := range counts {
		histogram[index] = float64(count) / total
	}

	return histogram, nil
}

// sample shrinks img to fit within maxDimension on both axes, keeping the
// aspect ratio. Smaller images are left at their size.
func (e *Extractor) sample(img image.Image) *image.NRGBA {
	return toNRGBA(resize.Thumbnail(e.maxDimension, e.maxDimension, img, resize.Bilinear))
}

func decodeImage(file io.ReadSeeker, path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".pef") {
		return decodeRawPreview(file)
	}

	decoded, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return decoded, nil
}

// decodeRawPreview decodes the JPEG preview embedded in a TIFF based raw
// file such as Pentax PEF.
func decodeRawPreview(file io.ReadSeeker) (image.Image, error) {
	metadata, err := exif.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("read raw metadata: %w", err)
	}

	preview, err := metadata.JpegThumbnail()
	if err != nil {
		return nil, fmt.Errorf("read raw preview: %w", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(preview))
	if err != nil {
		return nil, fmt.Errorf("decode raw preview: %w", err)
	}

	return decoded, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}

	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
