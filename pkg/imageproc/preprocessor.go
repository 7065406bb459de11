package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"

	ExtensionJPEG = "jpg"
	ExtensionPNG  = "png"

	maxLightnessCache = 1 << 16
)

// ProcessedImage is the encoded result of Process.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// Preprocessor converts raw image bytes into the normalised representation
// expected by the embedding provider.
type Preprocessor struct {
	cfg Config
}

// NewPreprocessor returns a Preprocessor, filling unset options with defaults.
func NewPreprocessor(cfg Config) *Preprocessor {
	return &Preprocessor{cfg: cfg.withDefaults()}
}

// Process decodes data, reduces it to luminance, resizes it to the target
// width and re-encodes it. Undecodable input or images without usable
// dimensions yield an apperr.ErrUnsupportedMedia error.
func (p *Preprocessor) Process(data []byte) (ProcessedImage, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return ProcessedImage{}, apperr.UnsupportedMedia("cannot decode image", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return ProcessedImage{}, apperr.UnsupportedMedia(fmt.Sprintf("image has invalid dimensions %dx%d", bounds.Dx(), bounds.Dy()), nil)
	}

	lum := luminance(src)

	var out *image.NRGBA
	width, height := TargetSize(bounds.Dx(), bounds.Dy(), p.cfg.TargetWidth)
	if width == bounds.Dx() && height == bounds.Dy() {
		out = imaging.Clone(lum)
	} else {
		out = imaging.Resize(lum, width, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	result := ProcessedImage{Width: out.Bounds().Dx(), Height: out.Bounds().Dy()}
	if hasAlpha(src) {
		err = imaging.Encode(&buf, out, imaging.PNG)
		result.ContentType, result.Extension = ContentTypePNG, ExtensionPNG
	} else {
		err = imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(p.cfg.JPEGQuality))
		result.ContentType, result.Extension = ContentTypeJPEG, ExtensionJPEG
	}
	if err != nil {
		return ProcessedImage{}, apperr.UnsupportedMedia("cannot encode processed image", err)
	}

	result.Data = buf.Bytes()
	return result, nil
}

// TargetSize returns the output size for a w x h source. Width equal to the
// target keeps the size unchanged; otherwise height scales proportionally
// and never drops below one pixel.
func TargetSize(w, h, target int) (int, int) {
	if w == target {
		return w, h
	}
	height := int(math.Round(float64(h) * float64(target) / float64(w)))
	if height < 1 {
		height = 1
	}
	return target, height
}

// luminance returns the lightness channel of src as a gray image. Gray
// sources keep their values; every other colour model goes through CIE L*.
func luminance(src image.Image) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	switch g := src.(type) {
	case *image.Gray:
		for y := 0; y < bounds.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+bounds.Dx()], g.Pix[g.PixOffset(bounds.Min.X, bounds.Min.Y+y):])
		}
		return dst
	case *image.Gray16:
		for y := 0; y < bounds.Dy(); y++ {
			for x := 0; x < bounds.Dx(); x++ {
				v := g.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
				dst.Pix[y*dst.Stride+x] = uint8(v >> 8)
			}
		}
		return dst
	}

	// screenshots reuse few colours; cap the memo for photographic input
	cache := make(map[color.NRGBA]uint8)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			key := color.NRGBA{R: c.R, G: c.G, B: c.B}
			l, ok := cache[key]
			if !ok {
				l = lightness(c.R, c.G, c.B)
				if len(cache) < maxLightnessCache {
					cache[key] = l
				}
			}
			dst.Pix[y*dst.Stride+x] = l
		}
	}
	return dst
}

// lightness converts an sRGB triple to CIE L* scaled to 0..255.
func lightness(r, g, b uint8) uint8 {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	l, _, _ := c.Lab()
	v := math.Round(l * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// hasAlpha reports whether the decoded source carries an alpha channel.
// RGBA and RGBA64 are also what the PNG and TIFF decoders return for opaque
// RGB data, so those count only when some pixel is not fully opaque.
func hasAlpha(img image.Image) bool {
	switch src := img.(type) {
	case *image.Paletted:
		for _, c := range src.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	case *image.RGBA:
		return !src.Opaque()
	case *image.RGBA64:
		return !src.Opaque()
	}

	switch img.ColorModel() {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	case color.RGBAModel, color.RGBA64Model:
		if o, ok := img.(interface{ Opaque() bool }); ok {
			return !o.Opaque()
		}
		return true
	default:
		return false
	}
}
