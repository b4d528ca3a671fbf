// Package overlay stamps a presence indicator onto an image.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatBMP  = "bmp"
)

// Image is an encoded render result.
type Image struct {
	Bytes  []byte
	Format string
}

// ContentType is the MIME type to upload the image with.
func (i Image) ContentType() string {
	switch i.Format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Ext is the file extension for the encoded format, with the dot.
func (i Image) Ext() string {
	switch i.Format {
	case FormatJPEG:
		return ".jpg"
	case FormatBMP:
		return ".bmp"
	default:
		return ".png"
	}
}

// Compositor renders overlays. It is safe for concurrent use.
type Compositor struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

func NewCompositor() (*Compositor, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}
	return &Compositor{font: parsed, faces: make(map[float64]font.Face)}, nil
}

// Render decodes src, draws the indicator for state and re-encodes in the
// source format. Output dimensions always equal input dimensions.
func (c *Compositor) Render(src []byte, state frame.PresenceState, spec frame.OverlaySpec) (Image, error) {
	if state != frame.PresenceHome && state != frame.PresenceAway {
		return Image{}, ErrUnknownPresence
	}
	spec = spec.Normalize()

	decoded, format, err := decode(src)
	if err != nil {
		return Image{}, err
	}

	// The indicator is rasterized on its own layer and blended in, so
	// pixels it does not cover keep the source color model and precision.
	layer := image.NewRGBA(decoded.Bounds())
	home := state == frame.PresenceHome
	origin := anchor(layer.Bounds(), spec.Corner, spec.BadgeSize, spec.Margin)
	switch spec.Style {
	case frame.StyleText:
		if err := c.drawLabel(layer, origin, spec, state); err != nil {
			return Image{}, err
		}
	case frame.StyleIcon:
		if err := drawIcon(layer, origin, spec.IconSize, home); err != nil {
			return Image{}, err
		}
	default:
		drawBadge(layer, origin, spec.BadgeSize, home)
	}

	canvas := cloneCanvas(decoded)
	compositeOver(canvas, layer)

	out, err := encode(canvas, format, spec.Quality)
	if err != nil {
		return Image{}, err
	}
	return out, nil
}

// drawLabel holds the lock while drawing since faces cache glyphs.
func (c *Compositor) drawLabel(dst *image.RGBA, at image.Point, spec frame.OverlaySpec, state frame.PresenceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	face, err := c.face(spec.FontSize)
	if err != nil {
		return err
	}
	drawText(dst, at, spec.Label(state), face, state == frame.PresenceHome)
	return nil
}

func (c *Compositor) face(size float64) (font.Face, error) {
	if face, ok := c.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("overlay font face: %w", err)
	}
	c.faces[size] = face
	return face, nil
}

// anchor returns the top-left corner of the indicator box.
func anchor(bounds image.Rectangle, corner frame.Corner, size, margin int) image.Point {
	w, h := bounds.Dx(), bounds.Dy()
	var p image.Point
	switch corner {
	case frame.CornerBottomLeft:
		p = image.Pt(margin, h-size-margin)
	case frame.CornerTopRight:
		p = image.Pt(w-size-margin, margin)
	case frame.CornerTopLeft:
		p = image.Pt(margin, margin)
	default:
		p = image.Pt(w-size-margin, h-size-margin)
	}
	return p.Add(bounds.Min)
}

func decode(src []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", &DecodeError{Format: sniff(src), Err: err}
	}
	switch format {
	case FormatJPEG, FormatPNG, FormatBMP:
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", &DecodeError{Format: format, Err: err}
	}
	return img, format, nil
}

// sniff names the format of a header that DecodeConfig rejected.
func sniff(src []byte) string {
	switch {
	case bytes.HasPrefix(src, []byte{0xFF, 0xD8}):
		return FormatJPEG
	case bytes.HasPrefix(src, []byte("\x89PNG")):
		return FormatPNG
	case bytes.HasPrefix(src, []byte("BM")):
		return FormatBMP
	default:
		return "unknown"
	}
}

func encode(img image.Image, format string, quality int) (Image, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	default:
		format = FormatPNG
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return Image{}, fmt.Errorf("encode %s: %w", format, err)
	}
	return Image{Bytes: buf.Bytes(), Format: format}, nil
}
