package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"slices"
)

// cloneCanvas copies src into a writable image of the same color model
// where one exists, so untouched pixels re-encode bit for bit.
func cloneCanvas(src image.Image) draw.Image {
	switch s := src.(type) {
	case *image.RGBA:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.NRGBA:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.RGBA64:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.NRGBA64:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.Gray:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.Gray16:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.Paletted:
		return expandPalette(s)
	}
	// YCbCr and CMYK from JPEG; 16 bits per channel hold them exactly.
	c := image.NewNRGBA64(src.Bounds())
	draw.Draw(c, c.Bounds(), src, src.Bounds().Min, draw.Src)
	return c
}

// expandPalette turns indexed pixels into NRGBA without going through
// premultiplied values. A palette cannot take the overlay colours.
func expandPalette(src *image.Paletted) *image.NRGBA {
	lut := make([]color.NRGBA, len(src.Palette))
	for i, entry := range src.Palette {
		switch c := entry.(type) {
		case color.NRGBA:
			lut[i] = c
		case color.RGBA:
			if c.A == 0xff {
				lut[i] = color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
				continue
			}
			lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		default:
			lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
	}

	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			idx := int(src.ColorIndexAt(x, y))
			if idx < len(lut) {
				out.SetNRGBA(x, y, lut[idx])
			}
		}
	}
	return out
}

// compositeOver blends layer onto dst with Porter-Duff over. Pixels where
// layer is fully transparent are never written.
func compositeOver(dst draw.Image, layer *image.RGBA) {
	b := layer.Bounds().Intersect(dst.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := layer.RGBAAt(x, y)
			if s.A == 0 {
				continue
			}
			sr, sg, sb, sa := s.RGBA()
			dr, dg, db, da := dst.At(x, y).RGBA()
			inv := 0xffff - sa
			dst.Set(x, y, color.RGBA64{
				R: uint16(dr*inv/0xffff + sr),
				G: uint16(dg*inv/0xffff + sg),
				B: uint16(db*inv/0xffff + sb),
				A: uint16(da*inv/0xffff + sa),
			})
		}
	}
}
