package overlay

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	badgeRadius   = 8
	shadowOffset  = 2
	indicatorSize = 12
	textPadding   = 8
	textRadius    = 6
)

var (
	shadowColor    = color.NRGBA{0, 0, 0, 60}
	badgeHome      = color.NRGBA{76, 175, 80, 180}
	badgeAway      = color.NRGBA{120, 120, 120, 140}
	indicatorHome  = color.NRGBA{255, 255, 255, 220}
	indicatorAway  = color.NRGBA{200, 200, 200, 180}
	textBackground = color.NRGBA{0, 0, 0, 140}
	textHome       = color.NRGBA{144, 238, 144, 240}
	textAway       = color.NRGBA{200, 200, 200, 220}
)

var (
	//go:embed icons/home.svg
	homeIcon []byte
	//go:embed icons/away.svg
	awayIcon []byte
)

func drawBadge(dst *image.RGBA, at image.Point, size int, home bool) {
	x, y, s := float64(at.X), float64(at.Y), float64(size)
	gc := draw2dimg.NewGraphicContext(dst)

	gc.SetFillColor(shadowColor)
	draw2dkit.RoundedRectangle(gc, x+shadowOffset, y+shadowOffset, x+s+shadowOffset, y+s+shadowOffset, 2*badgeRadius, 2*badgeRadius)
	gc.Fill()

	fill, dot := badgeAway, indicatorAway
	if home {
		fill, dot = badgeHome, indicatorHome
	}
	gc.SetFillColor(fill)
	draw2dkit.RoundedRectangle(gc, x, y, x+s, y+s, 2*badgeRadius, 2*badgeRadius)
	gc.Fill()

	gc.SetFillColor(dot)
	draw2dkit.Circle(gc, x+float64(size/2), y+float64(size/2), indicatorSize/2)
	gc.Fill()
}

func drawText(dst *image.RGBA, at image.Point, label string, face font.Face, home bool) {
	metrics := face.Metrics()
	width := font.MeasureString(face, label).Ceil()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	x, y := float64(at.X), float64(at.Y)
	gc := draw2dimg.NewGraphicContext(dst)
	gc.SetFillColor(textBackground)
	draw2dkit.RoundedRectangle(gc,
		x-textPadding, y-textPadding,
		x+float64(width)+textPadding, y+float64(height)+textPadding,
		2*textRadius, 2*textRadius)
	gc.Fill()

	clr := textAway
	if home {
		clr = textHome
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(at.X, at.Y+metrics.Ascent.Ceil()),
	}
	d.DrawString(label)
}

func drawIcon(dst *image.RGBA, at image.Point, size int, home bool) error {
	data := awayIcon
	if home {
		data = homeIcon
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load presence icon: %w", err)
	}
	icon.SetTarget(float64(at.X), float64(at.Y), float64(size), float64(size))

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return nil
}
