package label

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label canvas is 4x6 inches at 100 dpi.
const (
	Width  = 400
	Height = 600

	margin        = 20
	barcodeHeight = 140
	lineHeight    = 20
)

// ErrEmptyPayload is returned when there is nothing to encode.
var ErrEmptyPayload = errors.New("empty barcode payload")

// RenderBarcode encodes payload as a Code128 PNG.
func RenderBarcode(payload string) ([]byte, error) {
	bc, err := encode(payload)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(bc, Width-2*margin, barcodeHeight)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encode(payload string) (barcode.Barcode, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	bc, err := code128.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode code128: %w", err)
	}
	return bc, nil
}

// Data is what gets printed on a shipping label.
type Data struct {
	Resi    string
	Lines   []string // printed under the barcode, one per row
	Heading string
}

// RenderLabel draws a printable PNG label: heading, barcode, the resi in
// clear text and the detail lines.
func RenderLabel(d Data) ([]byte, error) {
	bc, err := encode(d.Resi)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	stddraw.Draw(img, img.Bounds(), image.White, image.Point{}, stddraw.Src)

	y := margin + 13
	if d.Heading != "" {
		drawText(img, margin, y, d.Heading)
		y += lineHeight
	}

	// nearest neighbour keeps bar edges sharp for scanners
	area := image.Rect(margin, y, Width-margin, y+barcodeHeight)
	xdraw.NearestNeighbor.Scale(img, area, bc, bc.Bounds(), xdraw.Over, nil)
	y = area.Max.Y + lineHeight

	drawText(img, centerX(d.Resi), y, d.Resi)
	y += lineHeight
	stddraw.Draw(img, image.Rect(margin, y-8, Width-margin, y-7), image.Black, image.Point{}, stddraw.Src)
	y += lineHeight / 2

	for _, line := range d.Lines {
		if y > Height-margin {
			break
		}
		drawText(img, margin, y, line)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(dst stddraw.Image, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func centerX(s string) int {
	w := font.MeasureString(basicfont.Face7x13, s).Round()
	x := (Width - w) / 2
	if x < margin {
		return margin
	}
	return x
}
