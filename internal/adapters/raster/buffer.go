package raster

import (
	"image"
	"image/color"
	"image/draw"
)

// Buffer is a decoded raster addressable by integer pixel coordinates.
// Paletted images keep one byte per pixel plus a colour lookup table;
// everything else is normalized to 4-byte NRGBA.
type Buffer struct {
	width, height int
	stride        int
	bpp           int
	pix           []uint8
	lut           [][3]uint8
}

func newBuffer(img image.Image) *Buffer {
	r := img.Bounds()
	b := &Buffer{width: r.Dx(), height: r.Dy()}

	switch m := img.(type) {
	case *image.Paletted:
		b.bpp, b.stride, b.pix = 1, m.Stride, m.Pix
		b.lut = make([][3]uint8, len(m.Palette))
		for i, c := range m.Palette {
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			b.lut[i] = [3]uint8{n.R, n.G, n.B}
		}
	case *image.NRGBA:
		b.bpp, b.stride, b.pix = 4, m.Stride, m.Pix
	default:
		dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
		b.bpp, b.stride, b.pix = 4, dst.Stride, dst.Pix
	}
	return b
}

// Width returns the raster width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the raster height in pixels.
func (b *Buffer) Height() int { return b.height }

// RGB returns the colour at (x, y), counted from the top-left pixel.
// Pix of a decoded image starts at its Rect.Min, so no origin offset is needed.
func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	if b.bpp == 1 {
		i := b.pix[y*b.stride+x]
		if int(i) >= len(b.lut) {
			return 0, 0, 0
		}
		c := b.lut[i]
		return c[0], c[1], c[2]
	}
	o := y*b.stride + x*4
	return b.pix[o], b.pix[o+1], b.pix[o+2]
}
