// Package reproject converts plate-carrée light-pollution rasters into
// web-Mercator row order so they can be overlaid on a Mercator map.
//
// Longitude is linear in both projections, so only rows move: every output row
// takes the nearest source row for the latitude it represents in Mercator space.
package reproject

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/samirrijal/darkhorizon/internal/pkg/projection"
)

// ErrBadExtent is returned for latitude ranges Mercator cannot represent.
var ErrBadExtent = errors.New("latitude range must satisfy -90 < lat_min < lat_max < 90")

// Rows returns, for each of height output rows, the source row to copy.
// Row 0 is the northern edge (latMax). Output height equals source height.
func Rows(height int, latMin, latMax float64) ([]int, error) {
	if !(latMin > -90 && latMin < latMax && latMax < 90) {
		return nil, ErrBadExtent
	}
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}

	rows := make([]int, height)
	if height == 1 {
		return rows, nil
	}

	top := projection.MercatorY(latMax)
	bottom := projection.MercatorY(latMin)
	span := latMax - latMin
	for i := range rows {
		f := float64(i) / float64(height-1)
		lat := projection.InverseMercatorY(top - f*(top-bottom))
		y := int(math.Round((latMax - lat) / span * float64(height)))
		rows[i] = min(max(y, 0), height-1)
	}
	return rows, nil
}

// Image remaps the rows of src. Paletted images stay paletted with the same
// colour table, so palette transparency survives a PNG round trip. NRGBA, RGBA
// and Gray images keep their type; anything else is converted to NRGBA.
func Image(src image.Image, latMin, latMax float64) (image.Image, error) {
	b := src.Bounds()
	rows, err := Rows(b.Dy(), latMin, latMax)
	if err != nil {
		return nil, err
	}

	switch s := src.(type) {
	case *image.Paletted:
		pal := make(color.Palette, len(s.Palette))
		copy(pal, s.Palette)
		dst := image.NewPaletted(b, pal)
		copyRows(dst.Pix, dst.Stride, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), b.Dx(), rows)
		return dst, nil
	case *image.NRGBA:
		dst := image.NewNRGBA(b)
		copyRows(dst.Pix, dst.Stride, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), 4*b.Dx(), rows)
		return dst, nil
	case *image.RGBA:
		dst := image.NewRGBA(b)
		copyRows(dst.Pix, dst.Stride, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), 4*b.Dx(), rows)
		return dst, nil
	case *image.Gray:
		dst := image.NewGray(b)
		copyRows(dst.Pix, dst.Stride, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), b.Dx(), rows)
		return dst, nil
	default:
		conv := image.NewNRGBA(b)
		draw.Draw(conv, b, src, b.Min, draw.Src)
		return Image(conv, latMin, latMax)
	}
}

// copyRows writes source row rows[i] into destination row i. origin is the
// offset of the first source pixel and rowBytes the bytes per row to copy.
func copyRows(dst []byte, dstStride int, src []byte, srcStride, origin, rowBytes int, rows []int) {
	for i, r := range rows {
		from := origin + r*srcStride
		copy(dst[i*dstStride:i*dstStride+rowBytes], src[from:from+rowBytes])
	}
}
