// Package palette classifies raster colours against the light-pollution legend.
package palette

import (
	"errors"
	"fmt"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// Palette is an ordered, immutable colour table.
type Palette struct {
	entries []domain.PaletteEntry
}

// New builds a palette from entries in declaration order.
func New(entries []domain.PaletteEntry) (*Palette, error) {
	if len(entries) == 0 {
		return nil, errors.New("palette must not be empty")
	}
	seen := make(map[[3]uint8]int, len(entries))
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("palette entry %d: label is required", i)
		}
		key := [3]uint8{e.R, e.G, e.B}
		if j, dup := seen[key]; dup {
			return nil, fmt.Errorf("palette entry %d: colour duplicates entry %d", i, j)
		}
		seen[key] = i
	}
	cp := make([]domain.PaletteEntry, len(entries))
	copy(cp, entries)
	return &Palette{entries: cp}, nil
}

// Entries returns a copy of the table.
func (p *Palette) Entries() []domain.PaletteEntry {
	cp := make([]domain.PaletteEntry, len(p.entries))
	copy(cp, p.entries)
	return cp
}

// Nearest returns the entry with the smallest squared RGB distance.
// Ties go to the entry declared first.
func (p *Palette) Nearest(r, g, b uint8) domain.PaletteEntry {
	best := 0
	bestDist := -1
	for i, e := range p.entries {
		dr := int(r) - int(e.R)
		dg := int(g) - int(e.G)
		db := int(b) - int(e.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return p.entries[best]
}

// defaultEntries follows the Lorenz 2024 light-pollution colour scale, darkest first,
// labelled with the matching Bortle class.
var defaultEntries = []domain.PaletteEntry{
	{ClassID: 1, Label: "Bortle 1 - excellent dark sky", R: 0, G: 0, B: 0},
	{ClassID: 1, Label: "Bortle 1 - excellent dark sky", R: 34, G: 34, B: 34},
	{ClassID: 2, Label: "Bortle 2 - typical truly dark sky", R: 66, G: 66, B: 66},
	{ClassID: 3, Label: "Bortle 3 - rural sky", R: 20, G: 47, B: 114},
	{ClassID: 4, Label: "Bortle 4 - rural/suburban transition", R: 33, G: 84, B: 216},
	{ClassID: 4, Label: "Bortle 4 - rural/suburban transition", R: 15, G: 87, B: 20},
	{ClassID: 5, Label: "Bortle 5 - suburban sky", R: 31, G: 161, B: 42},
	{ClassID: 5, Label: "Bortle 5 - suburban sky", R: 110, G: 100, B: 30},
	{ClassID: 6, Label: "Bortle 6 - bright suburban sky", R: 184, G: 166, B: 37},
	{ClassID: 6, Label: "Bortle 6 - bright suburban sky", R: 191, G: 100, B: 30},
	{ClassID: 7, Label: "Bortle 7 - suburban/urban transition", R: 253, G: 150, B: 80},
	{ClassID: 8, Label: "Bortle 8 - city sky", R: 251, G: 90, B: 73},
	{ClassID: 8, Label: "Bortle 8 - city sky", R: 251, G: 153, B: 138},
	{ClassID: 9, Label: "Bortle 9 - inner-city sky", R: 160, G: 160, B: 160},
	{ClassID: 9, Label: "Bortle 9 - inner-city sky", R: 242, G: 242, B: 242},
}

// Default returns the built-in light-pollution palette.
func Default() *Palette {
	p, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return p
}
