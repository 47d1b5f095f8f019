package domain

import (
	"time"
)

// PaletteEntry is one colour of the light-pollution legend and the sky class it stands for.
type PaletteEntry struct {
	ClassID int    `json:"class_id" mapstructure:"class_id"`
	Label   string `json:"label" mapstructure:"label"`
	R       uint8  `json:"r" mapstructure:"r"`
	G       uint8  `json:"g" mapstructure:"g"`
	B       uint8  `json:"b" mapstructure:"b"`
}

// BaseLayer identifies one of the mutually exclusive base maps.
type BaseLayer string

const (
	BaseOverview  BaseLayer = "overview"
	BaseDetail    BaseLayer = "detail"
	BaseSatellite BaseLayer = "satellite"
)

// LayerVisibility is the layer snapshot for a zoom level.
type LayerVisibility struct {
	BaseLayer      BaseLayer `json:"base_layer"`
	OverlayOpacity float64   `json:"overlay_opacity"`
}

// Place is a single geocoder hit.
type Place struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind,omitempty"`
	Location GeoPoint `json:"location"`
	Extent   *Bounds  `json:"extent,omitempty"`
}

// RasterStatus describes the load state of a configured raster.
type RasterStatus struct {
	Name   string       `json:"name"`
	URL    string       `json:"url"`
	Bounds RasterBounds `json:"bounds"`
	State  string       `json:"state"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Spot is a saved observing location.
type Spot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   GeoPoint  `json:"location"`
	ClassID    *int      `json:"class_id,omitempty"`
	ClassLabel string    `json:"class_label,omitempty"`
	Elevation  *int      `json:"elevation,omitempty"`
	Distance   *float64  `json:"distance,omitempty"` // computed field
	CreatedAt  time.Time `json:"created_at"`
}
