// Package raster loads light-pollution rasters once and serves pixel lookups from memory.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

// State is the lifecycle phase of a Cache.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// ErrNotReady is returned by pixel reads before a successful Load.
var ErrNotReady = errors.New("raster not loaded")

// Cache holds one decoded raster for the lifetime of the process.
// Concurrent Load calls share a single fetch; a failed load is retried by the next call.
type Cache struct {
	name    string
	url     string
	fetcher Fetcher

	mu    sync.RWMutex
	state State
	buf   *Buffer
	err   error

	loads singleflight.Group
}

// New creates an idle cache for the raster at url.
func New(name, url string, fetcher Fetcher) *Cache {
	return &Cache{name: name, url: url, fetcher: fetcher}
}

// Name returns the configured raster name.
func (c *Cache) Name() string { return c.name }

// URL returns the raster location.
func (c *Cache) URL() string { return c.url }

// State returns the current lifecycle phase.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the error of the last failed load, if the cache is in StateError.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Load makes the raster ready. ctx bounds only this caller's wait: the shared load
// keeps running for the other waiters when one of them gives up.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.RLock()
	ready := c.state == StateReady
	c.mu.RUnlock()
	if ready {
		return nil
	}

	ch := c.loads.DoChan(c.url, func() (any, error) {
		return nil, c.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state, c.err = StateLoading, nil
	c.mu.Unlock()

	ctx, span := otel.Tracer("darkhorizon/raster").Start(ctx, "raster.load")
	span.SetAttributes(attribute.String("raster.name", c.name), attribute.String("raster.url", c.url))
	defer span.End()

	start := time.Now()
	buf, err := c.fetchAndDecode(ctx)
	metrics.RasterLoadDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state, c.err, c.buf = StateError, err, nil
		metrics.RasterLoads.WithLabelValues(c.name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("raster load failed", "raster", c.name, "url", c.url, "error", err)
		return err
	}
	c.state, c.buf = StateReady, buf
	metrics.RasterLoads.WithLabelValues(c.name, "ok").Inc()
	slog.Info("raster loaded", "raster", c.name, "width", buf.Width(), "height", buf.Height(),
		"elapsed", time.Since(start).String())
	return nil
}

func (c *Cache) fetchAndDecode(ctx context.Context) (*Buffer, error) {
	rc, err := c.fetcher.Fetch(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch raster %s: %w", c.name, err)
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode raster %s: %w", c.name, err)
	}
	buf := newBuffer(img)
	if buf.Width() == 0 || buf.Height() == 0 {
		return nil, fmt.Errorf("decode raster %s: empty %s image", c.name, format)
	}
	return buf, nil
}

// Size returns the raster dimensions, or zeros before the raster is ready.
func (c *Cache) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.buf == nil {
		return 0, 0
	}
	return c.buf.Width(), c.buf.Height()
}

// RGB returns the colour of pixel (x, y). It fails before the raster is ready or
// when the coordinates fall outside the image.
func (c *Cache) RGB(x, y int) (r, g, b uint8, err error) {
	c.mu.RLock()
	buf := c.buf
	c.mu.RUnlock()
	if buf == nil {
		return 0, 0, 0, ErrNotReady
	}
	if x < 0 || y < 0 || x >= buf.Width() || y >= buf.Height() {
		return 0, 0, 0, fmt.Errorf("pixel (%d,%d) outside %dx%d raster", x, y, buf.Width(), buf.Height())
	}
	r, g, b = buf.RGB(x, y)
	return r, g, b, nil
}
