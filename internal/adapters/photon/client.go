// Package photon implements ports.Geocoder against a Photon (komoot) endpoint.
package photon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/pkg/geospatial"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

var tracer = otel.Tracer("darkhorizon/photon")

// Client queries GET /api/?q=..&limit=..
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL, e.g. https://photon.komoot.io.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Search geocodes query. Features without a point geometry are skipped.
func (c *Client) Search(ctx context.Context, query string, limit int) (places []domain.Place, err error) {
	ctx, span := tracer.Start(ctx, "photon.search", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("query", query), attribute.Int("limit", limit))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.UpstreamDuration.WithLabelValues("geocoder", outcome).Observe(time.Since(start).Seconds())
		span.End()
	}()

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photon: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("photon: read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("photon: decode: %w", err)
	}

	places = make([]domain.Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		places = append(places, toPlace(pt, f.Properties))
	}
	return places, nil
}

func toPlace(pt orb.Point, props geojson.Properties) domain.Place {
	name := props.MustString("name", "")
	p := domain.Place{
		Name:     name,
		Label:    label(props),
		Kind:     props.MustString("osm_value", props.MustString("type", "")),
		Location: geospatial.FromPoint(pt),
	}
	if p.Name == "" {
		p.Name = p.Label
	}
	if ext, ok := extent(props["extent"]); ok {
		p.Extent = &ext
	}
	return p
}

// label joins the distinct, non-empty address parts from most to least specific.
func label(props geojson.Properties) string {
	var parts []string
	seen := map[string]bool{}
	for _, key := range []string{"name", "street", "city", "state", "country"} {
		v := props.MustString(key, "")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}

// extent decodes Photon's [minLon, maxLat, maxLon, minLat] box.
func extent(raw any) (domain.Bounds, bool) {
	vals, ok := raw.([]any)
	if !ok || len(vals) != 4 {
		return domain.Bounds{}, false
	}
	var f [4]float64
	for i, v := range vals {
		n, ok := v.(float64)
		if !ok {
			return domain.Bounds{}, false
		}
		f[i] = n
	}
	b := orb.Bound{Min: orb.Point{f[0], f[3]}, Max: orb.Point{f[2], f[1]}}
	return geospatial.FromBound(b), true
}
