// Package openmeteo implements ports.ElevationProvider against the Open-Meteo elevation API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

var tracer = otel.Tracer("darkhorizon/openmeteo")

// Client queries GET /v1/elevation.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL, e.g. https://api.open-meteo.com.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type elevationResponse struct {
	Elevation []any `json:"elevation"`
}

// Elevation returns the terrain height in meters, or nil when the response
// carries no numeric value.
func (c *Client) Elevation(ctx context.Context, lat, lon float64) (v *float64, err error) {
	ctx, span := tracer.Start(ctx, "openmeteo.elevation", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.Float64("lat", lat), attribute.Float64("lon", lon))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.UpstreamDuration.WithLabelValues("elevation", outcome).Observe(time.Since(start).Seconds())
		span.End()
	}()

	url := fmt.Sprintf("%s/v1/elevation?latitude=%.4f&longitude=%.4f", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
		return nil, fmt.Errorf("open-meteo: status %d", resp.StatusCode)
	}

	var body elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("open-meteo: decode: %w", err)
	}
	if len(body.Elevation) == 0 {
		return nil, nil
	}
	f, ok := body.Elevation[0].(float64)
	if !ok {
		return nil, nil
	}
	return &f, nil
}
